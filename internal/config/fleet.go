package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fleet describes the vehicles the hub drives in-process, each with its
// own set of recorded sensor files.
type Fleet struct {
	Vehicles []VehicleConfig `yaml:"vehicles"`
}

// VehicleConfig names the three sensor CSV files for one simulated vehicle.
type VehicleConfig struct {
	Name              string `yaml:"name"`
	UserID            int64  `yaml:"userId"`
	AccelerometerFile string `yaml:"accelerometerFile"`
	GpsFile           string `yaml:"gpsFile"`
	ParkingFile       string `yaml:"parkingFile"`
}

// LoadFleet parses and validates a fleet file.
func LoadFleet(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("parse fleet file: %w", err)
	}

	if err := fleet.Validate(); err != nil {
		return nil, err
	}
	return &fleet, nil
}

// Validate checks that every vehicle entry is complete.
func (f *Fleet) Validate() error {
	if len(f.Vehicles) == 0 {
		return fmt.Errorf("fleet file lists no vehicles")
	}

	seen := make(map[string]struct{}, len(f.Vehicles))
	for i, v := range f.Vehicles {
		if v.Name == "" {
			return fmt.Errorf("vehicle %d has no name", i)
		}
		if _, ok := seen[v.Name]; ok {
			return fmt.Errorf("duplicate vehicle name %q", v.Name)
		}
		seen[v.Name] = struct{}{}

		if v.UserID <= 0 {
			return fmt.Errorf("vehicle %q has invalid userId %d", v.Name, v.UserID)
		}
		if v.AccelerometerFile == "" || v.GpsFile == "" || v.ParkingFile == "" {
			return fmt.Errorf("vehicle %q is missing a sensor file path", v.Name)
		}
	}
	return nil
}
