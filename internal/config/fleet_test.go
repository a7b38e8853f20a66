package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFleetFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fleet file: %v", err)
	}
	return path
}

func TestLoadFleet(t *testing.T) {
	path := writeFleetFile(t, `
vehicles:
  - name: demo
    userId: 42
    accelerometerFile: data/accelerometer.csv
    gpsFile: data/gps.csv
    parkingFile: data/parking.csv
  - name: second
    userId: 7
    accelerometerFile: data/accelerometer.csv
    gpsFile: data/gps.csv
    parkingFile: data/parking.csv
`)

	fleet, err := LoadFleet(path)
	if err != nil {
		t.Fatalf("load fleet: %v", err)
	}
	if len(fleet.Vehicles) != 2 {
		t.Fatalf("loaded %d vehicles, want 2", len(fleet.Vehicles))
	}
	if fleet.Vehicles[0].UserID != 42 || fleet.Vehicles[0].Name != "demo" {
		t.Errorf("first vehicle = %+v", fleet.Vehicles[0])
	}
}

func TestLoadFleetRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no vehicles", `vehicles: []`},
		{"missing name", `
vehicles:
  - userId: 1
    accelerometerFile: a.csv
    gpsFile: g.csv
    parkingFile: p.csv
`},
		{"duplicate name", `
vehicles:
  - name: demo
    userId: 1
    accelerometerFile: a.csv
    gpsFile: g.csv
    parkingFile: p.csv
  - name: demo
    userId: 2
    accelerometerFile: a.csv
    gpsFile: g.csv
    parkingFile: p.csv
`},
		{"invalid user id", `
vehicles:
  - name: demo
    userId: 0
    accelerometerFile: a.csv
    gpsFile: g.csv
    parkingFile: p.csv
`},
		{"missing sensor file", `
vehicles:
  - name: demo
    userId: 1
    accelerometerFile: a.csv
    gpsFile: g.csv
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFleetFile(t, tt.content)
			if _, err := LoadFleet(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
