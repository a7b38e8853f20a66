package pipeline

import (
	"testing"
	"time"

	"roadsense/go-hub-server/internal/model"
)

func TestProcess(t *testing.T) {
	now := time.Now().UTC()
	reading := model.AggregatedReading{
		Accelerometer: model.AccelerometerSample{X: 5000, Y: 0, Z: 9000},
		Gps:           model.GpsSample{Longitude: 30.5, Latitude: 50.4},
		Parking:       model.ParkingSample{EmptyCount: 3, Gps: model.GpsSample{Longitude: 30.5, Latitude: 50.4}},
		Timestamp:     now,
		UserID:        42,
	}

	record := Process(reading)

	if record.RoadState != model.RoadStateBumpy {
		t.Errorf("road state = %q, want bumpy", record.RoadState)
	}
	if record.Accelerometer != reading.Accelerometer {
		t.Errorf("accelerometer = %+v, want %+v", record.Accelerometer, reading.Accelerometer)
	}
	if record.Gps != reading.Gps {
		t.Errorf("gps = %+v, want %+v", record.Gps, reading.Gps)
	}
	if record.UserID != 42 {
		t.Errorf("user id = %d, want 42", record.UserID)
	}
	if !record.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", record.Timestamp, now)
	}
	if record.ID != 0 {
		t.Errorf("id = %d, want unset", record.ID)
	}
}
