package model

import "time"

// RoadState is the surface condition classified from accelerometer data.
type RoadState string

const (
	RoadStateBumpy  RoadState = "bumpy"
	RoadStateNormal RoadState = "normal"
	RoadStateHilly  RoadState = "hilly"
)

// AccelerometerSample holds one raw three-axis accelerometer reading.
type AccelerometerSample struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// GpsSample holds one GPS position fix.
type GpsSample struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// ParkingSample reports free parking spaces observed at a position.
type ParkingSample struct {
	EmptyCount int       `json:"empty_count"`
	Gps        GpsSample `json:"gps"`
}

// AggregatedReading combines the latest sample from each sensor stream
// of one vehicle into a single snapshot.
type AggregatedReading struct {
	Accelerometer AccelerometerSample `json:"accelerometer"`
	Gps           GpsSample           `json:"gps"`
	Parking       ParkingSample       `json:"parking"`
	Timestamp     time.Time           `json:"timestamp"`
	UserID        int64               `json:"user_id"`
}

// ProcessedRecord is an aggregated reading with its classified road state.
// ID is zero until the store assigns one. RoadState is fixed at creation
// time and never recomputed afterwards.
type ProcessedRecord struct {
	ID            int64               `json:"id,omitempty"`
	RoadState     RoadState           `json:"road_state"`
	UserID        int64               `json:"user_id"`
	Accelerometer AccelerometerSample `json:"accelerometer"`
	Gps           GpsSample           `json:"gps"`
	Timestamp     time.Time           `json:"timestamp"`
}
