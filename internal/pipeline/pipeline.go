package pipeline

import "roadsense/go-hub-server/internal/model"

// Process classifies an aggregated reading and shapes it into a record
// ready for persistence. The ID is left zero for the store to assign.
func Process(reading model.AggregatedReading) model.ProcessedRecord {
	return model.ProcessedRecord{
		RoadState:     Classify(reading.Accelerometer.Z),
		UserID:        reading.UserID,
		Accelerometer: reading.Accelerometer,
		Gps:           reading.Gps,
		Timestamp:     reading.Timestamp,
	}
}
