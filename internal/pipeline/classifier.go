package pipeline

import "roadsense/go-hub-server/internal/model"

// Classification thresholds for the accelerometer z-axis, in raw sensor
// units. Values on the boundaries classify as normal.
const (
	bumpyBelow = 10000
	hillyAbove = 16600
)

// Classify maps an accelerometer z-axis value to a road state. It is a
// pure function of the current sample; no smoothing, no history.
func Classify(z int) model.RoadState {
	switch {
	case z < bumpyBelow:
		return model.RoadStateBumpy
	case z > hillyAbove:
		return model.RoadStateHilly
	default:
		return model.RoadStateNormal
	}
}
