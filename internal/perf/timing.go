package perf

import "time"

// Timing breaks a transfer into connection setup, first-byte latency and
// pure transfer time.
type Timing struct {
	ConnectionSetup time.Duration
	FirstByte       time.Duration
	TransferOnly    time.Duration
	Total           time.Duration
}

func (t Timing) PureTransferSpeedKBps(bytes int64) float64 {
	return SpeedKBps(bytes, t.TransferOnly)
}

func (t Timing) OverallSpeedKBps(bytes int64) float64 {
	return SpeedKBps(bytes, t.Total)
}

// EfficiencyPercent is the share of total time spent moving bytes.
func (t Timing) EfficiencyPercent() float64 {
	if t.Total <= 0 {
		return 0
	}
	pct := float64(t.TransferOnly) / float64(t.Total) * 100
	return max(0, min(pct, 100))
}
