package billing

// billableMinutes converts a raw call duration into chargeable minutes.
//
// Rules:
// - duration_seconds = floor(duration_ms / 1000)
// - billable_minutes = ceil(duration_seconds / 60)
// - any call with duration_ms > 0 bills at least one full minute
func billableMinutes(durationMs int64) int {
	if durationMs <= 0 {
		return 0
	}
	sec := durationMs / 1000
	if sec <= 0 {
		return 1
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	if m < 1 {
		m = 1
	}
	return int(m)
}

func callCostMinor(durationMs, ratePerMinuteMinor int64) int64 {
	return int64(billableMinutes(durationMs)) * ratePerMinuteMinor
}
