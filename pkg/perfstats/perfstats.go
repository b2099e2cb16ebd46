package perfstats

import "time"

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Max     time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
	a.Max = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	a.Max = max(a.Max, v)
}

// Measure the time since 'start', and add it as a sample
func (a *TimeAccumulator) AddSince(start time.Time) {
	a.AddSample(time.Since(start))
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}
