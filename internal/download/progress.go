package download

import "time"

// sampler rate limits progress notifications. A sample is produced at most
// once per interval and only after the first interval has elapsed.
type sampler struct {
	id       string
	total    int64
	interval time.Duration

	lastAt         time.Time
	lastDownloaded int64
}

func newSampler(id string, total int64, interval time.Duration, start time.Time) *sampler {
	return &sampler{id: id, total: total, interval: interval, lastAt: start}
}

func (s *sampler) sample(downloaded int64, now time.Time) (Progress, bool) {
	elapsed := now.Sub(s.lastAt)
	if elapsed < s.interval {
		return Progress{}, false
	}

	p := Progress{Id: s.id, Downloaded: downloaded, Total: s.total}

	if s.total > 0 {
		p.Percent = uint32(float64(downloaded) / float64(s.total) * 100)
	}

	if seconds := elapsed.Seconds(); seconds > 0 {
		p.Speed = float64(downloaded-s.lastDownloaded) / seconds
	}

	remaining := s.total - downloaded
	if remaining < 0 {
		remaining = 0
	}

	if p.Speed > 0 {
		p.TimeRemaining = float64(remaining) / p.Speed
	}

	s.lastAt = now
	s.lastDownloaded = downloaded

	return p, true
}
