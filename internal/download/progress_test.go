package download

import (
	"math"
	"testing"
	"time"
)

func TestSampler(t *testing.T) {
	start := time.Unix(100, 0)
	s := newSampler("a", 10_000, 500*time.Millisecond, start)

	if _, ok := s.sample(100, start.Add(100*time.Millisecond)); ok {
		t.Fatal("sample before the first interval")
	}

	p, ok := s.sample(1000, start.Add(500*time.Millisecond))
	if !ok {
		t.Fatal("expected a sample after one interval")
	}
	if p.Id != "a" || p.Downloaded != 1000 || p.Total != 10_000 || p.Percent != 10 {
		t.Errorf("unexpected sample %+v", p)
	}
	if math.Abs(p.Speed-2000) > 1e-9 {
		t.Errorf("speed = %f, want 2000", p.Speed)
	}
	if math.Abs(p.TimeRemaining-4.5) > 1e-9 {
		t.Errorf("time remaining = %f, want 4.5", p.TimeRemaining)
	}

	if _, ok := s.sample(1500, start.Add(700*time.Millisecond)); ok {
		t.Fatal("sample within the same interval")
	}

	p, ok = s.sample(3000, start.Add(1500*time.Millisecond))
	if !ok {
		t.Fatal("expected a second sample")
	}
	// speed is measured since the previous sample, not since the start
	if math.Abs(p.Speed-2000) > 1e-9 || p.Percent != 30 {
		t.Errorf("unexpected sample %+v", p)
	}
	if math.Abs(p.TimeRemaining-3.5) > 1e-9 {
		t.Errorf("time remaining = %f, want 3.5", p.TimeRemaining)
	}
}

func TestSampler_UnknownTotal(t *testing.T) {
	start := time.Unix(0, 0)
	s := newSampler("a", 0, time.Second, start)

	p, ok := s.sample(4096, start.Add(2*time.Second))
	if !ok {
		t.Fatal("expected a sample")
	}
	if p.Percent != 0 || p.TimeRemaining != 0 || p.Total != 0 {
		t.Errorf("unexpected sample %+v", p)
	}
	if p.Speed != 2048 {
		t.Errorf("speed = %f, want 2048", p.Speed)
	}
}

func TestSampler_NoProgressHasNoEstimate(t *testing.T) {
	start := time.Unix(0, 0)
	s := newSampler("a", 100, time.Second, start)

	p, ok := s.sample(0, start.Add(time.Second))
	if !ok {
		t.Fatal("expected a sample")
	}
	if p.Speed != 0 || p.TimeRemaining != 0 {
		t.Errorf("unexpected sample %+v", p)
	}
}
