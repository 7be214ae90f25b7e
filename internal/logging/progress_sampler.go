package logging

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the job or percentage bucket changes.
type ProgressSampler struct {
	bucketSize int
	lastJob    int
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the job changes.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event for job (1-based sequence
// number) at percent should be logged. Negative percent means unknown.
func (s *ProgressSampler) ShouldLog(job, percent int) bool {
	if s == nil {
		return true
	}
	emit := false
	if job != s.lastJob {
		s.lastJob = job
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := min(percent, 100) / s.bucketSize
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new run starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastJob = 0
	s.lastBucket = -1
}
