package engine

import (
	"math/rand"
	"sync"

	"wishline/internal/domain"
)

// Sampler picks k distinct indices from [0,n) uniformly at random. It is
// the engine's only randomness source so tests can seed or replace it.
type Sampler interface {
	Pick(n, k int) []int
}

type randSampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler returns a seedable Sampler safe for concurrent use.
func NewSampler(seed int64) Sampler {
	return &randSampler{rnd: rand.New(rand.NewSource(seed))}
}

// Pick runs a partial Fisher-Yates shuffle over the index range.
func (s *randSampler) Pick(n, k int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.rnd.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}

// SampleQuota selects min(len(pool), quota) distinct wishes. With a pool at
// or under quota the whole pool is returned in order; randomness only
// matters when the pool exceeds quota.
func SampleQuota(s Sampler, pool []domain.Wish, quota int) []domain.Wish {
	if quota < 1 || len(pool) == 0 {
		return nil
	}
	if len(pool) <= quota {
		out := make([]domain.Wish, len(pool))
		copy(out, pool)
		return out
	}
	picked := s.Pick(len(pool), quota)
	out := make([]domain.Wish, 0, len(picked))
	for _, i := range picked {
		out = append(out, pool[i])
	}
	return out
}
