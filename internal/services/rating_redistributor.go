package services

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/temcen/gamepulse/pkg/models"
)

// RatingRedistributor reassigns display ratings so that the population of each
// rating bucket follows a configured distribution.
type RatingRedistributor struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *logrus.Logger
}

// NewRatingRedistributor creates a redistributor. A nil rng gets a randomly seeded PCG source;
// tests pass a fixed seed.
func NewRatingRedistributor(rng *rand.Rand, logger *logrus.Logger) *RatingRedistributor {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RatingRedistributor{
		rng:    rng,
		logger: logger,
	}
}

// BucketCounts returns how many of n items each bucket of spec receives.
// The counts always sum to n.
func BucketCounts(n int, spec models.DistributionSpec) ([]int, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	weights := make([]float64, len(spec.Buckets))
	for i, b := range spec.Buckets {
		weights[i] = math.Max(0, b.Fraction)
	}
	// Scale by the largest weight before summing: the sum of huge fractions overflows and
	// the reciprocal of a denormal one does not fit a float64.
	peak := floats.Max(weights)
	if !(peak > 0) || math.IsInf(peak, 0) {
		return nil, models.ErrZeroWeight
	}
	for i := range weights {
		weights[i] /= peak
	}
	floats.Scale(1/floats.Sum(weights), weights)

	counts := make([]int, len(weights))
	sum := 0
	for i, w := range weights {
		counts[i] = int(math.Round(w * float64(n)))
		sum += counts[i]
	}

	// Rounding drift is corrected one unit at a time, cycling from bucket 0.
	// Zero-weight buckets never gain items and empty buckets are skipped when
	// shedding, so each step moves the sum.
	k := len(counts)
	i := 0
	for sum < n {
		b := i % k
		i++
		if weights[b] == 0 {
			continue
		}
		counts[b]++
		sum++
	}
	for sum > n {
		b := i % k
		i++
		if counts[b] == 0 {
			continue
		}
		counts[b]--
		sum--
	}

	return counts, nil
}

// Redistribute returns copies of games whose ratings follow spec. Each copy keeps the
// rating it had on input in OriginalRating. The input slice is left untouched.
func (r *RatingRedistributor) Redistribute(games []models.Game, spec models.DistributionSpec) ([]models.Game, error) {
	counts, err := BucketCounts(len(games), spec)
	if err != nil {
		return nil, err
	}

	out := make([]models.Game, len(games))
	for i, g := range games {
		out[i] = g.Clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.permutation(len(out))

	cursor := 0
	for b, cnt := range counts {
		bucket := spec.Buckets[b]
		for t := 0; t < cnt; t++ {
			g := &out[order[cursor]]
			cursor++
			g.OriginalRating = g.Rating
			v := r.drawInBucket(bucket)
			g.Rating = &v
		}
	}

	// Unreachable while BucketCounts balances exactly; kept so every item ends up rated.
	for ; cursor < len(out); cursor++ {
		g := &out[order[cursor]]
		g.OriginalRating = g.Rating
		if g.Rating == nil {
			v := roundTenth(r.rng.Float64() * models.RatingScaleMax)
			g.Rating = &v
		}
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"items":   len(out),
			"buckets": counts,
		}).Debug("Ratings redistributed")
	}

	return out, nil
}

// permutation is an in-place Fisher-Yates shuffle of 0..n-1.
func (r *RatingRedistributor) permutation(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for k := n - 1; k > 0; k-- {
		j := r.rng.IntN(k + 1)
		idx[k], idx[j] = idx[j], idx[k]
	}
	return idx
}

// drawInBucket picks a uniform rating in [lower, upper] at one decimal place.
func (r *RatingRedistributor) drawInBucket(b models.Bucket) float64 {
	v := roundTenth(b.Lower + r.rng.Float64()*(b.Upper-b.Lower))
	if v < b.Lower {
		v = math.Ceil(b.Lower*10) / 10
	}
	if v > b.Upper {
		v = math.Floor(b.Upper*10) / 10
	}
	if !b.Contains(v) {
		// No one-decimal value fits a range narrower than 0.1.
		v = b.Lower
	}
	return v
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
