package models

import (
	"errors"
	"fmt"
	"math"
)

const (
	RatingScaleMin = 0.0
	RatingScaleMax = 10.0
)

var (
	ErrEmptyDistribution = errors.New("distribution has no buckets")
	ErrInvalidBucket     = errors.New("invalid distribution bucket")
	ErrZeroWeight        = errors.New("distribution fractions sum to zero")
)

// Bucket is a rating sub-range and the share of items it should receive.
type Bucket struct {
	Lower    float64 `json:"lower" mapstructure:"lower" validate:"gte=0,lte=10"`
	Upper    float64 `json:"upper" mapstructure:"upper" validate:"gte=0,lte=10,gtefield=Lower"`
	Fraction float64 `json:"fraction" mapstructure:"fraction"`
}

type DistributionSpec struct {
	Buckets []Bucket `json:"buckets" mapstructure:"buckets" validate:"required,min=1,dive"`
}

// DefaultDistribution matches the weights applied after a catalog refresh.
func DefaultDistribution() DistributionSpec {
	return DistributionSpec{Buckets: []Bucket{
		{Lower: 0, Upper: 1.9, Fraction: 0.06},
		{Lower: 2, Upper: 3.9, Fraction: 0.14},
		{Lower: 4, Upper: 5.9, Fraction: 0.28},
		{Lower: 6, Upper: 7.9, Fraction: 0.32},
		{Lower: 8, Upper: 9.9, Fraction: 0.20},
	}}
}

// Validate rejects specs the redistributor cannot honor. Negative fractions are
// clamped to zero, so a spec is only rejected for weight when no positive fraction remains.
func (d DistributionSpec) Validate() error {
	if len(d.Buckets) == 0 {
		return ErrEmptyDistribution
	}

	positive := false
	for i, b := range d.Buckets {
		if !isFinite(b.Lower) || !isFinite(b.Upper) || !isFinite(b.Fraction) {
			return fmt.Errorf("bucket %d: bounds and fraction must be finite numbers: %w", i, ErrInvalidBucket)
		}
		if b.Lower > b.Upper {
			return fmt.Errorf("bucket %d: lower %.2f exceeds upper %.2f: %w", i, b.Lower, b.Upper, ErrInvalidBucket)
		}
		if b.Lower < RatingScaleMin || b.Upper > RatingScaleMax {
			return fmt.Errorf("bucket %d: range [%.2f, %.2f] outside [0, 10]: %w", i, b.Lower, b.Upper, ErrInvalidBucket)
		}
		if b.Fraction > 0 {
			positive = true
		}
	}
	if !positive {
		return ErrZeroWeight
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Contains reports whether r lies inside the bucket, bounds inclusive.
func (b Bucket) Contains(r float64) bool {
	return r >= b.Lower && r <= b.Upper
}
