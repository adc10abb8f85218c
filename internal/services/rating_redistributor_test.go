package services

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamepulse/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestRedistributor(seed uint64) *RatingRedistributor {
	return NewRatingRedistributor(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), testLogger())
}

func makeGames(n int) []models.Game {
	games := make([]models.Game, n)
	for i := range games {
		games[i] = models.Game{
			ID:     i + 1,
			Name:   "Game",
			Rating: models.Float64Ptr(float64(i%5) + 0.5),
		}
	}
	return games
}

func isOneDecimal(v float64) bool {
	return math.Abs(v*10-math.Round(v*10)) < 1e-9
}

func TestBucketCounts(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		spec     models.DistributionSpec
		expected []int
	}{
		{
			name: "even split",
			n:    10,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 0.5},
				{Lower: 8, Upper: 10, Fraction: 0.5},
			}},
			expected: []int{5, 5},
		},
		{
			name:     "default distribution over 300 games",
			n:        300,
			spec:     models.DefaultDistribution(),
			expected: []int{18, 42, 84, 96, 60},
		},
		{
			name: "unnormalized fractions",
			n:    8,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 5, Fraction: 3},
				{Lower: 5, Upper: 10, Fraction: 1},
			}},
			expected: []int{6, 2},
		},
		{
			name: "rounding up overshoots and is trimmed",
			n:    3,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 0.5},
				{Lower: 2, Upper: 4, Fraction: 0.5},
				{Lower: 4, Upper: 6, Fraction: 0.5},
				{Lower: 6, Upper: 8, Fraction: 0.5},
			}},
			expected: []int{0, 1, 1, 1},
		},
		{
			name: "rounding down undershoots and is filled",
			n:    4,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 3, Fraction: 1},
				{Lower: 3, Upper: 6, Fraction: 1},
				{Lower: 6, Upper: 10, Fraction: 1},
			}},
			expected: []int{2, 1, 1},
		},
		{
			name: "zero weight bucket never receives items",
			n:    5,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 0},
				{Lower: 2, Upper: 4, Fraction: 1},
				{Lower: 4, Upper: 6, Fraction: 1},
			}},
			expected: []int{0, 2, 3},
		},
		{
			name: "negative fractions are treated as zero",
			n:    4,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: -1},
				{Lower: 8, Upper: 10, Fraction: 1},
			}},
			expected: []int{0, 4},
		},
		{
			name: "fractions whose sum overflows",
			n:    10,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 1e308},
				{Lower: 8, Upper: 10, Fraction: 1e308},
			}},
			expected: []int{5, 5},
		},
		{
			name: "denormal fractions",
			n:    10,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 5e-324},
				{Lower: 8, Upper: 10, Fraction: 5e-324},
			}},
			expected: []int{5, 5},
		},
		{
			name: "huge fraction dwarfs a small one",
			n:    10,
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 2, Fraction: 1e308},
				{Lower: 8, Upper: 10, Fraction: 1},
			}},
			expected: []int{10, 0},
		},
		{
			name:     "no items",
			n:        0,
			spec:     models.DefaultDistribution(),
			expected: []int{0, 0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counts, err := BucketCounts(tt.n, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, counts)
		})
	}
}

func TestBucketCounts_PathologicalWeightsNeverUnderfill(t *testing.T) {
	spec := models.DistributionSpec{Buckets: []models.Bucket{
		{Lower: 0, Upper: 1.9, Fraction: 0.999},
		{Lower: 2, Upper: 3.9, Fraction: 0.0004},
		{Lower: 4, Upper: 5.9, Fraction: 0.0002},
		{Lower: 6, Upper: 7.9, Fraction: 0.0002},
		{Lower: 8, Upper: 9.9, Fraction: 0.0002},
	}}

	for n := 0; n <= 400; n++ {
		counts, err := BucketCounts(n, spec)
		require.NoError(t, err)

		sum := 0
		for _, c := range counts {
			assert.GreaterOrEqual(t, c, 0)
			sum += c
		}
		require.Equal(t, n, sum, "n=%d counts=%v", n, counts)
	}
}

func TestBucketCounts_InvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec models.DistributionSpec
		err  error
	}{
		{
			name: "no buckets",
			spec: models.DistributionSpec{},
			err:  models.ErrEmptyDistribution,
		},
		{
			name: "inverted bucket",
			spec: models.DistributionSpec{Buckets: []models.Bucket{{Lower: 5, Upper: 2, Fraction: 1}}},
			err:  models.ErrInvalidBucket,
		},
		{
			name: "bucket outside rating scale",
			spec: models.DistributionSpec{Buckets: []models.Bucket{{Lower: 8, Upper: 12, Fraction: 1}}},
			err:  models.ErrInvalidBucket,
		},
		{
			name: "all zero fractions",
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 5, Fraction: 0},
				{Lower: 5, Upper: 10, Fraction: -0.5},
			}},
			err: models.ErrZeroWeight,
		},
		{
			name: "NaN fraction",
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 5, Fraction: math.NaN()},
				{Lower: 5, Upper: 10, Fraction: 1},
			}},
			err: models.ErrInvalidBucket,
		},
		{
			name: "infinite fraction",
			spec: models.DistributionSpec{Buckets: []models.Bucket{
				{Lower: 0, Upper: 5, Fraction: math.Inf(1)},
				{Lower: 5, Upper: 10, Fraction: 1},
			}},
			err: models.ErrInvalidBucket,
		},
		{
			name: "NaN bound",
			spec: models.DistributionSpec{Buckets: []models.Bucket{{Lower: math.NaN(), Upper: 5, Fraction: 1}}},
			err:  models.ErrInvalidBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BucketCounts(10, tt.spec)
			assert.ErrorIs(t, err, tt.err)

			_, err = newTestRedistributor(1).Redistribute(makeGames(10), tt.spec)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRatingRedistributor_HalfAndHalf(t *testing.T) {
	spec := models.DistributionSpec{Buckets: []models.Bucket{
		{Lower: 0, Upper: 2, Fraction: 0.5},
		{Lower: 8, Upper: 10, Fraction: 0.5},
	}}

	for seed := uint64(1); seed <= 20; seed++ {
		out, err := newTestRedistributor(seed).Redistribute(makeGames(10), spec)
		require.NoError(t, err)
		require.Len(t, out, 10)

		low, high := 0, 0
		for _, g := range out {
			require.NotNil(t, g.Rating)
			switch r := *g.Rating; {
			case r >= 0 && r <= 2:
				low++
			case r >= 8 && r <= 10:
				high++
			default:
				t.Fatalf("rating %.2f outside both buckets", r)
			}
		}
		assert.Equal(t, 5, low)
		assert.Equal(t, 5, high)
	}
}

func TestRatingRedistributor_DefaultDistribution(t *testing.T) {
	spec := models.DefaultDistribution()
	games := makeGames(300)
	games[7].Rating = nil

	out, err := newTestRedistributor(42).Redistribute(games, spec)
	require.NoError(t, err)

	expected, err := BucketCounts(len(games), spec)
	require.NoError(t, err)

	actual := make([]int, len(spec.Buckets))
	for i, g := range out {
		require.NotNil(t, g.Rating, "game %d has no rating", g.ID)
		r := *g.Rating

		assert.True(t, isOneDecimal(r), "rating %v is not at one decimal", r)

		placed := false
		for b, bucket := range spec.Buckets {
			if bucket.Contains(r) {
				actual[b]++
				placed = true
				break
			}
		}
		assert.True(t, placed, "rating %v is in no bucket", r)

		// Original rating is the value the game had on input.
		assert.Equal(t, games[i].Rating, g.OriginalRating)
	}

	assert.Equal(t, expected, actual)
}

func TestRatingRedistributor_LeavesInputUntouched(t *testing.T) {
	games := makeGames(20)
	games[0].Genres = []models.NamedRef{{Name: "RPG"}}
	games[0].Platforms = []models.PlatformEntry{{Platform: &models.NamedRef{Name: "PC"}}}
	before := make([]models.Game, len(games))
	for i, g := range games {
		before[i] = g.Clone()
	}

	out, err := newTestRedistributor(7).Redistribute(games, models.DefaultDistribution())
	require.NoError(t, err)

	assert.Equal(t, before, games)
	for i := range games {
		assert.Nil(t, games[i].OriginalRating)
	}

	out[0].Genres[0].Name = "Changed"
	out[0].Platforms[0].Platform.Name = "Changed"
	assert.Equal(t, "RPG", games[0].Genres[0].Name)
	assert.Equal(t, "PC", games[0].Platforms[0].Platform.Name)
}

func TestRatingRedistributor_SameSeedSameResult(t *testing.T) {
	games := makeGames(50)

	a, err := newTestRedistributor(99).Redistribute(games, models.DefaultDistribution())
	require.NoError(t, err)
	b, err := newTestRedistributor(99).Redistribute(games, models.DefaultDistribution())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRatingRedistributor_EmptyInput(t *testing.T) {
	out, err := newTestRedistributor(1).Redistribute(nil, models.DefaultDistribution())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRatingRedistributor_NarrowBucket(t *testing.T) {
	spec := models.DistributionSpec{Buckets: []models.Bucket{
		{Lower: 7.3, Upper: 7.3, Fraction: 1},
	}}

	out, err := newTestRedistributor(3).Redistribute(makeGames(5), spec)
	require.NoError(t, err)
	for _, g := range out {
		require.NotNil(t, g.Rating)
		assert.InDelta(t, 7.3, *g.Rating, 1e-9)
	}
}

func TestRatingRedistributor_RoundingStaysInBucket(t *testing.T) {
	spec := models.DistributionSpec{Buckets: []models.Bucket{
		{Lower: 2.04, Upper: 2.16, Fraction: 1},
	}}

	out, err := newTestRedistributor(11).Redistribute(makeGames(200), spec)
	require.NoError(t, err)
	for _, g := range out {
		r := *g.Rating
		assert.True(t, spec.Buckets[0].Contains(r), "rating %v escaped [2.04, 2.16]", r)
		assert.True(t, isOneDecimal(r))
	}
}
