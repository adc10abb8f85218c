package services

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/temcen/gamepulse/pkg/models"
)

const (
	DefaultTopGenres    = 8
	DefaultTopPlatforms = 6
)

// RatingBucketLabels names the fixed aggregation ranges [0,2) [2,4) [4,6) [6,8) [8,10].
var RatingBucketLabels = []string{"0-2", "2-4", "4-6", "6-8", "8-10"}

// StatsAggregator computes genre, platform and rating-bucket breakdowns of a game list.
type StatsAggregator struct {
	topGenres    int
	topPlatforms int
}

func NewStatsAggregator(topGenres, topPlatforms int) *StatsAggregator {
	if topGenres <= 0 {
		topGenres = DefaultTopGenres
	}
	if topPlatforms <= 0 {
		topPlatforms = DefaultTopPlatforms
	}
	return &StatsAggregator{
		topGenres:    topGenres,
		topPlatforms: topPlatforms,
	}
}

// labelCounter counts labels while remembering the order they were first seen.
type labelCounter struct {
	order  []string
	counts map[string]int
}

func newLabelCounter() *labelCounter {
	return &labelCounter{counts: make(map[string]int)}
}

func (lc *labelCounter) add(label string) {
	if _, ok := lc.counts[label]; !ok {
		lc.order = append(lc.order, label)
	}
	lc.counts[label]++
}

// top returns the n most frequent labels; equal counts keep first-seen order.
func (lc *labelCounter) top(n, total int) []models.CategoryStat {
	out := make([]models.CategoryStat, 0, len(lc.order))
	for _, label := range lc.order {
		c := lc.counts[label]
		out = append(out, models.CategoryStat{
			Label:   label,
			Count:   c,
			Percent: percentOf(c, total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Aggregate never fails; missing fields fall back to "Unknown" and a zero rating.
func (a *StatsAggregator) Aggregate(games []models.Game) *models.AggregateResult {
	total := len(games)
	genres := newLabelCounter()
	platforms := newLabelCounter()
	buckets := make([]int, len(RatingBucketLabels))
	ratings := make([]float64, 0, total)

	for _, g := range games {
		seenGenres := make(map[string]struct{}, len(g.Genres))
		for _, ge := range g.Genres {
			if strings.TrimSpace(ge.Name) == "" {
				continue
			}
			if _, ok := seenGenres[ge.Name]; ok {
				continue
			}
			seenGenres[ge.Name] = struct{}{}
			genres.add(ge.Name)
		}

		seenPlatforms := make(map[string]struct{}, len(g.Platforms))
		for _, p := range g.Platforms {
			name := p.Label()
			if _, ok := seenPlatforms[name]; ok {
				continue
			}
			seenPlatforms[name] = struct{}{}
			platforms.add(name)
		}

		r := g.RatingValue()
		buckets[ratingBucket(r)]++
		ratings = append(ratings, r)
	}

	result := &models.AggregateResult{
		Total:         total,
		Genres:        genres.top(a.topGenres, total),
		Platforms:     platforms.top(a.topPlatforms, total),
		RatingBuckets: make([]models.CategoryStat, len(buckets)),
		GenreKinds:    len(genres.order),
		PlatformKinds: len(platforms.order),
	}
	for i, c := range buckets {
		result.RatingBuckets[i] = models.CategoryStat{
			Label:   RatingBucketLabels[i],
			Count:   c,
			Percent: percentOf(c, total),
		}
	}
	if total > 0 {
		result.AverageRating = roundTenth(stat.Mean(ratings, nil))
	}

	return result
}

func ratingBucket(r float64) int {
	switch {
	case r < 2:
		return 0
	case r < 4:
		return 1
	case r < 6:
		return 2
	case r < 8:
		return 3
	default:
		return 4
	}
}

func percentOf(count, total int) float64 {
	if total == 0 {
		total = 1
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}
