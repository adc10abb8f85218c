package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/messaging"
	"github.com/temcen/gamepulse/pkg/models"
)

var ErrGameNotFound = errors.New("game not found in snapshot")

// CatalogService runs the refresh pipeline and answers queries over the current snapshot.
type CatalogService struct {
	source        catalog.Source
	store         SnapshotStore
	publisher     messaging.Publisher
	redistributor *RatingRedistributor
	aggregator    *StatsAggregator
	distribution  models.DistributionSpec
	targetCount   int
	metrics       *CatalogMetrics
	logger        *logrus.Logger

	refreshMu sync.Mutex
}

type CatalogServiceOptions struct {
	Source        catalog.Source
	Store         SnapshotStore
	Publisher     messaging.Publisher
	Redistributor *RatingRedistributor
	Aggregator    *StatsAggregator
	Distribution  models.DistributionSpec
	TargetCount   int
	Metrics       *CatalogMetrics
	Logger        *logrus.Logger
}

func NewCatalogService(opts CatalogServiceOptions) *CatalogService {
	if opts.Store == nil {
		opts.Store = NewMemorySnapshotStore()
	}
	if opts.Publisher == nil {
		opts.Publisher = messaging.NoopPublisher{}
	}
	if opts.Aggregator == nil {
		opts.Aggregator = NewStatsAggregator(DefaultTopGenres, DefaultTopPlatforms)
	}
	if opts.Redistributor == nil {
		opts.Redistributor = NewRatingRedistributor(nil, opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewCatalogMetrics(nil, opts.Logger)
	}
	if len(opts.Distribution.Buckets) == 0 {
		opts.Distribution = models.DefaultDistribution()
	}

	return &CatalogService{
		source:        opts.Source,
		store:         opts.Store,
		publisher:     opts.Publisher,
		redistributor: opts.Redistributor,
		aggregator:    opts.Aggregator,
		distribution:  opts.Distribution,
		targetCount:   opts.TargetCount,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}
}

// Distribution returns the configured spec applied on refresh.
func (s *CatalogService) Distribution() models.DistributionSpec {
	return s.distribution
}

// Refresh fetches the catalog, trims it to the target size, applies the configured rating
// distribution and stores the result as the current snapshot.
func (s *CatalogService) Refresh(ctx context.Context) (*models.Snapshot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("catalog source not configured")
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	games, err := s.source.FetchAll(ctx)
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("fetch_error").Inc()
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	snapshot, err := s.BuildSnapshot(games)
	if err != nil {
		s.metrics.Refreshes.WithLabelValues("redistribute_error").Inc()
		return nil, err
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		s.metrics.Refreshes.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if err := s.publisher.PublishRefreshed(ctx, messaging.NewRefreshedEvent(snapshot)); err != nil {
		// The snapshot is already live; a lost event is only logged.
		s.logger.WithError(err).WithField("snapshot_id", snapshot.ID).Warn("Catalog event not published")
	}

	s.metrics.Refreshes.WithLabelValues("success").Inc()
	s.metrics.SnapshotGames.Set(float64(len(snapshot.Games)))

	s.logger.WithFields(logrus.Fields{
		"snapshot_id":  snapshot.ID,
		"source_count": snapshot.SourceCount,
		"games":        len(snapshot.Games),
		"duration":     time.Since(start),
	}).Info("Catalog refreshed")

	return snapshot, nil
}

// BuildSnapshot trims, redistributes and aggregates an already fetched game list.
func (s *CatalogService) BuildSnapshot(games []models.Game) (*models.Snapshot, error) {
	sourceCount := len(games)
	if s.targetCount > 0 && len(games) > s.targetCount {
		games = games[:s.targetCount]
	}

	timer := time.Now()
	redistributed, err := s.redistributor.Redistribute(games, s.distribution)
	if err != nil {
		return nil, fmt.Errorf("failed to redistribute ratings: %w", err)
	}
	s.metrics.RedistributeDuration.Observe(time.Since(timer).Seconds())

	return &models.Snapshot{
		ID:           uuid.New(),
		FetchedAt:    time.Now().UTC(),
		SourceCount:  sourceCount,
		Games:        redistributed,
		Stats:        s.Aggregate(redistributed),
		Distribution: s.distribution,
	}, nil
}

func (s *CatalogService) Aggregate(games []models.Game) *models.AggregateResult {
	timer := time.Now()
	defer func() {
		s.metrics.AggregateDuration.Observe(time.Since(timer).Seconds())
	}()
	return s.aggregator.Aggregate(games)
}

func (s *CatalogService) Current(ctx context.Context) (*models.Snapshot, error) {
	return s.store.Latest(ctx)
}

// SearchResult is the visible subset of the snapshot for a query.
type SearchResult struct {
	Query string                  `json:"query"`
	Games []models.Game           `json:"games"`
	Stats *models.AggregateResult `json:"stats"`
}

// Search filters the current snapshot by case-insensitive name substring and recomputes
// statistics for the matching games. An empty query matches everything.
func (s *CatalogService) Search(ctx context.Context, query string) (*SearchResult, error) {
	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.Searches.Inc()

	q := normalizeName(strings.TrimSpace(query))
	if q == "" {
		return &SearchResult{Query: query, Games: snapshot.Games, Stats: snapshot.Stats}, nil
	}

	matched := make([]models.Game, 0)
	for _, g := range snapshot.Games {
		if strings.Contains(normalizeName(g.Name), q) {
			matched = append(matched, g)
		}
	}

	return &SearchResult{
		Query: query,
		Games: matched,
		Stats: s.Aggregate(matched),
	}, nil
}

// FindGame looks a game up by its catalog id in the current snapshot.
func (s *CatalogService) FindGame(ctx context.Context, id int) (*models.Game, error) {
	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snapshot.Games {
		if snapshot.Games[i].ID == id {
			return &snapshot.Games[i], nil
		}
	}
	return nil, ErrGameNotFound
}

// PreviewResult shows what a distribution would do to the current snapshot.
type PreviewResult struct {
	Distribution models.DistributionSpec `json:"distribution"`
	BucketCounts []int                   `json:"bucket_counts"`
	Games        []models.Game           `json:"games"`
	Stats        *models.AggregateResult `json:"stats"`
}

// Preview applies spec to the snapshot's natural ratings without replacing the snapshot.
func (s *CatalogService) Preview(ctx context.Context, spec models.DistributionSpec) (*PreviewResult, error) {
	snapshot, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := BucketCounts(len(snapshot.Games), spec)
	if err != nil {
		return nil, err
	}

	natural := make([]models.Game, len(snapshot.Games))
	for i, g := range snapshot.Games {
		natural[i] = g.Clone()
		natural[i].Rating = natural[i].OriginalRating
		natural[i].OriginalRating = nil
	}

	games, err := s.redistributor.Redistribute(natural, spec)
	if err != nil {
		return nil, err
	}

	return &PreviewResult{
		Distribution: spec,
		BucketCounts: counts,
		Games:        games,
		Stats:        s.Aggregate(games),
	}, nil
}

// TopRated returns up to n games with the highest display rating; ties keep list order.
func TopRated(games []models.Game, n int) []models.Game {
	top := append([]models.Game(nil), games...)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].RatingValue() > top[j].RatingValue()
	})
	if n >= 0 && len(top) > n {
		top = top[:n]
	}
	return top
}

// normalizeName folds case after NFKC so compatibility forms such as full-width letters
// match their plain spelling. A Caser is stateful, so one is built per call.
func normalizeName(v string) string {
	return cases.Fold().String(norm.NFKC.String(v))
}
