package models

import (
	"time"

	"github.com/google/uuid"
)

type CategoryStat struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

type AggregateResult struct {
	Total         int            `json:"total"`
	Genres        []CategoryStat `json:"genres"`
	Platforms     []CategoryStat `json:"platforms"`
	RatingBuckets []CategoryStat `json:"rating_buckets"`
	GenreKinds    int            `json:"genre_kinds"`
	PlatformKinds int            `json:"platform_kinds"`
	AverageRating float64        `json:"average_rating"`
}

// Snapshot is one refreshed and redistributed catalog together with its statistics.
type Snapshot struct {
	ID           uuid.UUID        `json:"id"`
	FetchedAt    time.Time        `json:"fetched_at"`
	SourceCount  int              `json:"source_count"`
	Games        []Game           `json:"games"`
	Stats        *AggregateResult `json:"stats"`
	Distribution DistributionSpec `json:"distribution"`
}

type SnapshotSummary struct {
	ID          uuid.UUID        `json:"id"`
	FetchedAt   time.Time        `json:"fetched_at"`
	SourceCount int              `json:"source_count"`
	GameCount   int              `json:"game_count"`
	Stats       *AggregateResult `json:"stats"`
}

func (s *Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:          s.ID,
		FetchedAt:   s.FetchedAt,
		SourceCount: s.SourceCount,
		GameCount:   len(s.Games),
		Stats:       s.Stats,
	}
}
