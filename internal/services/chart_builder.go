package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/temcen/gamepulse/pkg/models"
)

type ChartKind string

const (
	ChartGenres    ChartKind = "genres"
	ChartPlatforms ChartKind = "platforms"
	ChartRatings   ChartKind = "ratings"
)

var chartPalette = []string{
	"#3b82f6", "#fb7185", "#fb923c", "#fcd34d", "#34d399", "#60a5fa", "#a78bfa", "#94a3b8",
}

var chartTypes = map[ChartKind]string{
	ChartGenres:    "pie",
	ChartPlatforms: "doughnut",
	ChartRatings:   "bar",
}

type ChartDataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data"`
	Counts          []int     `json:"counts"`
	BackgroundColor []string  `json:"background_color"`
	Tooltips        []string  `json:"tooltips"`
}

type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartHandle is the state of one rendered chart. Revision grows on every update.
type ChartHandle struct {
	ID        uuid.UUID `json:"id"`
	Kind      ChartKind `json:"kind"`
	Type      string    `json:"type"`
	Revision  int       `json:"revision"`
	Data      ChartData `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChartHandles maps each chart kind to its handle. The caller owns the map and any
// locking around it.
type ChartHandles map[ChartKind]*ChartHandle

// RenderOrUpdate replaces the data of an existing handle or creates a new one.
func RenderOrUpdate(handles ChartHandles, kind ChartKind, data ChartData) *ChartHandle {
	if h, ok := handles[kind]; ok {
		h.Data = data
		h.Revision++
		h.UpdatedAt = time.Now()
		return h
	}

	h := &ChartHandle{
		ID:        uuid.New(),
		Kind:      kind,
		Type:      chartTypes[kind],
		Revision:  1,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	handles[kind] = h
	return h
}

// RenderAll pushes all three breakdowns of stats into handles.
func RenderAll(handles ChartHandles, stats *models.AggregateResult) []*ChartHandle {
	return []*ChartHandle{
		RenderOrUpdate(handles, ChartGenres, BuildChartData(stats.Genres, "")),
		RenderOrUpdate(handles, ChartPlatforms, BuildChartData(stats.Platforms, "")),
		RenderOrUpdate(handles, ChartRatings, BuildChartData(stats.RatingBuckets, "% of games")),
	}
}

func BuildChartData(entries []models.CategoryStat, seriesLabel string) ChartData {
	ds := ChartDataset{
		Label:           seriesLabel,
		Data:            make([]float64, len(entries)),
		Counts:          make([]int, len(entries)),
		BackgroundColor: make([]string, len(entries)),
		Tooltips:        make([]string, len(entries)),
	}
	labels := make([]string, len(entries))

	for i, e := range entries {
		labels[i] = e.Label
		ds.Data[i] = e.Percent
		ds.Counts[i] = e.Count
		ds.BackgroundColor[i] = chartPalette[i%len(chartPalette)]
		ds.Tooltips[i] = fmt.Sprintf("%s: %.1f%% (%d games)", e.Label, e.Percent, e.Count)
	}

	return ChartData{Labels: labels, Datasets: []ChartDataset{ds}}
}

// ChartBoard owns one set of chart handles and serializes access to it.
type ChartBoard struct {
	mu      sync.Mutex
	handles ChartHandles
}

func NewChartBoard() *ChartBoard {
	return &ChartBoard{handles: make(ChartHandles)}
}

// Render updates every chart from stats and returns copies of the handles.
func (b *ChartBoard) Render(stats *models.AggregateResult) []ChartHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	rendered := RenderAll(b.handles, stats)
	out := make([]ChartHandle, len(rendered))
	for i, h := range rendered {
		out[i] = *h
	}
	return out
}
