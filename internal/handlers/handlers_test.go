package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/pkg/models"
)

type stubSource struct {
	games []models.Game
	err   error
}

func (s *stubSource) FetchPage(ctx context.Context, page int) (*models.CatalogPage, error) {
	return &models.CatalogPage{Results: s.games}, s.err
}

func (s *stubSource) FetchAll(ctx context.Context) ([]models.Game, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.games, nil
}

func stubGames(n int) []models.Game {
	names := []string{"Hollow Knight", "Stardew Valley", "Hollow Tower", "Doom"}
	games := make([]models.Game, n)
	for i := range games {
		games[i] = models.Game{
			ID:        i + 1,
			Name:      names[i%len(names)],
			Rating:    models.Float64Ptr(float64(i%5) + 0.4),
			Genres:    []models.NamedRef{{Name: "Indie"}},
			Platforms: []models.PlatformEntry{{Platform: &models.NamedRef{Name: "PC"}}},
		}
	}
	return games
}

type testEnv struct {
	router  *gin.Engine
	source  *stubSource
	catalog *services.CatalogService
}

func setupTestEnv(t *testing.T, games []models.Game) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	source := &stubSource{games: games}
	catalogService := services.NewCatalogService(services.CatalogServiceOptions{
		Source:        source,
		Redistributor: services.NewRatingRedistributor(rand.New(rand.NewPCG(1, 2)), logger),
		TargetCount:   300,
		Logger:        logger,
	})
	health := services.NewHealthService(nil, logger)
	cfg := &config.Config{Stats: config.StatsConfig{TopRated: 3, PageLimit: 5}}

	h := New(cfg, logger, health, catalogService, services.NewChartBoard())

	router := gin.New()
	router.GET("/health", h.Health.Check)
	router.POST("/catalog/refresh", h.Catalog.Refresh)
	router.GET("/games", h.Catalog.List)
	router.GET("/games/:id", h.Catalog.Get)
	router.GET("/stats", h.Stats.Get)
	router.GET("/charts", h.Stats.Charts)
	router.GET("/distribution", h.Distribution.Get)
	router.POST("/distribution/preview", h.Distribution.Preview)

	return &testEnv{router: router, source: source, catalog: catalogService}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) refresh(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/catalog/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestHealthHandler(t *testing.T) {
	env := setupTestEnv(t, stubGames(3))

	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestEndpointsBeforeFirstRefresh(t *testing.T) {
	env := setupTestEnv(t, stubGames(3))

	for _, target := range []string{"/games", "/games/1", "/stats", "/charts"} {
		t.Run(target, func(t *testing.T) {
			w := env.do(t, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "SNAPSHOT_NOT_FOUND", errorCode(t, w))
		})
	}
}

func TestCatalogHandler_Refresh(t *testing.T) {
	env := setupTestEnv(t, stubGames(12))

	w := env.do(t, http.MethodPost, "/catalog/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary models.SnapshotSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 12, summary.GameCount)
	assert.Equal(t, 12, summary.SourceCount)
}

func TestCatalogHandler_RefreshUpstreamFailure(t *testing.T) {
	env := setupTestEnv(t, nil)

	env.source.err = &catalog.APIError{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized", Page: 1}
	w := env.do(t, http.MethodPost, "/catalog/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_FAILED", errorCode(t, w))

	env.source.err = context.DeadlineExceeded
	w = env.do(t, http.MethodPost, "/catalog/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "REFRESH_FAILED", errorCode(t, w))
}

func TestCatalogHandler_List(t *testing.T) {
	env := setupTestEnv(t, stubGames(12))
	env.refresh(t)

	tests := []struct {
		name     string
		target   string
		total    int
		offset   int
		count    int
		hasMore  bool
		topCount int
	}{
		{name: "default page", target: "/games", total: 12, offset: 0, count: 5, hasMore: true, topCount: 3},
		{name: "last page", target: "/games?offset=10&limit=5", total: 12, offset: 10, count: 2, hasMore: false, topCount: 3},
		{name: "offset past end", target: "/games?offset=50", total: 12, offset: 12, count: 0, hasMore: false, topCount: 3},
		{name: "filtered", target: "/games?q=hollow", total: 6, offset: 0, count: 5, hasMore: true, topCount: 3},
		{name: "no match", target: "/games?q=zelda", total: 0, offset: 0, count: 0, hasMore: false, topCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, w.Code)

			var resp GameListResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.total, resp.Total)
			assert.Equal(t, tt.offset, resp.Offset)
			assert.Len(t, resp.Games, tt.count)
			assert.Equal(t, tt.hasMore, resp.HasMore)
			assert.Len(t, resp.TopRated, tt.topCount)

			for i := 1; i < len(resp.TopRated); i++ {
				assert.GreaterOrEqual(t, resp.TopRated[i-1].RatingValue(), resp.TopRated[i].RatingValue())
			}
		})
	}
}

func TestCatalogHandler_Get(t *testing.T) {
	env := setupTestEnv(t, stubGames(4))
	env.refresh(t)

	w := env.do(t, http.MethodGet, "/games/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var game models.Game
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &game))
	assert.Equal(t, "Stardew Valley", game.Name)
	require.NotNil(t, game.OriginalRating)
	assert.Equal(t, 1.4, *game.OriginalRating)

	w = env.do(t, http.MethodGet, "/games/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "GAME_NOT_FOUND", errorCode(t, w))

	w = env.do(t, http.MethodGet, "/games/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestStatsHandler(t *testing.T) {
	env := setupTestEnv(t, stubGames(8))
	env.refresh(t)

	w := env.do(t, http.MethodGet, "/stats?q=doom", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Query string                 `json:"query"`
		Stats models.AggregateResult `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "doom", resp.Query)
	assert.Equal(t, 2, resp.Stats.Total)
	require.Len(t, resp.Stats.Platforms, 1)
	assert.Equal(t, "PC", resp.Stats.Platforms[0].Label)
	assert.Equal(t, 100.0, resp.Stats.Platforms[0].Percent)
}

func TestStatsHandler_Charts(t *testing.T) {
	env := setupTestEnv(t, stubGames(8))
	env.refresh(t)

	var revisions []int
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/charts", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Charts []services.ChartHandle `json:"charts"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Charts, 3)
		assert.Equal(t, services.ChartGenres, resp.Charts[0].Kind)
		assert.Equal(t, []string{"Indie: 100.0% (8 games)"}, resp.Charts[0].Data.Datasets[0].Tooltips)
		revisions = append(revisions, resp.Charts[0].Revision)
	}
	assert.Equal(t, []int{1, 2}, revisions)
}

func TestDistributionHandler_Get(t *testing.T) {
	env := setupTestEnv(t, stubGames(50))

	w := env.do(t, http.MethodGet, "/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":0`)
	assert.Contains(t, w.Body.String(), `"bucket_counts":[0,0,0,0,0]`)

	env.refresh(t)

	w = env.do(t, http.MethodGet, "/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":50`)
	assert.Contains(t, w.Body.String(), `"bucket_counts":[3,7,14,16,10]`)
}

func TestDistributionHandler_Preview(t *testing.T) {
	env := setupTestEnv(t, stubGames(10))
	body := []byte(`{"buckets":[{"lower":0,"upper":2,"fraction":0.5},{"lower":8,"upper":10,"fraction":0.5}]}`)

	w := env.do(t, http.MethodPost, "/distribution/preview", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.refresh(t)

	w = env.do(t, http.MethodPost, "/distribution/preview?include_games=true", body)
	require.Equal(t, http.StatusOK, w.Code)

	var preview services.PreviewResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, []int{5, 5}, preview.BucketCounts)
	require.Len(t, preview.Games, 10)
	low := 0
	for _, g := range preview.Games {
		if *g.Rating <= 2 {
			low++
		}
	}
	assert.Equal(t, 5, low)
	assert.Equal(t, 10, preview.Stats.Total)

	w = env.do(t, http.MethodPost, "/distribution/preview", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Empty(t, preview.Games)
}

func TestDistributionHandler_PreviewExtremeFractions(t *testing.T) {
	env := setupTestEnv(t, stubGames(10))
	env.refresh(t)

	tests := []struct {
		name     string
		body     string
		expected []int
	}{
		{name: "sum overflows", body: `{"buckets":[{"lower":0,"upper":2,"fraction":1e308},{"lower":8,"upper":10,"fraction":1e308}]}`, expected: []int{5, 5}},
		{name: "denormal", body: `{"buckets":[{"lower":0,"upper":2,"fraction":5e-324},{"lower":8,"upper":10,"fraction":5e-324}]}`, expected: []int{5, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/distribution/preview", []byte(tt.body))
			require.Equal(t, http.StatusOK, w.Code)

			var preview services.PreviewResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
			assert.Equal(t, tt.expected, preview.BucketCounts)
		})
	}
}

func TestDistributionHandler_PreviewRejectsInvalidSpecs(t *testing.T) {
	env := setupTestEnv(t, stubGames(10))
	env.refresh(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "malformed json", body: `{"buckets":[`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "no buckets", body: `{"buckets":[]}`, status: http.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "inverted bucket", body: `{"buckets":[{"lower":6,"upper":2,"fraction":1}]}`, status: http.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "zero weight", body: `{"buckets":[{"lower":0,"upper":5,"fraction":0},{"lower":5,"upper":10,"fraction":-1}]}`, status: http.StatusUnprocessableEntity, code: "INVALID_DISTRIBUTION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/distribution/preview", []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}
