package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/pkg/models"
)

// Source supplies raw catalog records.
type Source interface {
	FetchPage(ctx context.Context, page int) (*models.CatalogPage, error)
	FetchAll(ctx context.Context) ([]models.Game, error)
}

// APIError is returned for non-2xx upstream responses.
type APIError struct {
	StatusCode int
	Status     string
	Page       int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog API page %d: HTTP %s", e.Page, e.Status)
}

// PageObserver is notified after every fetched page.
type PageObserver func(page, items int)

type RAWGClient struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	Pages     int
	Ordering  string
	PageDelay time.Duration
	Client    *http.Client

	logger   *logrus.Logger
	observer PageObserver
}

func NewRAWGClient(cfg config.CatalogConfig, logger *logrus.Logger) *RAWGClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RAWGClient{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		PageSize:  cfg.PageSize,
		Pages:     cfg.Pages,
		Ordering:  cfg.Ordering,
		PageDelay: cfg.PageDelay,
		Client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// OnPage registers fn to be called after each successful page fetch.
func (c *RAWGClient) OnPage(fn PageObserver) {
	c.observer = fn
}

func (c *RAWGClient) FetchPage(ctx context.Context, page int) (*models.CatalogPage, error) {
	u, err := url.Parse(c.BaseURL + "/games")
	if err != nil {
		return nil, fmt.Errorf("invalid catalog base URL: %w", err)
	}
	qs := u.Query()
	if c.APIKey != "" {
		qs.Set("key", c.APIKey)
	}
	qs.Set("page", strconv.Itoa(page))
	if c.PageSize > 0 {
		qs.Set("page_size", strconv.Itoa(c.PageSize))
	}
	if c.Ordering != "" {
		qs.Set("ordering", c.Ordering)
	}
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gamepulse/1.0")

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request for page %d failed: %w", page, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &APIError{StatusCode: res.StatusCode, Status: res.Status, Page: page}
	}

	var out models.CatalogPage
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode catalog page %d: %w", page, err)
	}
	return &out, nil
}

// FetchAll walks pages 1..Pages, pausing PageDelay between requests, and stops early once
// the API reports no next page. The first failing page aborts the whole fetch.
func (c *RAWGClient) FetchAll(ctx context.Context) ([]models.Game, error) {
	pages := c.Pages
	if pages <= 0 {
		pages = 1
	}

	var all []models.Game
	for p := 1; p <= pages; p++ {
		c.logger.WithFields(logrus.Fields{
			"page":  p,
			"pages": pages,
		}).Debug("Fetching catalog page")

		data, err := c.FetchPage(ctx, p)
		if err != nil {
			c.logger.WithError(err).WithField("page", p).Error("Failed to fetch catalog page")
			return nil, err
		}
		all = append(all, data.Results...)
		if c.observer != nil {
			c.observer(p, len(data.Results))
		}

		if data.Next == "" {
			c.logger.WithField("page", p).Info("Catalog reports no next page")
			break
		}
		if p == pages {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PageDelay):
		}
	}

	c.logger.WithField("games", len(all)).Info("Catalog fetch completed")
	return all, nil
}
