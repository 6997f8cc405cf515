package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

// Item is one playable catalog entry.
type Item struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration"`
	SmallImageURL   string `json:"smallImageUrl"`
	LargeImageURL   string `json:"largeImageUrl"`
	AudioURL        string `json:"audioUrl"`
}

// Bundle is the supplementary content loaded at turn start. Fields stay nil
// when the tier does not qualify or the fetch failed.
type Bundle struct {
	Pack        *Item
	SleepSingle *Item
	SleepSounds *Item
}

type Client interface {
	// FetchBundle loads the tier-gated content concurrently. It never
	// returns an error: enrichment failures are non-fatal and leave the
	// corresponding field unset.
	FetchBundle(ctx context.Context, tier types.UserType) *Bundle
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(baseLog *logger.Logger, baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &client{
		log:     baseLog.With("service", "ContentClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) FetchBundle(ctx context.Context, tier types.UserType) *Bundle {
	bundle := &Bundle{}
	if c.baseURL == "" {
		return bundle
	}

	authenticated := tier == types.UserTypeAuthFree || tier == types.UserTypeSubscribed

	g, gctx := errgroup.WithContext(ctx)
	if authenticated {
		g.Go(func() error {
			bundle.Pack = c.fetch(gctx, "packs/current", tier)
			return nil
		})
	}
	g.Go(func() error {
		bundle.SleepSingle = c.fetch(gctx, "singles/sleep", tier)
		return nil
	})
	if tier == types.UserTypeSubscribed {
		g.Go(func() error {
			bundle.SleepSounds = c.fetch(gctx, "sleepsounds/slumber", tier)
			return nil
		})
	}
	_ = g.Wait()
	return bundle
}

func (c *client) fetch(ctx context.Context, slug string, tier types.UserType) *Item {
	endpoint := fmt.Sprintf("%s/content/%s?tier=%s", c.baseURL, slug, url.QueryEscape(string(tier)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Warn("Content request build failed", "slug", slug, "error", err)
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Content fetch failed", "slug", slug, "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Content fetch returned non-200", "slug", slug, "status", resp.StatusCode)
		return nil
	}
	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		c.log.Warn("Content decode failed", "slug", slug, "error", err)
		return nil
	}
	if item.ID == 0 {
		return nil
	}
	return &item
}
