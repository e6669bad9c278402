package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/health"
	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// SiteScraper turns an official website URL into a signal
type SiteScraper interface {
	Scrape(ctx context.Context, siteURL string) *model.Signal
}

// Overpass queries OSM elements near the POI through a list of mirrors
type Overpass struct {
	http     *HTTP
	tracker  *health.Tracker
	scraper  SiteScraper
	mirrors  []string
	radius   int
	timeout  time.Duration
	jitter   time.Duration
	language string
	logger   *zap.Logger

	// overridable in tests
	sleep  func(ctx context.Context, d time.Duration) error
	random func(max time.Duration) time.Duration
}

// NewOverpass creates the client. scraper may be nil.
func NewOverpass(h *HTTP, tracker *health.Tracker, scraper SiteScraper, cfg model.OverpassConfig, language string, logger *zap.Logger) *Overpass {
	mirrors := cfg.Mirrors
	if len(mirrors) == 0 {
		mirrors = model.DefaultOverpassMirrors
	}
	radius := cfg.RadiusMeters
	if radius <= 0 {
		radius = 50
	}
	return &Overpass{
		http:     h,
		tracker:  tracker,
		scraper:  scraper,
		mirrors:  mirrors,
		radius:   radius,
		timeout:  cfg.AttemptTimeout,
		jitter:   cfg.MaxJitter,
		language: language,
		logger:   logging.Or(logger),
		sleep:    sleepCtx,
		random:   randomJitter,
	}
}

// Name returns the provider name
func (o *Overpass) Name() string {
	return model.SourceOverpass
}

type overpassResponse struct {
	Elements []struct {
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// Fetch tries each mirror in order. When every mirror fails the provider is
// marked degraded and later calls return without touching the network.
func (o *Overpass) Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error) {
	if o.tracker != nil && o.tracker.IsDegraded(o.Name()) {
		return nil, nil
	}
	if poi.Lat == 0 && poi.Lng == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`[out:json][timeout:4];nwr(around:%d,%f,%f)["name"];out tags;`, o.radius, poi.Lat, poi.Lng)

	var lastErr error
	failed := 0
	for _, mirror := range o.mirrors {
		if err := o.sleep(ctx, o.random(o.jitter)); err != nil {
			return nil, eris.Wrap(err, "overpass: cancelled")
		}

		res, err := o.query(ctx, mirror, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "overpass: cancelled")
			}
			lastErr = err
			if errors.Is(err, ErrLocalPacing) {
				o.logger.Debug("overpass: mirror skipped, no rate slot",
					zap.String("mirror", mirror))
				continue
			}
			o.logger.Debug("overpass: mirror failed",
				zap.String("mirror", mirror),
				zap.Error(err))
			failed++
			continue
		}

		if o.tracker != nil {
			o.tracker.RecordSuccess(o.Name())
		}
		return o.signalFrom(ctx, poi, res), nil
	}

	// only mirrors that were actually asked and failed count against the provider
	if failed < len(o.mirrors) {
		return nil, eris.Wrap(lastErr, "overpass: no mirror answered")
	}

	if o.tracker != nil {
		reason := "all mirrors failed"
		if lastErr != nil {
			reason = lastErr.Error()
		}
		o.tracker.MarkDegraded(o.Name(), reason)
	}
	o.logger.Warn("overpass: all mirrors exhausted",
		zap.Int("mirrors", len(o.mirrors)),
		zap.Error(lastErr))
	return nil, eris.Wrap(lastErr, "overpass: all mirrors exhausted")
}

func (o *Overpass) query(ctx context.Context, mirror, query string) (*overpassResponse, error) {
	resp, err := o.http.Get(ctx, o.Name(), mirror+"?data="+url.QueryEscape(query), o.timeout, nil)
	if err != nil {
		return nil, err
	}
	var out overpassResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, eris.Wrapf(err, "overpass: invalid JSON from %s", mirror)
	}
	return &out, nil
}

func (o *Overpass) signalFrom(ctx context.Context, poi model.Poi, res *overpassResponse) *model.Signal {
	target := normalize.PoiName(poi.Name)
	if target == "" {
		return nil
	}
	lang := poi.Lang(o.language)

	for _, el := range res.Elements {
		name := normalize.PoiName(el.Tags["name"])
		if name == "" || !(strings.Contains(name, target) || strings.Contains(target, name)) {
			continue
		}

		description := firstTag(el.Tags, "description:"+lang, "description", "comment")
		website := firstTag(el.Tags, "website", "url", "contact:website")

		if description != "" {
			return &model.Signal{
				Type:       model.SignalDescription,
				Source:     o.Name(),
				Content:    description,
				Link:       website,
				Confidence: 0.85,
			}
		}
		if website == "" {
			continue
		}
		if o.scraper != nil {
			if sig := o.scraper.Scrape(ctx, website); sig != nil {
				return sig
			}
		}
		return &model.Signal{
			Type:       model.SignalLinkOnly,
			Source:     o.Name(),
			Link:       website,
			Confidence: 0.8,
		}
	}
	return nil
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
