// Package app contains the orchestration services that compose the token
// guardian, the response cache, and the upstream client.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	trailhead "github.com/eugener/trailhead/internal"
	"github.com/eugener/trailhead/internal/cache"
	"github.com/eugener/trailhead/internal/storage"
	"github.com/eugener/trailhead/internal/telemetry"
	"github.com/eugener/trailhead/internal/token"
)

// PerPage is the fixed upstream page size.
const PerPage = 200

// Default TTLs. The filtered set is cached short so a goal update shows up
// quickly; the raw listing is cached longer so a filter-rule change without
// a hard refresh still reuses the unfiltered pages.
const (
	DefaultFilteredTTL = 15 * time.Minute
	DefaultRawTTL      = time.Hour
)

// Lister fetches one page of upstream activities.
type Lister interface {
	ListActivities(ctx context.Context, accessToken string, page, perPage int) ([]trailhead.Activity, error)
}

// Fetcher composes the token guardian and the response cache around the
// paginated upstream listing call.
type Fetcher struct {
	guardian    *token.Guardian
	lister      Lister
	creds       storage.CredentialStore
	cache       *cache.Memory[[]trailhead.Activity]
	filter      trailhead.Filter
	filteredTTL time.Duration
	rawTTL      time.Duration
	metrics     *telemetry.Metrics // nil = no metrics
}

// NewFetcher creates a Fetcher. metrics may be nil.
func NewFetcher(
	guardian *token.Guardian,
	lister Lister,
	creds storage.CredentialStore,
	c *cache.Memory[[]trailhead.Activity],
	filter trailhead.Filter,
	metrics *telemetry.Metrics,
) *Fetcher {
	return &Fetcher{
		guardian:    guardian,
		lister:      lister,
		creds:       creds,
		cache:       c,
		filter:      filter,
		filteredTTL: DefaultFilteredTTL,
		rawTTL:      DefaultRawTTL,
		metrics:     metrics,
	}
}

// SetTTLs overrides the cache TTLs; zero values keep the defaults.
func (f *Fetcher) SetTTLs(filtered, raw time.Duration) {
	if filtered > 0 {
		f.filteredTTL = filtered
	}
	if raw > 0 {
		f.rawTTL = raw
	}
}

// FilteredActivities returns the athlete's activities matching the filter,
// serving from the cache inside the TTL window. On a miss it pulls the raw
// listing (itself cached under a separate key), applies the type and marker
// filter, and caches the filtered result under its own key and TTL.
func (f *Fetcher) FilteredActivities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error) {
	key := filteredKey(athleteID)
	if acts, ok := f.cache.Get(key); ok {
		f.countCache(true)
		return acts, nil
	}
	f.countCache(false)

	raw, err := f.RawActivities(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	filtered := make([]trailhead.Activity, 0, len(raw))
	for _, a := range raw {
		if f.filter.Match(a) {
			a.AthleteID = athleteID
			filtered = append(filtered, a)
		}
	}

	f.cache.Set(key, filtered, f.filteredTTL)
	return filtered, nil
}

// RawActivities returns the athlete's full unfiltered listing, fetching all
// upstream pages on a cache miss.
//
// Pagination ends at the first empty page. A 401 mid-sequence triggers
// exactly one forced token refresh and a retry of the current page only, not
// the whole sequence; a second 401 after that is fatal for the whole fetch.
func (f *Fetcher) RawActivities(ctx context.Context, athleteID int64) ([]trailhead.Activity, error) {
	key := rawKey(athleteID)
	if acts, ok := f.cache.Get(key); ok {
		f.countCache(true)
		return acts, nil
	}
	f.countCache(false)

	cred, err := f.creds.GetCredential(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	accessToken, err := f.guardian.EnsureValid(ctx, cred, f.creds)
	if err != nil {
		return nil, err
	}

	var all []trailhead.Activity
	refreshed := false
	for page := 1; ; {
		items, err := f.lister.ListActivities(ctx, accessToken, page, PerPage)
		if err != nil {
			if errors.Is(err, trailhead.ErrUnauthorized) && !refreshed {
				// The upstream rejected a token the guardian judged
				// healthy (clock skew or revocation). One forced
				// refresh, then retry this page.
				slog.LogAttrs(ctx, slog.LevelInfo, "access token rejected, forcing refresh",
					slog.Int64("athlete_id", athleteID),
					slog.Int("page", page),
				)
				accessToken, err = f.guardian.ForceRefresh(ctx, cred, f.creds)
				if err != nil {
					return nil, err
				}
				refreshed = true
				continue
			}
			if errors.Is(err, trailhead.ErrUnauthorized) {
				return nil, fmt.Errorf("athlete %d: token rejected after forced refresh: %w",
					athleteID, trailhead.ErrReauthRequired)
			}
			return nil, err
		}
		f.countUpstreamPage()
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		page++
	}

	f.cache.Set(key, all, f.rawTTL)
	return all, nil
}

// Invalidate drops both cache entries for an athlete, forcing the next read
// to hit upstream.
func (f *Fetcher) Invalidate(athleteID int64) {
	f.cache.Delete(filteredKey(athleteID))
	f.cache.Delete(rawKey(athleteID))
}

func filteredKey(athleteID int64) string {
	return "activities:filtered:" + strconv.FormatInt(athleteID, 10)
}

func rawKey(athleteID int64) string {
	return "activities:raw:" + strconv.FormatInt(athleteID, 10)
}

func (f *Fetcher) countCache(hit bool) {
	if f.metrics == nil {
		return
	}
	if hit {
		f.metrics.CacheHits.Inc()
	} else {
		f.metrics.CacheMisses.Inc()
	}
}

func (f *Fetcher) countUpstreamPage() {
	if f.metrics != nil {
		f.metrics.UpstreamPages.Inc()
	}
}
