// Package area resolves free-text pedestrian sensor locations to canonical
// geocoded areas. Resolutions are memoized for the run and persisted across
// runs; failures land on a skip-list so a name is looked up at most once
// per run.
package area

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/jonboulle/clockwork"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/observability"
)

// aliases maps cleaned location spellings to the canonical spelling used by
// later files of the pedestrian dataset. Keyed by normalized (lowercased)
// form of the variant.
var aliases = map[string]string{
	"lincoln - swanston (w)":              "Lincoln - Swanston (West)",
	"harbour esplanade - pedestrian path": "Harbour Esplanade (West) - Pedestrian Path",
	"harbour esplanade - bike path":       "Harbour Esplanade (West) - Bike Path",
	"rmit bld 80 - 445 swanston street":   "Rmit Building 80",
}

// Resolver implements domain.AreaResolver backed by a persisted mapping
// store and an external geocoder. Geocoder may be nil, in which case only
// previously persisted mappings resolve.
type Resolver struct {
	store    *Store
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock

	mu      sync.Mutex
	cache   map[string]domain.CanonicalArea
	skipped map[string]string // normalized key → raw name, for this run
}

// NewResolver loads the persisted mapping table into memory and returns a
// ready resolver.
func NewResolver(store *Store, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) (*Resolver, error) {
	cache, err := store.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("area mappings loaded", "count", len(cache))
	return &Resolver{
		store:    store,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
		clock:    clock,
		cache:    cache,
		skipped:  make(map[string]string),
	}, nil
}

// Resolve maps a raw location name to its canonical area. Whitespace and
// case variants of the same name normalize to the same result. A cache hit
// never touches the geocoder; a failed lookup puts the name on the skip-list
// for the rest of the run and is never fatal.
func (r *Resolver) Resolve(ctx context.Context, rawName string) (domain.CanonicalArea, bool) {
	canonical := CleanName(rawName)
	if canonical == "" {
		return domain.CanonicalArea{}, false
	}
	key := strings.ToLower(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if area, ok := r.cache[key]; ok {
		r.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return area, true
	}
	if _, ok := r.skipped[key]; ok {
		r.metrics.GeocodeCache.WithLabelValues("skip").Inc()
		return domain.CanonicalArea{}, false
	}
	r.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	if r.geocoder == nil {
		r.skip(key, rawName)
		return domain.CanonicalArea{}, false
	}

	result, err := r.geocoder.Geocode(ctx, canonical)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrAreaNotFound) {
			outcome = "not_found"
		}
		r.metrics.GeocodeLookups.WithLabelValues(outcome).Inc()
		r.logger.Warn("geocoding failed", "area", canonical, "error", err)
		r.skip(key, rawName)
		return domain.CanonicalArea{}, false
	}
	r.metrics.GeocodeLookups.WithLabelValues("success").Inc()

	area := domain.CanonicalArea{Name: canonical, Geo: result.Geo}
	r.cache[key] = area
	if err := r.store.Put(key, area, r.clock.Now()); err != nil {
		// The in-memory mapping still serves this run; only persistence
		// for future runs is lost.
		r.logger.Warn("persisting area mapping failed", "area", canonical, "error", err)
	}
	return area, true
}

func (r *Resolver) skip(key, rawName string) {
	r.skipped[key] = rawName
	if err := r.store.MarkUnresolved(key, rawName, r.clock.Now()); err != nil {
		r.logger.Warn("persisting skip-list entry failed", "area", rawName, "error", err)
	}
}

// SkippedCount reports how many distinct names failed to resolve this run.
func (r *Resolver) SkippedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.skipped)
}

// Skipped returns the raw names that failed to resolve this run.
func (r *Resolver) Skipped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.skipped))
	for _, raw := range r.skipped {
		names = append(names, raw)
	}
	return names
}

// CleanName standardizes a raw location name: hyphens get uniform spacing,
// runs of whitespace collapse, words are title-cased, and known alias
// spellings map to their canonical form.
func CleanName(raw string) string {
	s := strings.ReplaceAll(raw, "-", " - ")
	s = strings.Join(strings.Fields(s), " ")
	s = titleCase(s)
	if canonical, ok := aliases[strings.ToLower(s)]; ok {
		return canonical
	}
	return s
}

// titleCase uppercases any letter following a non-letter, so bracketed
// qualifiers like "(west)" become "(West)".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			b.WriteRune(r)
			prevLetter = false
			continue
		}
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = true
	}
	return b.String()
}
