package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rax0nrax/punyfunny/api_registry/internal/records"
	"github.com/rax0nrax/punyfunny/pkg/cache"
	"github.com/rax0nrax/punyfunny/pkg/idn"
)

// ErrBadLabel wraps labels that cannot be turned into a display form.
var ErrBadLabel = errors.New("malformed label")

type ResolverOptions struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	MaxEntries  int
}

func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		TTL:         30 * time.Second,
		NegativeTTL: 5 * time.Second,
		MaxEntries:  10000,
	}
}

// Resolver maps a raw path or host label to its record through a TTL cache.
// Only not-found results are cached negatively; store failures are retried
// on the next request.
type Resolver struct {
	store records.Store
	cache *cache.Cache[*records.Record]
}

func NewResolver(store records.Store, opts ResolverOptions, hooks cache.MetricsHooks) *Resolver {
	return &Resolver{
		store: store,
		cache: cache.New[*records.Record](cache.Options{
			TTL:                  opts.TTL,
			StaleWhileRevalidate: opts.TTL,
			NegativeTTL:          opts.NegativeTTL,
			CacheError:           func(err error) bool { return errors.Is(err, records.ErrNotFound) },
			MaxEntries:           opts.MaxEntries,
		}, hooks),
	}
}

// Label turns a raw label from a path or host into display form. The raw
// value may be percent-encoded, wire-encoded, or both.
func Label(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	if raw == "" || strings.ContainsAny(raw, "./") {
		return "", fmt.Errorf("%w: %q", ErrBadLabel, raw)
	}
	display, err := idn.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadLabel, err)
	}
	return display, nil
}

// Resolve returns the display label and its record. A missing record is
// reported as records.ErrNotFound alongside the decoded label.
func (r *Resolver) Resolve(ctx context.Context, raw string) (string, *records.Record, error) {
	label, err := Label(raw)
	if err != nil {
		return "", nil, err
	}
	rec, err := r.cache.Get(ctx, label, r.load)
	if err != nil {
		return label, nil, err
	}
	return label, rec.Clone(), nil
}

func (r *Resolver) load(ctx context.Context, label string) (*records.Record, error) {
	return r.store.Get(ctx, label)
}

// Invalidate drops a cached label so the next request reads the store.
func (r *Resolver) Invalidate(label string) {
	r.cache.Delete(label)
}

// OnChange is a records.ChangeFunc that invalidates written labels.
func (r *Resolver) OnChange(_ context.Context, c records.Change) {
	r.Invalidate(c.Label)
}
