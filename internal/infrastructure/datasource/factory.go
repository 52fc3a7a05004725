package datasource

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/domain/roster"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/circuitbreaker"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/retry"
)

// Factory builds the table.Source for a view. Remote views pointing at the
// same host share one circuit breaker.
type Factory struct {
	remote     config.RemoteConfig
	client     *http.Client
	store      RosterStore
	cache      DatasetCache
	defaultTTL time.Duration
	log        *logger.Logger

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithRosterStore enables postgres views.
func WithRosterStore(s RosterStore) FactoryOption {
	return func(f *Factory) { f.store = s }
}

// WithDatasetCache puts a cache in front of every view that does not opt out.
func WithDatasetCache(c DatasetCache, defaultTTL time.Duration) FactoryOption {
	return func(f *Factory) {
		f.cache = c
		f.defaultTTL = defaultTTL
	}
}

// WithHTTPClient overrides the client used by remote views.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.client = c }
}

// NewFactory creates a source factory.
func NewFactory(remote config.RemoteConfig, log *logger.Logger, opts ...FactoryOption) *Factory {
	if log == nil {
		log = logger.Nop()
	}
	f := &Factory{
		remote:   remote,
		log:      log.Named("datasource"),
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: remote.RequestTimeout}
	}
	return f
}

// Build returns the source behind v.
func (f *Factory) Build(v config.ViewConfig) (table.Source, error) {
	var src table.Source

	switch v.Source.Kind {
	case config.SourceStatic:
		src = NewStatic(nil, v.Source.Fixture, v.Source.Delay)

	case config.SourceRemote:
		u, err := f.resolveURL(v.Source.URL)
		if err != nil {
			return nil, err
		}
		src = NewRemote(RemoteConfig{
			URL:         u.String(),
			Timeout:     f.remote.RequestTimeout,
			MaxAttempts: f.remote.MaxRetries,
			Delay:       v.Source.Delay,
		}, f.client, f.breaker(u.Host), f.log.With(logger.View(v.Name)))

	case config.SourcePostgres:
		if f.store == nil {
			return nil, shared.NewDomainError("datasource", "Build", shared.ErrInvalidState,
				"view "+v.Name+" needs a database but none is configured")
		}
		kind, err := roster.ParseKind(v.Source.Table)
		if err != nil {
			return nil, err
		}
		src = NewRoster(f.store, kind)

	default:
		return nil, shared.NewDomainError("datasource", "Build", shared.ErrInvalidInput,
			fmt.Sprintf("unknown source kind %q", v.Source.Kind))
	}

	if f.cache != nil && v.Source.CacheTTL >= 0 && v.Source.Kind != config.SourceStatic {
		ttl := v.Source.CacheTTL
		if ttl == 0 {
			ttl = f.defaultTTL
		}
		src = NewCached(src, f.cache, v.Name, ttl, f.log.With(logger.View(v.Name)))
	}
	return src, nil
}

func (f *Factory) resolveURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, shared.WrapError("datasource", "Build", shared.ErrInvalidInput, "bad url", err)
	}
	if u.IsAbs() {
		return u, nil
	}
	if f.remote.BaseURL == "" {
		return nil, shared.NewDomainError("datasource", "Build", shared.ErrInvalidInput,
			"relative url "+raw+" needs REMOTE_BASE_URL")
	}
	base, err := url.Parse(strings.TrimSuffix(f.remote.BaseURL, "/") + "/")
	if err != nil {
		return nil, shared.WrapError("datasource", "Build", shared.ErrInvalidInput, "bad REMOTE_BASE_URL", err)
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(u.Path, "/"), RawQuery: u.RawQuery}), nil
}

func (f *Factory) breaker(host string) *circuitbreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	opts := []circuitbreaker.Option{
		// 4xx responses and cancellations say nothing about the host's health.
		circuitbreaker.WithIsFailure(retry.IsRetryable),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			f.log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	}
	if f.remote.CircuitBreakerThreshold > 0 {
		opts = append(opts, circuitbreaker.WithFailureThreshold(f.remote.CircuitBreakerThreshold))
	}
	if f.remote.CircuitBreakerTimeout > 0 {
		opts = append(opts, circuitbreaker.WithTimeout(f.remote.CircuitBreakerTimeout))
	}
	cb := circuitbreaker.New("remote:"+host, opts...)
	f.breakers[host] = cb
	return cb
}
