package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/circuitbreaker"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/retry"
)

// maxPayload is the default cap on the size of a remote rows document.
const maxPayload = 16 << 20

// ErrPayloadTooLarge is returned when a remote document exceeds the
// configured payload cap.
var ErrPayloadTooLarge = errors.New("remote payload too large")

// RemoteConfig configures a Remote source.
type RemoteConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	Delay       time.Duration

	// MaxPayload caps the response body; zero means 16 MiB.
	MaxPayload int64
}

// Remote fetches rows from an HTTP endpoint returning JSON. Server errors
// and transport failures are retried; 4xx responses are not. A circuit
// breaker shared between views of the same host stops retry storms.
type Remote struct {
	cfg     RemoteConfig
	client  *http.Client
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
}

// NewRemote creates a remote source. breaker may be nil.
func NewRemote(cfg RemoteConfig, client *http.Client, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *Remote {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = maxPayload
	}
	if log == nil {
		log = logger.Nop()
	}
	r := &Remote{cfg: cfg, client: client, breaker: breaker, log: log}
	r.retrier = retry.RemoteSourceRetrier(cfg.MaxAttempts,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			r.log.Warn("remote fetch failed, retrying",
				logger.String("url", cfg.URL),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	return r
}

// Load fetches and decodes the rows.
func (r *Remote) Load(ctx context.Context) (table.Dataset, error) {
	if err := sleep(ctx, r.cfg.Delay); err != nil {
		return nil, err
	}
	return retry.DoWithData(ctx, r.retrier, func(ctx context.Context) (table.Dataset, error) {
		var rows table.Dataset
		call := func(ctx context.Context) error {
			var err error
			rows, err = r.fetch(ctx)
			return err
		}
		var err error
		if r.breaker != nil {
			err = r.breaker.Execute(ctx, call)
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
				return nil, retry.Permanent(err)
			}
		} else {
			err = call(ctx)
		}
		return rows, err
	})
}

func (r *Remote) fetch(ctx context.Context) (table.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(err)
		}
		return nil, retry.Retryable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxPayload+1))
	if err != nil {
		return nil, retry.Retryable(err)
	}
	if int64(len(body)) > r.cfg.MaxPayload {
		return nil, retry.Permanent(fmt.Errorf("%w: more than %d bytes from %s", ErrPayloadTooLarge, r.cfg.MaxPayload, r.cfg.URL))
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.Retryable(statusErr(resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, retry.Permanent(statusErr(resp.StatusCode))
	}

	rows, err := DecodeRows(body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return rows, nil
}

func statusErr(code int) error {
	return shared.NewDomainError("datasource", "Remote.Fetch", shared.ErrExternalService,
		fmt.Sprintf("unexpected status %d", code))
}
