package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/advising-hub/config"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

// Reaper closes idle sessions. Implemented by session.Manager.
type Reaper interface {
	Reap() int
}

// ReapSessions closes sessions that have been idle past their TTL.
func ReapSessions(r Reaper, log *logger.Logger) Job {
	if log == nil {
		log = logger.Nop()
	}
	return JobFunc{
		JobName: "reap-idle-sessions",
		Desc:    "Close table sessions idle past SESSION_IDLE_TTL",
		Fn: func(context.Context) error {
			if n := r.Reap(); n > 0 {
				log.Info("reaped idle sessions", logger.Int("count", n))
			}
			return nil
		},
	}
}

// SourceBuilder turns a view into its data source.
type SourceBuilder interface {
	Build(v config.ViewConfig) (table.Source, error)
}

// WarmDatasets refreshes every cached view so the cache holds current rows
// before a session asks for them. Static views and views with caching disabled are
// skipped. One failing view does not stop the others.
func WarmDatasets(views []config.ViewConfig, sources SourceBuilder, log *logger.Logger) Job {
	if log == nil {
		log = logger.Nop()
	}
	return JobFunc{
		JobName: "warm-dataset-cache",
		Desc:    "Prefetch cached view datasets",
		Fn: func(ctx context.Context) error {
			var errs []error
			for _, v := range views {
				if v.Source.Kind == config.SourceStatic || v.Source.CacheTTL < 0 {
					continue
				}
				src, err := sources.Build(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", v.Name, err))
					continue
				}
				rows, err := table.Fresh(src).Load(ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", v.Name, err))
					continue
				}
				log.Debug("dataset warmed", logger.View(v.Name), logger.RowCount(len(rows)))
			}
			return errors.Join(errs...)
		},
	}
}
