package session

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"

	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/logger"
)

// BulkRequest is a bulk action over a session's selection.
type BulkRequest struct {
	SessionID shared.SessionID
	View      string
	Action    shared.BulkAction
	Rows      table.Dataset
	RowIDs    []string
}

// BulkResult reports what an action did.
type BulkResult struct {
	Action      shared.BulkAction `json:"action"`
	Affected    int               `json:"affected"`
	RowIDs      []string          `json:"row_ids"`
	ContentType string            `json:"content_type,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// BulkHandler runs one kind of bulk action.
type BulkHandler interface {
	Run(ctx context.Context, req BulkRequest) (BulkResult, error)
}

// BulkHandlerFunc adapts a function to BulkHandler.
type BulkHandlerFunc func(ctx context.Context, req BulkRequest) (BulkResult, error)

// Run implements BulkHandler.
func (f BulkHandlerFunc) Run(ctx context.Context, req BulkRequest) (BulkResult, error) {
	return f(ctx, req)
}

// ExportCSV renders the selected rows as CSV. Columns are the union of the
// rows' fields, sorted, with the id field first.
func ExportCSV(idField string) BulkHandler {
	return BulkHandlerFunc(func(_ context.Context, req BulkRequest) (BulkResult, error) {
		cols := columns(req.Rows, idField)

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(cols); err != nil {
			return BulkResult{}, err
		}
		rec := make([]string, len(cols))
		for _, r := range req.Rows {
			for i, c := range cols {
				if v, ok := r[c]; ok && v != nil {
					rec[i] = fmt.Sprint(v)
				} else {
					rec[i] = ""
				}
			}
			if err := w.Write(rec); err != nil {
				return BulkResult{}, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return BulkResult{}, err
		}

		return BulkResult{
			Action:      req.Action,
			Affected:    len(req.Rows),
			RowIDs:      req.RowIDs,
			ContentType: "text/csv",
			Body:        buf.String(),
		}, nil
	})
}

func columns(rows table.Dataset, idField string) []string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		if k != idField {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return append([]string{idField}, cols...)
}

// NotificationStore records advisor notifications. Implemented by
// postgres.RosterRepository.
type NotificationStore interface {
	RecordNotifications(ctx context.Context, sessionID, view string, rowIDs []string) error
}

// NotifyAdvisor records one notification per selected row. Without a store
// the notifications are only logged.
func NotifyAdvisor(store NotificationStore, log *logger.Logger) BulkHandler {
	if log == nil {
		log = logger.Nop()
	}
	return BulkHandlerFunc(func(ctx context.Context, req BulkRequest) (BulkResult, error) {
		if store != nil {
			if err := store.RecordNotifications(ctx, req.SessionID.String(), req.View, req.RowIDs); err != nil {
				return BulkResult{}, shared.WrapError("session", "NotifyAdvisor", shared.ErrExternalService,
					"record notifications", err)
			}
		}
		log.Info("advisor notified",
			logger.SessionID(req.SessionID.String()),
			logger.View(req.View),
			logger.RowCount(len(req.RowIDs)),
		)
		return BulkResult{Action: req.Action, Affected: len(req.RowIDs), RowIDs: req.RowIDs}, nil
	})
}
