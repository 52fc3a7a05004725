package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/advising-hub/internal/domain/roster"
	"github.com/alem-hub/advising-hub/internal/domain/table"
	"github.com/alem-hub/advising-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RosterRepository reads the roster tables and records advisor notifications.
// Reads that fail with a transient error are repeated; writes are not.
type RosterRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewRosterRepository creates a new RosterRepository. opts tune the retrier
// used for reads.
func NewRosterRepository(conn *Connection, opts ...retry.Option) *RosterRepository {
	opts = append([]retry.Option{retry.WithRetryIf(IsTransient)}, opts...)
	return &RosterRepository{conn: conn, retrier: retry.DatabaseRetrier(opts...)}
}

// ListStudents returns every student ordered by name.
func (r *RosterRepository) ListStudents(ctx context.Context) ([]roster.Student, error) {
	query := `
		SELECT id, first_name, last_name, email, major, class_year, gpa,
			   advisor, active, last_contact_at
		FROM students
		ORDER BY last_name, first_name, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []roster.Student
	for rows.Next() {
		var s roster.Student
		var lastContact *time.Time
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Major,
			&s.ClassYear, &s.GPA, &s.Advisor, &s.Active, &lastContact); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		s.LastContact = lastContact
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListCredits returns every credit record ordered by term and course.
func (r *RosterRepository) ListCredits(ctx context.Context) ([]roster.Credit, error) {
	query := `
		SELECT id, student_id, course, title, term, credits, grade
		FROM credits
		ORDER BY term, course, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	var out []roster.Credit
	for rows.Next() {
		var c roster.Credit
		if err := rows.Scan(&c.ID, &c.StudentID, &c.Course, &c.Title, &c.Term, &c.Credits, &c.Grade); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListHousing returns every housing assignment ordered by building and room.
func (r *RosterRepository) ListHousing(ctx context.Context) ([]roster.Housing, error) {
	query := `
		SELECT id, student_id, building, room, term, move_in, confirmed
		FROM housing
		ORDER BY building, room, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list housing: %w", err)
	}
	defer rows.Close()

	var out []roster.Housing
	for rows.Next() {
		var h roster.Housing
		if err := rows.Scan(&h.ID, &h.StudentID, &h.Building, &h.Room, &h.Term, &h.MoveIn, &h.Confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan housing: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LoadDataset reads the table behind kind and flattens it into rows.
func (r *RosterRepository) LoadDataset(ctx context.Context, kind roster.Kind) (table.Dataset, error) {
	return retry.DoWithData(ctx, r.retrier, func(ctx context.Context) (table.Dataset, error) {
		return r.loadDataset(ctx, kind)
	})
}

func (r *RosterRepository) loadDataset(ctx context.Context, kind roster.Kind) (table.Dataset, error) {
	switch kind {
	case roster.KindStudents:
		records, err := r.ListStudents(ctx)
		if err != nil {
			return nil, err
		}
		return roster.ToDataset(records), nil
	case roster.KindCredits:
		records, err := r.ListCredits(ctx)
		if err != nil {
			return nil, err
		}
		return roster.ToDataset(records), nil
	case roster.KindHousing:
		records, err := r.ListHousing(ctx)
		if err != nil {
			return nil, err
		}
		return roster.ToDataset(records), nil
	}
	_, err := roster.ParseKind(string(kind))
	return nil, err
}

// RecordNotifications stores one advisor notification per row in a single transaction.
func (r *RosterRepository) RecordNotifications(ctx context.Context, sessionID, view string, rowIDs []string) error {
	if len(rowIDs) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, id := range rowIDs {
			batch.Queue(`INSERT INTO advisor_notifications (session_id, view, row_id) VALUES ($1, $2, $3)`,
				sessionID, view, id)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to record notifications: %w", err)
		}
		return nil
	})
}
