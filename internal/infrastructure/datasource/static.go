// Package datasource implements the table.Source variants behind dashboard
// views: embedded JSON fixtures, remote JSON endpoints, PostgreSQL roster
// tables, and a Redis-backed cache in front of any of them.
package datasource

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/alem-hub/advising-hub/internal/domain/content"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/internal/domain/table"
)

//go:embed fixtures/*.json
var fixtures embed.FS

// Fixtures exposes the embedded fixture files.
func Fixtures() fs.FS {
	sub, err := fs.Sub(fixtures, "fixtures")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static serves rows from a JSON file, optionally after a simulated delay.
type Static struct {
	fsys  fs.FS
	name  string
	delay time.Duration
}

// NewStatic creates a static source reading name from fsys. A nil fsys means
// the embedded fixtures.
func NewStatic(fsys fs.FS, name string, delay time.Duration) *Static {
	if fsys == nil {
		fsys = Fixtures()
	}
	return &Static{fsys: fsys, name: name, delay: delay}
}

// Load waits out the delay, then decodes the file.
func (s *Static) Load(ctx context.Context) (table.Dataset, error) {
	if err := sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(s.fsys, s.name)
	if err != nil {
		return nil, shared.WrapError("datasource", "Static.Load", shared.ErrNotFound, "fixture "+s.name, err)
	}
	return DecodeRows(data)
}

// DecodeRows accepts either a top-level JSON array of objects or an object
// wrapping one under "data", "rows" or "items".
func DecodeRows(data []byte) (table.Dataset, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return table.Dataset{}, nil
	}

	if data[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, decodeErr(err)
		}
		for _, key := range []string{"data", "rows", "items"} {
			if raw, ok := envelope[key]; ok {
				return DecodeRows(raw)
			}
		}
		return nil, shared.NewDomainError("datasource", "Decode", shared.ErrInvalidInput, "object payload without data, rows or items")
	}

	var rows table.Dataset
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, decodeErr(err)
	}
	if rows == nil {
		rows = table.Dataset{}
	}
	return rows, nil
}

func decodeErr(err error) error {
	return shared.WrapError("datasource", "Decode", shared.ErrInvalidInput, "malformed rows payload", err)
}

// LoadRecommendations parses the embedded recommendation document.
func LoadRecommendations() (content.Node, error) {
	data, err := fs.ReadFile(Fixtures(), "recommendations.json")
	if err != nil {
		return nil, fmt.Errorf("read recommendations: %w", err)
	}
	return content.Parse(data)
}

func sleep(ctx context.Context, d time.Duration) error {
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
