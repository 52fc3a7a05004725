package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed views.yaml
var defaultViews []byte

// Source kinds understood by the data source factory.
const (
	SourceStatic   = "static"
	SourceRemote   = "remote"
	SourcePostgres = "postgres"
)

// ViewCatalog lists the table views the dashboard can open.
type ViewCatalog struct {
	Views []ViewConfig `yaml:"views"`
}

// ViewConfig describes one list view.
type ViewConfig struct {
	Name            string       `yaml:"name"`
	Title           string       `yaml:"title"`
	IDField         string       `yaml:"id_field"`
	SelectableField string       `yaml:"selectable_field"`
	PageSize        int          `yaml:"page_size"`
	SelectAll       string       `yaml:"select_all"`
	Source          SourceConfig `yaml:"source"`
}

// SourceConfig says where a view's rows come from.
type SourceConfig struct {
	Kind string `yaml:"kind"`

	// static: name of an embedded fixture
	Fixture string `yaml:"fixture"`

	// static/remote: artificial latency before the rows are returned
	Delay time.Duration `yaml:"delay"`

	// remote: absolute URL, or a path joined to REMOTE_BASE_URL
	URL string `yaml:"url"`

	// postgres: roster table kind (students, credits, housing)
	Table string `yaml:"table"`

	// Cache rows in Redis for this long; zero uses REDIS_DATASET_TTL, negative disables.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoadViews reads the catalog at path, or the built-in one when path is empty.
func LoadViews(path string) (*ViewCatalog, error) {
	data := defaultViews
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read views file: %w", err)
		}
	}
	return ParseViews(data)
}

// ParseViews decodes and validates a YAML catalog, filling defaults.
func ParseViews(data []byte) (*ViewCatalog, error) {
	var cat ViewCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}

	var errs []string
	seen := make(map[string]bool, len(cat.Views))
	for i := range cat.Views {
		v := &cat.Views[i]
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("views[%d]: name is required", i))
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("view %s: duplicate name", v.Name))
		}
		seen[v.Name] = true

		if v.IDField == "" {
			v.IDField = "id"
		}
		if v.Title == "" {
			v.Title = v.Name
		}
		if v.PageSize < 0 {
			errs = append(errs, fmt.Sprintf("view %s: page_size must not be negative", v.Name))
		}
		switch strings.ToLower(v.SelectAll) {
		case "", "page", "dataset", "all":
		default:
			errs = append(errs, fmt.Sprintf("view %s: select_all must be page or dataset", v.Name))
		}

		switch v.Source.Kind {
		case SourceStatic:
			if v.Source.Fixture == "" {
				errs = append(errs, fmt.Sprintf("view %s: static source needs a fixture", v.Name))
			}
		case SourceRemote:
			if v.Source.URL == "" {
				errs = append(errs, fmt.Sprintf("view %s: remote source needs a url", v.Name))
			}
		case SourcePostgres:
			if v.Source.Table == "" {
				errs = append(errs, fmt.Sprintf("view %s: postgres source needs a table", v.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("view %s: unknown source kind %q", v.Name, v.Source.Kind))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("view catalog errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return &cat, nil
}

// Find returns the view with the given name.
func (c *ViewCatalog) Find(name string) (ViewConfig, bool) {
	for _, v := range c.Views {
		if v.Name == name {
			return v, true
		}
	}
	return ViewConfig{}, false
}

// Names lists view names in catalog order.
func (c *ViewCatalog) Names() []string {
	out := make([]string, len(c.Views))
	for i, v := range c.Views {
		out[i] = v.Name
	}
	return out
}
