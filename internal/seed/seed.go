// Package seed loads the initial data a fresh deployment starts with.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/taskplanner/internal/application"
	"github.com/example/taskplanner/internal/persistence"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Data is the content of a seed file.
type Data struct {
	AccessCodes   []application.AccessCodeSeed `yaml:"access_codes"`
	Team          []map[string]any             `yaml:"team"`
	TaskTemplates []map[string]any             `yaml:"task_templates"`
}

// Defaults returns the embedded seed data.
func Defaults() (Data, error) {
	return Parse(defaultsYAML)
}

// Parse decodes seed YAML.
func Parse(raw []byte) (Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("parse seed data: %w", err)
	}
	return data, nil
}

// Load returns the embedded defaults overlaid with the file at path. Access
// codes listed in the file replace the defaults. An empty path yields the
// defaults.
func Load(path string) (Data, error) {
	data, err := Defaults()
	if err != nil {
		return Data{}, err
	}
	if path == "" {
		return data, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read seed file: %w", err)
	}
	file, err := Parse(raw)
	if err != nil {
		return Data{}, err
	}

	if len(file.AccessCodes) > 0 {
		data.AccessCodes = file.AccessCodes
	}
	data.Team = file.Team
	data.TaskTemplates = file.TaskTemplates
	return data, nil
}

// Report counts what Apply created.
type Report struct {
	AccessCodes   int
	Team          int
	TaskTemplates int
}

// Seeder writes seed data into empty collections.
type Seeder struct {
	store  persistence.Store
	access *application.AccessService
	logger *slog.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(store persistence.Store, access *application.AccessService, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, access: access, logger: logger}
}

// Apply seeds each collection that is still empty. Populated collections are
// left alone, so Apply is safe to run on every start.
func (s *Seeder) Apply(ctx context.Context, data Data) (Report, error) {
	var report Report

	n, err := s.access.EnsureAccessCodes(ctx, data.AccessCodes)
	if err != nil {
		return report, err
	}
	report.AccessCodes = n

	if report.Team, err = s.fill(ctx, application.TeamMemberSchema, data.Team); err != nil {
		return report, err
	}
	if report.TaskTemplates, err = s.fill(ctx, application.TaskTemplateSchema, data.TaskTemplates); err != nil {
		return report, err
	}

	s.logger.InfoContext(ctx, "seed applied",
		"access_codes", report.AccessCodes,
		"team", report.Team,
		"task_templates", report.TaskTemplates,
	)
	return report, nil
}

func (s *Seeder) fill(ctx context.Context, schema *application.Schema, entries []map[string]any) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	existing, err := s.store.GetAll(ctx, schema.Entity)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for i, entry := range entries {
		rec, err := schema.Validate(entry, application.ModeCreate)
		if err != nil {
			var vErr *application.ValidationError
			if errors.As(err, &vErr) {
				return created, fmt.Errorf("seed %s entry %d: %w: %v", schema.Entity, i, err, vErr.FieldErrors)
			}
			return created, err
		}
		if _, err := s.store.Create(ctx, schema.Entity, rec); err != nil {
			return created, fmt.Errorf("seed %s entry %d: %w", schema.Entity, i, err)
		}
		created++
	}
	return created, nil
}
