// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Countries lists every market with a knowledge record, sorted.
func (s *Store) Countries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT country FROM markets ORDER BY country`)
	if err != nil {
		return nil, fmt.Errorf("querying markets: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning market: %w", err)
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// ExportYAML writes every market's knowledge record to
// cfg.Dir/export.yaml, for inspection and offline review.
func (s *Store) ExportYAML(ctx context.Context) error {
	countries, err := s.Countries(ctx)
	if err != nil {
		return err
	}

	records := make([]*types.KnowledgeRecord, 0, len(countries))
	for _, c := range countries {
		record, err := s.Record(ctx, c)
		if err != nil {
			return fmt.Errorf("loading record for %s: %w", c, err)
		}
		records = append(records, record)
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(filepath.Join(s.cfg.Dir, "export.yaml"), data, 0o644)
}
