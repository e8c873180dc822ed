// Package seed imports seed clients from spreadsheet files.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/dedup"
	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/scorer"
)

// Upserter writes deduplicated entities.
type Upserter interface {
	Upsert(ctx context.Context, req dedup.Request) (*dedup.Result, error)
}

// Summary reports the outcome of one import.
type Summary struct {
	Rows      int      `json:"rows"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	ClientIDs []string `json:"client_ids"`
}

// headerAliases maps accepted column headers to client columns.
var headerAliases = map[string]string{
	"name":         "name",
	"nome":         "name",
	"company":      "name",
	"razao social": "name",
	"tax_id":       "tax_id",
	"tax id":       "tax_id",
	"cnpj":         "tax_id",
	"website":      "website",
	"site":         "website",
	"url":          "website",
	"domain":       "website",
}

// Importer upserts seed clients into a project.
type Importer struct {
	store Upserter
	actor string
}

// NewImporter creates an Importer recording actor on history entries.
func NewImporter(st Upserter, actor string) *Importer {
	if actor == "" {
		actor = "import"
	}
	return &Importer{store: st, actor: actor}
}

// ImportFile reads path and imports its rows.
func (im *Importer) ImportFile(ctx context.Context, projectID, path string) (*Summary, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, projectID, rows)
}

// Import upserts one client per data row. The first row is the header and
// must contain a name column. Rows without a name are skipped; rows naming
// the same client collapse into one record.
func (im *Importer) Import(ctx context.Context, projectID string, rows [][]string) (*Summary, error) {
	if projectID == "" {
		return nil, eris.Wrap(model.ErrConfigurationMissing, "seed: project id is required")
	}
	sum := &Summary{}
	if len(rows) < 2 {
		return sum, nil
	}

	cols := mapHeader(rows[0])
	if _, ok := cols["name"]; !ok {
		return nil, eris.Wrap(model.ErrConstraintViolation, "seed: header has no name column")
	}

	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		if ctx.Err() != nil {
			return sum, eris.Wrap(ctx.Err(), "seed: import cancelled")
		}
		sum.Rows++

		c := model.Client{
			Name:    cell(row, cols, "name"),
			TaxID:   cell(row, cols, "tax_id"),
			Website: cell(row, cols, "website"),
		}
		res, err := im.store.Upsert(ctx, dedup.Request{
			Entity: model.EntityClient,
			Scope:  projectID,
			Fields: c.Seed(),
			Actor:  im.actor,
			Derive: scorer.Derive,
		})
		if err != nil {
			if errors.Is(err, model.ErrConstraintViolation) {
				sum.Skipped++
				zap.L().Debug("seed: skipping row", zap.Int("row", sum.Rows), zap.Error(err))
				continue
			}
			return sum, err
		}

		if res.Created {
			sum.Created++
		} else {
			sum.Updated++
		}
		if !seen[res.ID] {
			seen[res.ID] = true
			sum.ClientIDs = append(sum.ClientIDs, res.ID)
		}
	}

	zap.L().Info("seed: import complete",
		zap.String("project_id", projectID),
		zap.Int("rows", sum.Rows),
		zap.Int("created", sum.Created),
		zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

func mapHeader(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := headerAliases[key]; ok {
			if _, dup := cols[col]; !dup {
				cols[col] = i
			}
		}
	}
	return cols
}

func cell(row []string, cols map[string]int, col string) string {
	i, ok := cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
