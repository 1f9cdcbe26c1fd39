package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/review"
	"github.com/reoring/schemaform/validate"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PutDocument inserts or replaces a document.
func (s *Store) PutDocument(ctx context.Context, doc review.Document) error {
	data, err := json.Marshal(orEmpty(doc.ExtractedData))
	if err != nil {
		return fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	var results any
	if doc.ValidationResults != nil {
		b, err := json.Marshal(doc.ValidationResults)
		if err != nil {
			return fmt.Errorf("encode validation results of %s: %w", doc.ID, err)
		}
		results = string(b)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, schema_id, extracted_data, human_verified, validation_results, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_id = excluded.schema_id,
			extracted_data = excluded.extracted_data,
			human_verified = excluded.human_verified,
			validation_results = excluded.validation_results,
			updated_at = excluded.updated_at`,
		doc.ID, doc.SchemaID, string(data), doc.HumanVerified, results, s.timestamp())
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.ID, err)
	}
	return nil
}

// Fetch returns the stored document.
func (s *Store) Fetch(ctx context.Context, id string) (review.Document, error) {
	return fetch(ctx, s.db, id)
}

func fetch(ctx context.Context, q queryer, id string) (review.Document, error) {
	var (
		doc      review.Document
		data     string
		verified bool
		results  sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, schema_id, extracted_data, human_verified, validation_results FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.SchemaID, &data, &verified, &results)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return review.Document{}, fmt.Errorf("fetch document %s: %w", id, err)
	}
	doc.HumanVerified = verified
	if err := json.Unmarshal([]byte(data), &doc.ExtractedData); err != nil {
		return review.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	if results.Valid && results.String != "" {
		var r schemaform.Report
		if err := json.Unmarshal([]byte(results.String), &r); err != nil {
			return review.Document{}, fmt.Errorf("decode validation results of %s: %w", id, err)
		}
		doc.ValidationResults = &r
	}
	return doc, nil
}

// Save applies a partial update and returns the stored document.
//
// Setting human_verified to true fails with ErrValidationFailed while the
// stored validation results contain errors, unless the patch allows them. The
// error also carries schemaform.Issues: a validation_failed entry followed by
// the stored errors.
// Changing the data without mentioning human_verified clears an existing
// verification.
func (s *Store) Save(ctx context.Context, id string, p review.Patch) (review.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return review.Document{}, fmt.Errorf("save document %s: %w", id, err)
	}
	defer tx.Rollback()

	doc, err := fetch(ctx, tx, id)
	if err != nil {
		return review.Document{}, err
	}
	if p.HumanVerified != nil && *p.HumanVerified {
		if n := errorCount(doc.ValidationResults); n > 0 && !p.AllowValidationErrors {
			rejected := schemaform.Issues{{
				Path:     "human_verified",
				Code:     schemaform.CodeValidationFailed,
				Message:  fmt.Sprintf("%d validation error(s) must be fixed or accepted", n),
				Severity: schemaform.SeverityError,
				Actual:   n,
			}}
			rejected = append(rejected, doc.ValidationResults.Issues.Errors()...)
			return review.Document{}, fmt.Errorf("verify document %s: %w: %w", id, ErrValidationFailed, rejected)
		}
	}
	editing := p.ExtractedData != nil
	if editing {
		doc.ExtractedData = p.ExtractedData
	}
	switch {
	case p.HumanVerified != nil:
		doc.HumanVerified = *p.HumanVerified
	case editing && doc.HumanVerified:
		s.log.Info("data edit cleared verification", zap.String("document", id))
		doc.HumanVerified = false
	}

	data, err := json.Marshal(orEmpty(doc.ExtractedData))
	if err != nil {
		return review.Document{}, fmt.Errorf("encode document %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET extracted_data = ?, human_verified = ?, updated_at = ? WHERE id = ?`,
		string(data), doc.HumanVerified, s.timestamp(), id); err != nil {
		return review.Document{}, fmt.Errorf("save document %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return review.Document{}, fmt.Errorf("save document %s: %w", id, err)
	}
	// return what a fresh read would, including number normalization
	return s.Fetch(ctx, id)
}

// Validate checks the stored document against its schema, stores the report
// and returns it.
func (s *Store) Validate(ctx context.Context, id string) (schemaform.Report, error) {
	doc, err := s.Fetch(ctx, id)
	if err != nil {
		return schemaform.Report{}, err
	}
	root, err := s.Schema(ctx, doc.SchemaID)
	if err != nil {
		return schemaform.Report{}, fmt.Errorf("validate document %s: %w", id, err)
	}
	report := validate.Run(root, doc.ExtractedData, validate.WithClock(s.now))
	b, err := json.Marshal(report)
	if err != nil {
		return schemaform.Report{}, fmt.Errorf("encode validation results of %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE documents SET validation_results = ? WHERE id = ?`, string(b), id); err != nil {
		return schemaform.Report{}, fmt.Errorf("store validation results of %s: %w", id, err)
	}
	s.log.Debug("document validated", zap.String("document", id),
		zap.Int("errors", report.ErrorCount), zap.Int("warnings", report.WarningCount))
	return report, nil
}

func errorCount(r *schemaform.Report) int {
	if r == nil {
		return 0
	}
	return r.ErrorCount
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
