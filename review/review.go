// Package review ties the draft engine to the collaborators that own the
// authoritative document: persistence, validation, job submission and the
// schema store.
//
// Verification is never granted optimistically. An explicit save that turns
// "human verified" on first persists the data with the flag still off, then
// asks the validator, and only writes verified=true when validation passes or
// the user confirms the override.
package review

import (
	"context"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/draft"
	"github.com/reoring/schemaform/schema"
)

// Document is the authoritative representation of an extracted document.
type Document struct {
	ID                string             `json:"id"`
	SchemaID          string             `json:"schema_id,omitempty"`
	ExtractedData     map[string]any     `json:"extracted_data"`
	HumanVerified     bool               `json:"human_verified"`
	ValidationResults *schemaform.Report `json:"validation_results,omitempty"`
}

// State returns the editable part of d.
func (d Document) State() draft.State {
	return draft.State{ExtractedData: d.ExtractedData, HumanVerified: d.HumanVerified}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	ExtractedData         map[string]any `json:"extracted_data,omitempty"`
	HumanVerified         *bool          `json:"human_verified,omitempty"`
	AllowValidationErrors bool           `json:"allow_validation_errors,omitempty"`
}

// Event is a push notification about a document, typically the progress of
// a background extraction job.
type Event struct {
	DocumentID string  `json:"document_id"`
	Progress   float64 `json:"progress"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
}

// Prompt is shown to the user before verifying a document with validation errors.
type Prompt struct {
	DocumentID   string
	ErrorCount   int
	WarningCount int
	Issues       schemaform.Issues
}

// Persister writes a partial update and returns the full document as stored.
type Persister interface {
	Save(ctx context.Context, documentID string, p Patch) (Document, error)
}

// Fetcher reads the authoritative document.
type Fetcher interface {
	Fetch(ctx context.Context, documentID string) (Document, error)
}

// Validator validates the stored document.
type Validator interface {
	Validate(ctx context.Context, documentID string) (schemaform.Report, error)
}

// JobSubmitter queues a re-extraction of one field and returns the job id.
type JobSubmitter interface {
	Submit(ctx context.Context, documentID, target string) (string, error)
}

// SchemaStore reads and replaces schema documents.
type SchemaStore interface {
	Schema(ctx context.Context, schemaID string) (schema.Node, error)
	PatchSchema(ctx context.Context, schemaID string, doc schema.Node) error
}

// Confirmer asks the user whether to verify despite validation errors.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// Collaborators groups the external services a Session talks to. Only
// Persister is mandatory; a missing Validator makes verification fail, a
// missing Confirmer declines every override.
type Collaborators struct {
	Persister Persister
	Fetcher   Fetcher
	Validator Validator
	Jobs      JobSubmitter
	Schemas   SchemaStore
	Confirmer Confirmer
}
