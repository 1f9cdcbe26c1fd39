package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/reoring/schemaform/draft"
	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/schema"
)

// HandleEvent reacts to a push notification for the open document by
// re-fetching it. The fresh copy goes through the engine's dirty gating, so
// it replaces the draft only when there are no local edits. It reports
// whether the draft was replaced.
func (s *Session) HandleEvent(ctx context.Context, ev Event) (bool, error) {
	id, gen := s.current()
	if id == "" || ev.DocumentID != id {
		return false, nil
	}
	s.mu.Lock()
	e := ev
	s.lastEvent = &e
	s.mu.Unlock()
	if ev.Error != "" {
		s.log.Warn("job reported an error", zap.String("document", id), zap.String("status", ev.Status), zap.String("error", ev.Error))
	}
	if s.c.Fetcher == nil {
		return false, nil
	}
	doc, err := s.c.Fetcher.Fetch(ctx, id)
	if err != nil {
		return false, fmt.Errorf("refresh document %s: %w", id, err)
	}
	if !s.stillCurrent(gen) {
		return false, nil
	}
	return s.engine.Receive(id, doc.State()), nil
}

// ReExtractField queues a re-extraction for the field behind a rendered
// control. Indexed paths are normalized and cut at their owning array, so
// "items[2].tax.rate" targets "items[]".
func (s *Session) ReExtractField(ctx context.Context, path string) (string, error) {
	id := s.engine.DocumentID()
	if id == "" {
		return "", draft.ErrNoDocument
	}
	if s.c.Jobs == nil {
		return "", fmt.Errorf("re-extract %s: %w", path, ErrNoCollaborator)
	}
	target := fieldpath.TargetForHint(fieldpath.Normalize(path))
	jobID, err := s.c.Jobs.Submit(ctx, id, target)
	if err != nil {
		return "", fmt.Errorf("re-extract %s of %s: %w", target, id, err)
	}
	s.log.Info("re-extraction queued", zap.String("document", id), zap.String("target", target), zap.String("job", jobID))
	return jobID, nil
}

// EditHint replaces the x-extraction-hint of a field in the stored schema and
// returns the schema as stored afterwards. Nothing changes locally unless the
// patch succeeds.
func (s *Session) EditHint(ctx context.Context, schemaID, path, hint string) (schema.Node, error) {
	if s.c.Schemas == nil {
		return nil, fmt.Errorf("edit hint: %w", ErrNoCollaborator)
	}
	cur, err := s.c.Schemas.Schema(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", schemaID, err)
	}
	next, err := schema.WithHint(cur, path, hint)
	if err != nil {
		return nil, err
	}
	if err := s.c.Schemas.PatchSchema(ctx, schemaID, next); err != nil {
		return nil, fmt.Errorf("patch schema %s: %w", schemaID, err)
	}
	fresh, err := s.c.Schemas.Schema(ctx, schemaID)
	if err != nil {
		return nil, fmt.Errorf("reload schema %s: %w", schemaID, err)
	}
	s.log.Info("extraction hint updated", zap.String("schema", schemaID), zap.String("path", fieldpath.Normalize(path)))
	return fresh, nil
}
