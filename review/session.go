package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/reoring/schemaform/draft"
	"github.com/reoring/schemaform/fields"
)

var (
	// ErrNoValidator is returned when verification is requested without a Validator.
	ErrNoValidator = errors.New("review: no validator configured")
	// ErrNoCollaborator is returned by satellite operations whose collaborator is missing.
	ErrNoCollaborator = errors.New("review: collaborator not configured")
)

// Status is the save indicator shown to the user.
type Status int

const (
	StatusIdle Status = iota
	StatusSaving
	StatusSaved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSaving:
		return "saving"
	case StatusSaved:
		return "saved"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Outcome is the result of an explicit Save.
type Outcome int

const (
	// Failed means a collaborator returned an error; the draft is kept.
	Failed Outcome = iota
	// Skipped means another write was in flight and nothing was done.
	Skipped
	// Saved means the draft was persisted without a verification change.
	Saved
	// Verified means the document is now stored as human verified.
	Verified
	// Declined means the user refused to verify despite validation errors.
	Declined
	// Abandoned means the document was switched while the save was running.
	Abandoned
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Saved:
		return "saved"
	case Verified:
		return "verified"
	case Declined:
		return "declined"
	case Abandoned:
		return "abandoned"
	default:
		return "failed"
	}
}

// StatusHook observes status changes. err is set for StatusError.
type StatusHook func(s Status, err error)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDebounce sets the autosave delay.
func WithDebounce(d time.Duration) Option { return func(s *Session) { s.debounce = d } }

// WithStatusHook registers a status observer.
func WithStatusHook(h StatusHook) Option { return func(s *Session) { s.hook = h } }

// WithAutosaveTimeout bounds each autosave write. The default is 30s.
func WithAutosaveTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.autosaveTimeout = d
		}
	}
}

// Session edits one document at a time. Autosave and explicit saves share a
// single write slot, so at most one write per session is in flight.
type Session struct {
	c        Collaborators
	engine   *draft.Engine
	writes   *semaphore.Weighted
	explicit atomic.Bool
	log      *zap.Logger

	debounce        time.Duration
	autosaveTimeout time.Duration
	hook            StatusHook

	mu        sync.Mutex
	gen       uint64
	schemaID  string
	status    Status
	lastErr   error
	lastEvent *Event
}

// NewSession returns a session with no open document.
func NewSession(c Collaborators, opts ...Option) *Session {
	s := &Session{
		c:               c,
		writes:          semaphore.NewWeighted(1),
		log:             zap.NewNop(),
		autosaveTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	s.engine = draft.New(
		draft.WithFlush(s.autosave),
		draft.WithDebounce(s.debounce),
		draft.WithLogger(s.log.Named("draft")),
	)
	return s
}

// Open starts editing doc, discarding any previous document.
func (s *Session) Open(doc Document) {
	s.mu.Lock()
	s.gen++
	s.schemaID = doc.SchemaID
	s.status = StatusIdle
	s.lastErr = nil
	s.lastEvent = nil
	s.mu.Unlock()
	s.engine.Open(doc.ID, doc.State())
}

// Close stops editing. A save already in flight completes but its result is
// not applied.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	s.schemaID = ""
	s.mu.Unlock()
	s.engine.Close()
}

// DocumentID returns the open document, or "".
func (s *Session) DocumentID() string { return s.engine.DocumentID() }

// SchemaID returns the schema of the open document.
func (s *Session) SchemaID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaID
}

// Draft returns the editable state.
func (s *Session) Draft() draft.State { return s.engine.Draft() }

// Base returns the last authoritative state.
func (s *Session) Base() draft.State { return s.engine.Base() }

// Dirty reports unconfirmed local edits.
func (s *Session) Dirty() bool { return s.engine.Dirty() }

// UpdateField edits one value of the draft.
func (s *Session) UpdateField(path string, value any) error { return s.engine.UpdateField(path, value) }

// UpdateVerified toggles the draft's verification flag.
func (s *Session) UpdateVerified(v bool) error { return s.engine.UpdateVerified(v) }

// AddArrayItem appends a default element to an array of objects.
func (s *Session) AddArrayItem(f fields.ArrayObject) (int, error) { return s.engine.AddArrayItem(f) }

// DeleteArrayItem removes one element by index.
func (s *Session) DeleteArrayItem(path string, index int) error {
	return s.engine.DeleteArrayItem(path, index)
}

// Status returns the save indicator and the last error.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

// LastEvent returns the last push event received for the open document.
func (s *Session) LastEvent() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastEvent == nil {
		return Event{}, false
	}
	return *s.lastEvent, true
}

func (s *Session) setStatus(st Status, err error) {
	s.mu.Lock()
	s.status = st
	s.lastErr = err
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(st, err)
	}
}

// current returns the open document and its generation, which changes on
// every Open and Close.
func (s *Session) current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DocumentID(), s.gen
}

func (s *Session) stillCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// commit persists p and feeds the echoed document back into the engine.
func (s *Session) commit(ctx context.Context, id string, gen uint64, p Patch) error {
	s.engine.BeginCommit()
	defer s.engine.EndCommit()
	doc, err := s.c.Persister.Save(ctx, id, p)
	if err != nil {
		return err
	}
	if s.stillCurrent(gen) {
		s.engine.Receive(id, doc.State())
	}
	return nil
}

// autosave is the engine's debounced flush. It never grants verification.
func (s *Session) autosave(id string, snap draft.State) {
	if !s.writes.TryAcquire(1) {
		s.engine.Arm()
		return
	}
	defer s.writes.Release(1)

	cur, gen := s.current()
	if cur != id {
		return
	}
	verified := snap.HumanVerified
	if verified && !s.engine.Base().HumanVerified {
		verified = false
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.autosaveTimeout)
	defer cancel()

	s.setStatus(StatusSaving, nil)
	if err := s.commit(ctx, id, gen, Patch{ExtractedData: snap.ExtractedData, HumanVerified: &verified}); err != nil {
		s.log.Warn("autosave failed", zap.String("document", id), zap.Error(err))
		s.setStatus(StatusError, fmt.Errorf("autosave document %s: %w", id, err))
		return
	}
	s.log.Debug("autosaved", zap.String("document", id))
	s.setStatus(StatusSaved, nil)
}

// Save persists the draft. When the draft turns verification on, the data is
// saved first with verification off, the stored document is validated, and
// verification is written only if validation passes or the Confirmer accepts
// the errors. A declined confirmation resets the draft to the stored copy.
//
// Save returns Skipped while another explicit save is running. An autosave in
// flight is waited for; a pending one is cancelled. On failure the draft is
// left untouched and the error is also reported through the status.
func (s *Session) Save(ctx context.Context) (Outcome, error) {
	if !s.explicit.CompareAndSwap(false, true) {
		return Skipped, nil
	}
	defer s.explicit.Store(false)

	s.engine.CancelPending()
	if err := s.writes.Acquire(ctx, 1); err != nil {
		return s.fail(fmt.Errorf("wait for autosave: %w", err))
	}
	defer s.writes.Release(1)

	id, gen := s.current()
	if id == "" {
		return Failed, draft.ErrNoDocument
	}
	s.engine.CancelPending()
	s.setStatus(StatusSaving, nil)

	snap := s.engine.Draft()
	turningOn := snap.HumanVerified && !s.engine.Base().HumanVerified
	verified := snap.HumanVerified && !turningOn
	log := s.log.With(zap.String("document", id))

	if err := s.commit(ctx, id, gen, Patch{ExtractedData: snap.ExtractedData, HumanVerified: &verified}); err != nil {
		return s.fail(fmt.Errorf("save document %s: %w", id, err))
	}
	if !s.stillCurrent(gen) {
		return Abandoned, nil
	}
	if !turningOn {
		s.setStatus(StatusSaved, nil)
		return Saved, nil
	}

	if s.c.Validator == nil {
		return s.fail(fmt.Errorf("verify document %s: %w", id, ErrNoValidator))
	}
	report, err := s.c.Validator.Validate(ctx, id)
	if err != nil {
		return s.fail(fmt.Errorf("validate document %s: %w", id, err))
	}
	if !s.stillCurrent(gen) {
		return Abandoned, nil
	}
	log.Debug("validated", zap.Int("errors", report.ErrorCount), zap.Int("warnings", report.WarningCount))

	override := false
	if report.ErrorCount > 0 {
		ok := false
		if s.c.Confirmer != nil {
			ok, err = s.c.Confirmer.Confirm(ctx, Prompt{
				DocumentID:   id,
				ErrorCount:   report.ErrorCount,
				WarningCount: report.WarningCount,
				Issues:       report.Issues,
			})
			if err != nil {
				return s.fail(fmt.Errorf("confirm verification of %s: %w", id, err))
			}
		}
		if !s.stillCurrent(gen) {
			return Abandoned, nil
		}
		if !ok {
			log.Info("verification declined")
			s.engine.DeclineVerification()
			s.setStatus(StatusIdle, nil)
			return Declined, nil
		}
		override = true
	}

	on := true
	if err := s.commit(ctx, id, gen, Patch{HumanVerified: &on, AllowValidationErrors: override}); err != nil {
		return s.fail(fmt.Errorf("verify document %s: %w", id, err))
	}
	if !s.stillCurrent(gen) {
		return Abandoned, nil
	}
	log.Info("document verified", zap.Bool("override", override))
	s.setStatus(StatusSaved, nil)
	return Verified, nil
}

func (s *Session) fail(err error) (Outcome, error) {
	s.log.Warn("save failed", zap.Error(err))
	s.setStatus(StatusError, err)
	return Failed, err
}
