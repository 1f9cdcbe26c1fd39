// Package draft owns the editable copy of one document and reconciles it
// with the authoritative copy held by the server.
//
// The engine is Clean while the draft mirrors the last authoritative copy and
// Dirty while it carries local edits or a commit is in flight. Authoritative
// updates replace a Clean draft and are held back from a Dirty one: the base
// copy is still refreshed, and the engine turns Clean again as soon as the
// draft and the base compare equal with no commit in flight. A save that the
// server echoes back therefore clears dirtiness without a dedicated
// "save succeeded" transition.
//
// Every edit (re)arms a debounce timer owned by the engine. When it fires, the
// flush callback receives a snapshot of the latest draft.
package draft

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/fields"
)

var (
	// ErrNoDocument is returned by edits while no document is open.
	ErrNoDocument = errors.New("draft: no document open")
	// ErrNotArray is returned when an array operation addresses a non-array value.
	ErrNotArray = errors.New("draft: value is not an array")
	// ErrIndexOutOfRange is returned by DeleteArrayItem for a missing element.
	ErrIndexOutOfRange = errors.New("draft: array index out of range")
)

// DefaultDebounce is the autosave delay.
const DefaultDebounce = time.Second

// State is the persisted shape of an editable document.
type State struct {
	ExtractedData map[string]any `json:"extracted_data"`
	HumanVerified bool           `json:"human_verified"`
}

// Clone deep-copies s. Integer values are widened to float64 so that copies
// compare equal to their JSON round trip.
func (s State) Clone() State {
	data, _ := canonical(s.ExtractedData).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return State{ExtractedData: data, HumanVerified: s.HumanVerified}
}

// FlushFunc receives the debounced snapshot of a Dirty draft.
type FlushFunc func(documentID string, snapshot State)

// Engine is safe for concurrent use. The flush callback runs on the timer's
// goroutine without the engine lock held.
type Engine struct {
	mu       sync.Mutex
	id       string
	base     State
	draft    State
	dirty    bool
	inflight int
	timer    *time.Timer
	gen      uint64

	debounce time.Duration
	flush    FlushFunc
	log      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFlush sets the debounced change callback.
func WithFlush(fn FlushFunc) Option { return func(e *Engine) { e.flush = fn } }

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.debounce = d
		}
	}
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an engine with no open document.
func New(opts ...Option) *Engine {
	e := &Engine{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Open starts editing documentID with s as both base and draft. Any previous
// document is discarded together with its unsaved edits and pending timer.
func (e *Engine) Open(documentID string, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	if e.id != "" && e.id != documentID && e.dirty {
		e.log.Info("discarding unsaved edits", zap.String("document", e.id))
	}
	e.id = documentID
	e.base = s.Clone()
	e.draft = s.Clone()
	e.dirty = false
	e.inflight = 0
}

// Close discards the open document and cancels the pending flush.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.id = ""
	e.base = State{}
	e.draft = State{}
	e.dirty = false
	e.inflight = 0
}

// DocumentID returns the open document, or "".
func (e *Engine) DocumentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Draft returns a copy of the editable state.
func (e *Engine) Draft() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Clone()
}

// Base returns a copy of the last authoritative state.
func (e *Engine) Base() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base.Clone()
}

// Dirty reports whether the draft carries unconfirmed edits.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// Receive records an authoritative copy of documentID. It reports whether the
// draft was replaced. Copies for another document are ignored.
func (e *Engine) Receive(documentID string, s State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" || documentID != e.id {
		return false
	}
	e.base = s.Clone()
	if !e.dirty {
		e.draft = s.Clone()
		return true
	}
	e.reconcileLocked()
	if e.dirty {
		e.log.Debug("authoritative update held back from dirty draft", zap.String("document", e.id))
	}
	return false
}

// UpdateField writes value at path in the draft.
func (e *Engine) UpdateField(path string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		return ErrNoDocument
	}
	next, err := fieldpath.Set(e.draft.ExtractedData, path, canonical(value), fieldpath.OnOverwrite(func(at string, old any) {
		e.log.Warn("overwrote non-container value",
			zap.String("document", e.id), zap.String("path", at), zap.Any("old", old))
	}))
	if err != nil {
		return fmt.Errorf("update field: %w", err)
	}
	e.draft.ExtractedData = next.(map[string]any)
	e.editedLocked()
	return nil
}

// UpdateVerified sets the draft's verification flag.
func (e *Engine) UpdateVerified(v bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		return ErrNoDocument
	}
	e.draft.HumanVerified = v
	e.editedLocked()
	return nil
}

// AddArrayItem appends the default item of field to the draft and returns its
// index. A missing array is created.
func (e *Engine) AddArrayItem(field fields.ArrayObject) (int, error) {
	return e.AppendItem(field.Path, field.NewItem())
}

// AppendItem appends item to the array at path and returns its index.
func (e *Engine) AppendItem(path string, item any) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		return 0, ErrNoDocument
	}
	arr, err := e.arrayLocked(path)
	if err != nil {
		return 0, fmt.Errorf("add array item at %q: %w", path, err)
	}
	next := append(append(make([]any, 0, len(arr)+1), arr...), canonical(item))
	if err := e.setLocked(path, next); err != nil {
		return 0, fmt.Errorf("add array item at %q: %w", path, err)
	}
	return len(next) - 1, nil
}

// DeleteArrayItem removes the element at index from the array at path.
func (e *Engine) DeleteArrayItem(path string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		return ErrNoDocument
	}
	arr, err := e.arrayLocked(path)
	if err != nil {
		return fmt.Errorf("delete array item at %q: %w", path, err)
	}
	if index < 0 || index >= len(arr) {
		return fmt.Errorf("delete array item %s[%d]: %w", path, index, ErrIndexOutOfRange)
	}
	next := make([]any, 0, len(arr)-1)
	next = append(next, arr[:index]...)
	next = append(next, arr[index+1:]...)
	if err := e.setLocked(path, next); err != nil {
		return fmt.Errorf("delete array item at %q: %w", path, err)
	}
	return nil
}

func (e *Engine) arrayLocked(path string) ([]any, error) {
	v, ok := fieldpath.Get(e.draft.ExtractedData, path)
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	return arr, nil
}

func (e *Engine) setLocked(path string, value any) error {
	next, err := fieldpath.Set(e.draft.ExtractedData, path, value)
	if err != nil {
		return err
	}
	e.draft.ExtractedData = next.(map[string]any)
	e.editedLocked()
	return nil
}

// CancelPending stops the debounce timer without flushing.
func (e *Engine) CancelPending() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Arm (re)starts the debounce timer if the draft is Dirty.
func (e *Engine) Arm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dirty {
		e.armLocked()
	}
}

// BeginCommit marks a write of the draft as in flight. The engine stays Dirty
// until the matching EndCommit.
func (e *Engine) BeginCommit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight++
	e.dirty = true
}

// EndCommit completes a write started with BeginCommit.
func (e *Engine) EndCommit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight > 0 {
		e.inflight--
	}
	if e.id != "" {
		e.reconcileLocked()
	}
}

// DeclineVerification resets the draft to the authoritative copy with the
// verification flag cleared, discarding edits made since the last save.
func (e *Engine) DeclineVerification() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == "" {
		return
	}
	e.stopLocked()
	e.draft = e.base.Clone()
	e.draft.HumanVerified = false
	e.reconcileLocked()
}

func (e *Engine) editedLocked() {
	e.reconcileLocked()
	if e.dirty {
		e.armLocked()
		return
	}
	e.stopLocked()
}

func (e *Engine) reconcileLocked() {
	e.dirty = e.inflight > 0 || !Equal(e.draft, e.base)
}

func (e *Engine) armLocked() {
	if e.flush == nil {
		return
	}
	e.stopLocked()
	gen := e.gen
	e.timer = time.AfterFunc(e.debounce, func() { e.fire(gen) })
}

func (e *Engine) stopLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.id == "" || !e.dirty {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	id, snapshot := e.id, e.draft.Clone()
	flush := e.flush
	e.mu.Unlock()
	flush(id, snapshot)
}
