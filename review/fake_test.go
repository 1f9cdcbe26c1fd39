package review_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/review"
	"github.com/reoring/schemaform/schema"
)

// fakeServer is an in-memory collaborator that applies patches the way the
// document service does and records every call.
type fakeServer struct {
	mu          sync.Mutex
	docs        map[string]review.Document
	patches     []review.Patch
	report      schemaform.Report
	saveErr     error
	validateErr error
	validations int
	jobs        []string
	schemas     map[string]schema.Node
	schemaPuts  int

	// block, when set, is received from before Save returns.
	block   chan struct{}
	entered chan struct{}
}

func newFakeServer(docs ...review.Document) *fakeServer {
	f := &fakeServer{docs: map[string]review.Document{}, schemas: map[string]schema.Node{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeServer) collaborators(c review.Confirmer) review.Collaborators {
	return review.Collaborators{
		Persister: f, Fetcher: f, Validator: f, Jobs: f, Schemas: f, Confirmer: c,
	}
}

func (f *fakeServer) Save(ctx context.Context, id string, p review.Patch) (review.Document, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, p)
	if f.saveErr != nil {
		return review.Document{}, f.saveErr
	}
	doc, ok := f.docs[id]
	if !ok {
		return review.Document{}, fmt.Errorf("document %s not found", id)
	}
	if p.ExtractedData != nil {
		doc.ExtractedData = fieldpath.CloneObject(p.ExtractedData)
		if p.HumanVerified == nil {
			doc.HumanVerified = false
		}
	}
	if p.HumanVerified != nil {
		doc.HumanVerified = *p.HumanVerified
	}
	f.docs[id] = doc
	return doc, nil
}

func (f *fakeServer) Fetch(ctx context.Context, id string) (review.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return review.Document{}, fmt.Errorf("document %s not found", id)
	}
	doc.ExtractedData = fieldpath.CloneObject(doc.ExtractedData)
	return doc, nil
}

func (f *fakeServer) Validate(ctx context.Context, id string) (schemaform.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validations++
	if f.validateErr != nil {
		return schemaform.Report{}, f.validateErr
	}
	return f.report, nil
}

func (f *fakeServer) Submit(ctx context.Context, id, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, id+":"+target)
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

func (f *fakeServer) Schema(ctx context.Context, id string) (schema.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema %s not found", id)
	}
	return fieldpath.CloneObject(n), nil
}

func (f *fakeServer) PatchSchema(ctx context.Context, id string, n schema.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaPuts++
	f.schemas[id] = fieldpath.CloneObject(n)
	return nil
}

func (f *fakeServer) recorded() []review.Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]review.Patch(nil), f.patches...)
}

func (f *fakeServer) set(id string, doc review.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = doc
}
