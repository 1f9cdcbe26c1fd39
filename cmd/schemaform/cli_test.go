package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reoring/schemaform/config"
	"github.com/reoring/schemaform/events"
	"github.com/reoring/schemaform/review"
	"github.com/reoring/schemaform/schema"
	"github.com/reoring/schemaform/store"
)

const invoiceSchema = `
type: object
required: [invoice_no]
properties:
  invoice_no:
    type: string
    title: Invoice No
    x-extraction-hint: top right
  total:
    type: number
  items:
    type: array
    items:
      type: object
      required: [code]
      properties:
        code:
          type: string
          x-extraction-hint: first column
`

// setup points the globals at a fresh workspace and returns it.
func setup(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	dbPath = filepath.Join(ws, "docs.db")
	t.Cleanup(func() {
		logger, cfg, dbPath = nil, nil, ""
		docID, docSchemaID = "", ""
		acceptErrors, showConfidence, strictImport = false, false, false
		getAll, validateJSON = false, false
	})
	return ws
}

func newCmd(stdin string) (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd, out
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestSchemaCommands(t *testing.T) {
	ws := setup(t)
	path := writeFile(t, ws, "invoice.yaml", invoiceSchema)

	cmd, out := newCmd("")
	require.NoError(t, runFields(cmd, []string{path}))
	assert.Contains(t, out.String(), "invoice_no")
	assert.Contains(t, out.String(), "items")
	assert.Contains(t, out.String(), "code")

	cmd, out = newCmd("")
	require.NoError(t, runHints(cmd, []string{path}))
	assert.Equal(t, "invoice_no\ttop right\nitems[].code\tfirst column\n", out.String())

	cmd, out = newCmd("")
	require.NoError(t, runColumns(cmd, []string{path}))
	assert.Equal(t, "Invoice No (invoice_no), total\n", out.String())
}

func TestGetSet(t *testing.T) {
	ws := setup(t)
	path := writeFile(t, ws, "doc.json",
		`{"vendor":{"name":"ACME"},"_extraction_info":{"field_confidences":{"items[].qty":0.5}}}`)

	cmd, _ := newCmd("")
	require.NoError(t, runSet(cmd, []string{path, "items[1].qty", "3"}))
	cmd, _ = newCmd("")
	require.NoError(t, runSet(cmd, []string{path, "vendor.name", "Globex"}))

	showConfidence = true
	cmd, out := newCmd("")
	require.NoError(t, runGet(cmd, []string{path, "items[1].qty"}))
	assert.Equal(t, "3\nconfidence: 0.50 (low)\n", out.String())

	showConfidence = false
	cmd, out = newCmd("")
	require.NoError(t, runGet(cmd, []string{path, "vendor.name"}))
	assert.Equal(t, "\"Globex\"\n", out.String())

	cmd, _ = newCmd("")
	assert.Error(t, runGet(cmd, []string{path, "vendor.phone"}))

	getAll = true
	cmd, out = newCmd("")
	require.NoError(t, runGet(cmd, []string{path, "items[].qty"}))
	assert.Equal(t, "items[1].qty\t3\n", out.String())
}

func TestValidateAndErrorIssues(t *testing.T) {
	ws := setup(t)
	seed(t, ws)

	cmd, out := newCmd("")
	require.NoError(t, runValidate(cmd, []string{"d1"}))
	assert.True(t, strings.HasPrefix(out.String(), "d1: 1 error(s), 0 warning(s)\n  error   invoice_no: "), out.String())

	st, err := openStore()
	require.NoError(t, err)
	_, err = st.Save(context.Background(), "d1", review.Patch{HumanVerified: ptrBool(true)})
	st.Close()
	require.ErrorIs(t, err, store.ErrValidationFailed)

	var buf bytes.Buffer
	printError(&buf, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "human_verified")
	assert.Contains(t, lines[2], "invoice_no")
}

func ptrBool(b bool) *bool { return &b }


func TestReviewFlow(t *testing.T) {
	ws := setup(t)
	schemaPath := writeFile(t, ws, "invoice.yaml", invoiceSchema)
	docPath := writeFile(t, ws, "d1.json", `{"total": 10, "items": [{"code": "A"}]}`)

	cmd, out := newCmd("")
	require.NoError(t, runImportSchema(cmd, []string{"inv", schemaPath}))
	assert.Equal(t, "schema inv stored (version 1)\n", out.String())

	docSchemaID = "inv"
	cmd, out = newCmd("")
	require.NoError(t, runImportDoc(cmd, []string{docPath}))
	assert.Equal(t, "document d1 stored\n", out.String())

	// invoice_no is missing, so verification needs confirmation
	cmd, out = newCmd("n\n")
	require.NoError(t, runVerify(cmd, []string{"d1"}))
	assert.Contains(t, out.String(), "1 validation error(s)")
	assert.Contains(t, out.String(), "invoice_no")
	assert.True(t, strings.HasSuffix(out.String(), "d1: declined\n"), out.String())
	assert.False(t, fetch(t, "d1").HumanVerified)

	cmd, out = newCmd("")
	require.NoError(t, runEdit(cmd, []string{"d1", "invoice_no", "INV-1"}))
	assert.Equal(t, "d1: saved\n", out.String())

	cmd, out = newCmd("")
	require.NoError(t, runVerify(cmd, []string{"d1"}))
	assert.Equal(t, "d1: verified\n", out.String())
	doc := fetch(t, "d1")
	assert.True(t, doc.HumanVerified)
	assert.Equal(t, "INV-1", doc.ExtractedData["invoice_no"])

	// the session resends the verified flag with later edits
	cmd, _ = newCmd("")
	require.NoError(t, runEdit(cmd, []string{"d1", "total", "12.5"}))
	doc = fetch(t, "d1")
	assert.True(t, doc.HumanVerified)
	assert.Equal(t, 12.5, doc.ExtractedData["total"])
}

func TestImportDoc_DuplicateKeys(t *testing.T) {
	ws := setup(t)
	path := writeFile(t, ws, "dup.json", `{"total": 1, "total": 2}`)

	cmd, out := newCmd("")
	require.NoError(t, runImportDoc(cmd, []string{path}))
	assert.Contains(t, out.String(), "warning: total:")
	assert.Equal(t, 2.0, fetch(t, "dup").ExtractedData["total"])

	strictImport = true
	docID = "dup2"
	cmd, _ = newCmd("")
	assert.Error(t, runImportDoc(cmd, []string{path}))
}

func TestVerify_YesSkipsPrompt(t *testing.T) {
	ws := setup(t)
	seed(t, ws)

	acceptErrors = true
	cmd, out := newCmd("")
	require.NoError(t, runVerify(cmd, []string{"d1"}))
	assert.Equal(t, "d1: verified\n", out.String())
	assert.True(t, fetch(t, "d1").HumanVerified)
}

func TestReextractAndHint(t *testing.T) {
	ws := setup(t)
	seed(t, ws)

	cmd, out := newCmd("")
	require.NoError(t, runReextract(cmd, []string{"d1", "items[3].code"}))
	assert.Contains(t, out.String(), "queued")

	cmd, out = newCmd("")
	require.NoError(t, runJobs(cmd, nil))
	assert.Contains(t, out.String(), "\td1\titems[]\tqueued\n")

	cmd, out = newCmd("")
	require.NoError(t, runHint(cmd, []string{"d1", "items[0].code", "second column"}))
	assert.Equal(t, "hint for items[].code updated in schema inv\n", out.String())

	st, err := openStore()
	require.NoError(t, err)
	defer st.Close()
	root, version, err := st.SchemaVersion(context.Background(), "inv")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, "second column", schema.HintAt(root, "items[].code"))
}

func TestNotify(t *testing.T) {
	setup(t)
	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	bus, err := events.NewBus(cfg.Redis.URL)
	require.NoError(t, err)
	defer bus.Close()
	got := make(chan review.Event, 1)
	stop, err := bus.Subscribe(context.Background(), "d1", func(ev review.Event) { got <- ev })
	require.NoError(t, err)
	defer stop()

	cmd, out := newCmd("")
	require.NoError(t, runNotify(cmd, []string{"d1"}))
	assert.Equal(t, "published completed for d1\n", out.String())

	select {
	case ev := <-got:
		assert.Equal(t, review.Event{DocumentID: "d1", Progress: 1, Status: "completed"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func seed(t *testing.T, ws string) {
	t.Helper()
	schemaPath := writeFile(t, ws, "invoice.yaml", invoiceSchema)
	docPath := writeFile(t, ws, "d1.json", `{"total": 10, "items": [{"code": "A"}]}`)
	cmd, _ := newCmd("")
	require.NoError(t, runImportSchema(cmd, []string{"inv", schemaPath}))
	docSchemaID = "inv"
	cmd, _ = newCmd("")
	require.NoError(t, runImportDoc(cmd, []string{docPath}))
}

func fetch(t *testing.T, id string) review.Document {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	doc, err := st.Fetch(context.Background(), id)
	require.NoError(t, err)
	return doc
}
