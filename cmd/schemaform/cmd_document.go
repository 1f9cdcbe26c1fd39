package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reoring/schemaform/confidence"
	"github.com/reoring/schemaform/fieldpath"
	"github.com/reoring/schemaform/internal/jsondup"
	"github.com/reoring/schemaform/review"
)

var (
	showConfidence bool
	getAll         bool
	validateJSON   bool
	docSchemaID    string
	docID          string
	acceptErrors   bool
	strictImport   bool
)

var getCmd = &cobra.Command{
	Use:   "get <document-file> <path>",
	Short: "Print the value at a field path of a JSON document",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <document-file> <path> <value>",
	Short: "Write a value at a field path of a JSON document in place",
	Long: `Write a value at a field path. The value is parsed as JSON and taken as a
plain string when it is not valid JSON. Missing objects and array elements
along the path are created.`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var importDocCmd = &cobra.Command{
	Use:   "import-doc <data-file>",
	Short: "Store extracted data as a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportDoc,
}

var editCmd = &cobra.Command{
	Use:   "edit <document-id> <path> <value>",
	Short: "Edit a stored document field and save it",
	Args:  cobra.ExactArgs(3),
	RunE:  runEdit,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <document-id>",
	Short: "Mark a stored document as human verified",
	Long: `Save the document, validate it and mark it verified. When validation
reports errors the command asks for confirmation on stdin unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var validateCmd = &cobra.Command{
	Use:   "validate <document-id>",
	Short: "Validate a stored document against its schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var reextractCmd = &cobra.Command{
	Use:   "reextract <document-id> <path>",
	Short: "Queue re-extraction of the field (or array) behind a path",
	Args:  cobra.ExactArgs(2),
	RunE:  runReextract,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List queued re-extraction jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var hintCmd = &cobra.Command{
	Use:   "hint <document-id> <path> <hint>",
	Short: "Set the extraction hint of a field in the document's schema",
	Long:  `Set the extraction hint of a field. An empty hint removes it.`,
	Args:  cobra.ExactArgs(3),
	RunE:  runHint,
}

func init() {
	getCmd.Flags().BoolVar(&showConfidence, "confidence", false, "also print the confidence tier of the path")
	getCmd.Flags().BoolVar(&getAll, "all", false, "print every element a wildcard path addresses")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the report as JSON")
	importDocCmd.Flags().StringVar(&docID, "id", "", "document id (default: file name without extension)")
	importDocCmd.Flags().StringVar(&docSchemaID, "schema", "", "schema id the document was extracted with")
	importDocCmd.Flags().BoolVar(&strictImport, "strict", false, "reject documents with duplicate keys")
	verifyCmd.Flags().BoolVarP(&acceptErrors, "yes", "y", false, "verify despite validation errors without asking")
}

func runGet(cmd *cobra.Command, args []string) error {
	doc, err := readJSONObject(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if getAll {
		for _, p := range fieldpath.Expand(doc, args[1]) {
			v, ok := fieldpath.Get(doc, p)
			if !ok {
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\n", p, data)
		}
		return nil
	}
	v, ok := fieldpath.Get(doc, args[1])
	if !ok {
		return fmt.Errorf("%s: no value at %s", args[0], args[1])
	}
	if err := writeJSON(out, v); err != nil {
		return err
	}
	if showConfidence {
		r := confidence.New(doc, confidence.WithThresholds(settings().Confidence))
		path := fieldpath.Normalize(args[1])
		score, found := r.Score(path, args[1])
		if found {
			fmt.Fprintf(out, "confidence: %.2f (%s)\n", score, r.TierFor(path, args[1]))
		} else {
			fmt.Fprintln(out, "confidence: none")
		}
		for _, a := range r.Alerts() {
			fmt.Fprintf(out, "alert: %s\n", a)
		}
	}
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	doc, err := readJSONObject(args[0])
	if err != nil {
		return err
	}
	updated, err := fieldpath.Set(doc, args[1], parseValue(args[2]),
		fieldpath.OnOverwrite(func(path string, old any) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: replaced %v at %s\n", old, path)
		}))
	if err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := writeJSON(f, updated); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runImportDoc(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	dups, err := jsondup.Check(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	for _, is := range dups {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", is.Path, is.Message)
	}
	if strictImport && len(dups) > 0 {
		return fmt.Errorf("%s: %w", args[0], dups)
	}
	data, err := decodeJSONObject(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	id := docID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.PutDocument(contextOf(cmd), review.Document{ID: id, SchemaID: docSchemaID, ExtractedData: data}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "document %s stored\n", id)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sess, err := openSession(cmd, st, args[0], nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.UpdateField(args[1], parseValue(args[2])); err != nil {
		return err
	}
	outcome, err := sess.Save(contextOf(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	var confirm review.Confirmer
	if acceptErrors {
		confirm = review.ConfirmFunc(func(context.Context, review.Prompt) (bool, error) { return true, nil })
	}
	sess, err := openSession(cmd, st, args[0], confirm)
	if err != nil {
		return err
	}
	defer sess.Close()
	if err := sess.UpdateVerified(true); err != nil {
		return err
	}
	outcome, err := sess.Save(contextOf(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], outcome)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	report, err := st.Validate(contextOf(cmd), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if validateJSON {
		return writeJSON(out, report)
	}
	fmt.Fprintf(out, "%s: %d error(s), %d warning(s)\n", args[0], report.ErrorCount, report.WarningCount)
	printIssues(out, report.Issues.Errors())
	printIssues(out, report.Issues.Warnings())
	return nil
}

func runReextract(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sess, err := openSession(cmd, st, args[0], nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	jobID, err := sess.ReExtractField(contextOf(cmd), args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "job %s queued\n", jobID)
	return nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	jobs, err := st.PendingJobs(contextOf(cmd))
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", j.ID, j.DocumentID, j.Target, j.Status)
	}
	return nil
}

func runHint(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	sess, err := openSession(cmd, st, args[0], nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	schemaID := sess.SchemaID()
	if schemaID == "" {
		return fmt.Errorf("document %s has no schema", args[0])
	}
	if _, err := sess.EditHint(contextOf(cmd), schemaID, args[1], args[2]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "hint for %s updated in schema %s\n", fieldpath.Normalize(args[1]), schemaID)
	return nil
}
