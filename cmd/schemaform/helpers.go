package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reoring/schemaform"
	"github.com/reoring/schemaform/config"
	"github.com/reoring/schemaform/review"
	"github.com/reoring/schemaform/store"
)

func settings() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

func log() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openStore() (*store.Store, error) {
	path := settings().Database.Path
	if dbPath != "" {
		path = dbPath
	}
	return store.Open(path, store.WithMkdirAll(), store.WithLogger(log().Named("store")))
}

// openSession loads documentID from st into a new review session. A nil
// confirm asks on the command's stdin. Callers must Close the session.
func openSession(cmd *cobra.Command, st *store.Store, documentID string, confirm review.Confirmer) (*review.Session, error) {
	doc, err := st.Fetch(contextOf(cmd), documentID)
	if err != nil {
		return nil, err
	}
	if confirm == nil {
		confirm = promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	c := settings()
	sess := review.NewSession(
		st.Collaborators(confirm),
		review.WithLogger(log().Named("review")),
		review.WithDebounce(c.GetDebounce()),
		review.WithAutosaveTimeout(c.GetAutosaveTimeout()),
	)
	sess.Open(doc)
	return sess, nil
}

// promptConfirmer asks on out and reads a y/N answer from in.
func promptConfirmer(in io.Reader, out io.Writer) review.Confirmer {
	r := bufio.NewReader(in)
	return review.ConfirmFunc(func(ctx context.Context, p review.Prompt) (bool, error) {
		fmt.Fprintf(out, "%s has %d validation error(s) and %d warning(s):\n", p.DocumentID, p.ErrorCount, p.WarningCount)
		for _, is := range p.Issues.Errors() {
			fmt.Fprintf(out, "  %s: %s\n", is.Path, is.Message)
		}
		fmt.Fprint(out, "Verify anyway? [y/N] ")
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}

// parseValue decodes a command line value as JSON, falling back to the raw
// string so that `set doc.json vendor.name ACME` works unquoted.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func readJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := decodeJSONObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func decodeJSONObject(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printError writes err and, when it carries issues, one line per issue.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, err)
	if issues, ok := schemaform.AsIssues(err); ok {
		printIssues(w, issues)
	}
}

func printIssues(w io.Writer, issues schemaform.Issues) {
	for _, is := range issues {
		fmt.Fprintf(w, "  %-7s %s: %s\n", is.Severity, is.Path, is.Message)
	}
}
