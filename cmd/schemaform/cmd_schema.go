package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reoring/schemaform/fields"
	"github.com/reoring/schemaform/schema"
	"github.com/reoring/schemaform/schemawatch"
)

var watchSchema bool

var fieldsCmd = &cobra.Command{
	Use:   "fields <schema-file>",
	Short: "List the editable fields a schema derives",
	Args:  cobra.ExactArgs(1),
	RunE:  runFields,
}

var hintsCmd = &cobra.Command{
	Use:   "hints <schema-file>",
	Short: "List extraction hints by field path",
	Args:  cobra.ExactArgs(1),
	RunE:  runHints,
}

var columnsCmd = &cobra.Command{
	Use:   "columns <schema-file>",
	Short: "Show the document list columns a schema selects",
	Args:  cobra.ExactArgs(1),
	RunE:  runColumns,
}

var importSchemaCmd = &cobra.Command{
	Use:   "import-schema <schema-id> <schema-file>",
	Short: "Store a schema (JSON or YAML) under an id",
	Args:  cobra.ExactArgs(2),
	RunE:  runImportSchema,
}

func init() {
	fieldsCmd.Flags().BoolVarP(&watchSchema, "watch", "w", false, "reprint whenever the schema file changes")
}

func runFields(cmd *cobra.Command, args []string) error {
	root, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printFields(out, root)
	if !watchSchema {
		return nil
	}
	return schemawatch.Watch(contextOf(cmd), args[0], func(n schema.Node) {
		fmt.Fprintln(out, "---")
		printFields(out, n)
	}, schemawatch.WithLogger(log().Named("watch")))
}

func printFields(w io.Writer, root schema.Node) {
	for _, d := range schema.Diagnose(root) {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
	set := fields.Derive(root)
	for _, f := range fields.Sort(set.Scalars) {
		fmt.Fprintf(w, "%-32s %-8s %s%s\n", f.Path, f.Type, requiredMark(f.Required), f.Title)
	}
	for _, a := range fields.Sort(set.ArrayObjects) {
		fmt.Fprintf(w, "%-32s %-8s %s%s\n", a.Path, "array", requiredMark(a.Required), a.Title)
		for _, f := range a.ItemFields {
			fmt.Fprintf(w, "  %-30s %-8s %s%s\n", f.Path, f.Type, requiredMark(f.Required), f.Title)
		}
	}
	for _, a := range fields.Sort(set.Arrays) {
		fmt.Fprintf(w, "%-32s %-8s %s%s\n", a.Path, "list", requiredMark(a.Required), a.Title)
	}
}

func requiredMark(required bool) string {
	if required {
		return "* "
	}
	return "  "
}

func runHints(cmd *cobra.Command, args []string) error {
	root, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}
	hints := schema.HintMap(root)
	paths := make([]string, 0, len(hints))
	for p := range hints {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, hints[p])
	}
	return nil
}

func runColumns(cmd *cobra.Command, args []string) error {
	root, err := schema.LoadFile(args[0])
	if err != nil {
		return err
	}
	cols := fields.TableColumns(root, settings().Table.ColumnLimit)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Path
		if c.Title != "" {
			names[i] = c.Title + " (" + c.Path + ")"
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, ", "))
	return nil
}

func runImportSchema(cmd *cobra.Command, args []string) error {
	root, err := schema.LoadFile(args[1])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := contextOf(cmd)
	if err := st.PutSchema(ctx, args[0], root); err != nil {
		return err
	}
	_, version, err := st.SchemaVersion(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema %s stored (version %d)\n", args[0], version)
	return nil
}
