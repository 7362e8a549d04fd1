package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/service"
)

func newExportCmd(a *app) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all collection definitions",
		Long: `Export all collection definitions as JSON or YAML. Use -o - for stdout.

Examples:
  motectl export
  motectl export --format yaml -o schema.yaml`,
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			f, err := service.ParseFormat(format)
			if err != nil {
				return err
			}
			if format == "" && output != "" && output != "-" {
				f = service.FormatFromPath(output)
			}
			data, err := a.deps.Transfer.Export(cmd.Context(), f)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = a.out.Write(data)
				return err
			}
			if output == "" {
				output = service.ExportFileName(time.Now(), f)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported to %s\n", output)
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from the output extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string
	var deleteMissing, dryRun, watch bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Review and apply a collection definition file",
		Long: `Compare a definition file with the live collections, print the changes
and apply them after confirmation. Apply is refused while a conflict remains.
Collections missing from the file are only deleted with --delete-missing.

With --watch the review is printed again every time the file changes.

Examples:
  motectl import schema.yaml --dry-run
  motectl import schema.json --delete-missing -y
  motectl import schema.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f := service.FormatFromPath(path)
			if format != "" {
				var err error
				if f, err = service.ParseFormat(format); err != nil {
					return err
				}
			}
			if watch {
				return a.deps.Transfer.Watch(cmd.Context(), path, f, func(sess *service.ImportSession, err error) {
					if err != nil {
						a.notify.Notify(cmd.Context(), service.LevelError, err.Error())
						return
					}
					sess.DeleteMissing = deleteMissing
					fmt.Fprintf(a.out, "--- %s\n", time.Now().Format(time.TimeOnly))
					printChanges(a.out, sess)
				})
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			sess, err := a.deps.Transfer.Preview(cmd.Context(), data, f)
			if err != nil {
				return err
			}
			sess.DeleteMissing = deleteMissing
			if a.jsonOut {
				printJSON(a.out, sess.Changes)
			} else {
				printChanges(a.out, sess)
			}
			if dryRun {
				return nil
			}
			if sess.HasConflicts() {
				return errs.ErrImportConflict
			}
			if sess.Summary().Empty() {
				fmt.Fprintln(a.out, "nothing to import")
				return nil
			}
			if !a.confirm.Confirm(cmd.Context(), "Apply these changes?") {
				return errs.ErrNotConfirmed
			}
			if err := a.deps.Transfer.Apply(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "import applied")
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from the file extension)")
	cmd.Flags().BoolVar(&deleteMissing, "delete-missing", false, "delete live collections absent from the file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print the changes")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-review whenever the file changes")
	return cmd
}

// printChanges writes the review table and the summary line.
func printChanges(w io.Writer, sess *service.ImportSession) {
	if len(sess.Changes) == 0 {
		fmt.Fprintln(w, "no changes")
		return
	}
	rows := make([][]string, 0, len(sess.Changes))
	for _, c := range sess.Changes {
		rows = append(rows, []string{string(c.Kind), c.Name, changeDetail(c, sess.DeleteMissing)})
	}
	table(w, []string{"change", "collection", "detail"}, rows)

	s := sess.Summary()
	fmt.Fprintf(w, "\n%d to create, %d to update, %d to rename, %d to delete",
		s.Creates, s.Updates, s.Renames, s.Deletes)
	if s.Conflicts > 0 {
		fmt.Fprintf(w, ", %d conflicts (apply blocked)", s.Conflicts)
	}
	fmt.Fprintln(w)
}

func changeDetail(c model.ImportChange, deleteMissing bool) string {
	switch c.Kind {
	case model.ChangeCreate:
		return strconv.Itoa(c.FieldCount) + " fields"
	case model.ChangeRename:
		return "renamed from " + c.OldName
	case model.ChangeUpdate:
		switch {
		case c.SchemaChanged && c.RulesChanged:
			return "schema and rules"
		case c.SchemaChanged:
			return "schema"
		default:
			return "rules"
		}
	case model.ChangeConflict:
		return c.Reason
	case model.ChangeDelete:
		if deleteMissing {
			return "will be deleted"
		}
		return "kept (use --delete-missing)"
	}
	return ""
}
