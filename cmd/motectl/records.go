package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
	"github.com/and161185/motectl/internal/service"
)

func newRecordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"rec"},
		Short:   "Browse and edit records of a collection",
		Long: `Browse and edit records. Filter and sort expressions are passed to the
server unchanged.

Examples:
  motectl records list posts --filter 'title ~ "go"' --sort -created_at
  motectl records create posts --set title=Hello --file cover=./cover.png
  motectl records edit users 4 --password s3cret --password-confirm s3cret
  motectl records delete posts 3 7 9`,
	}
	cmd.AddCommand(
		newRecordsListCmd(a),
		newRecordsGetCmd(a),
		newRecordsWriteCmd(a, true),
		newRecordsWriteCmd(a, false),
		newRecordsDeleteCmd(a),
		newRecordsDownloadCmd(a),
	)
	return cmd
}

func newRecordsListCmd(a *app) *cobra.Command {
	var filter, sortBy string
	var page, perPage int
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List one page of records",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			col, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			if perPage <= 0 {
				perPage = a.cfg.PerPage
			}
			l := service.NewListState(col.Name, perPage)
			l.Filter = filter
			l.Page = max(page, 1)
			if sortBy != "" {
				l.SortField = strings.TrimPrefix(sortBy, "-")
				l.SortDir = service.SortAsc
				if strings.HasPrefix(sortBy, "-") {
					l.SortDir = service.SortDesc
				}
			}
			if err := a.deps.Lists.Load(cmd.Context(), l); err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, l.Records)
				return nil
			}
			printList(a, col, l)
			return nil
		}),
	}
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort field, prefix with - for descending")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "records per page (default from config)")
	return cmd
}

// printList renders the visible columns of a record page.
func printList(a *app, col model.Collection, l *service.ListState) {
	vis := schema.VisibleFields(col.Schema)
	header := []string{" ", "id"}
	for _, def := range vis {
		h := def.Name
		if l.SortField == def.Name && l.SortDir != service.SortNone {
			h += " (" + l.SortDir.String() + ")"
		}
		header = append(header, h)
	}
	rows := make([][]string, 0, len(l.Records))
	for _, rec := range l.Records {
		mark := " "
		if l.IsSelected(rec.ID()) {
			mark = "*"
		}
		rows = append(rows, append([]string{mark, rec.ID()}, service.DisplayRow(col, rec)...))
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.out, "no records")
	} else {
		table(a.out, header, rows)
	}
	fmt.Fprintf(a.out, "page %d of %d, %d total\n", l.Page, max(l.TotalPages, 1), l.TotalItems)
}

func newRecordsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			col, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			rec, err := a.client.GetRecord(cmd.Context(), col.Name, args[1])
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, rec)
				return nil
			}
			printRecord(a.out, col, rec)
			printFileLinks(a.out, a.client, col, rec.ID(), func(name string) any { return rec[name] })
			return nil
		}),
	}
}

type recordFlags struct {
	set       []string
	files     []string
	clear     []string
	relations []string
	password  string
	confirm   string
}

func (f *recordFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringArrayVar(&f.set, "set", nil, "field=value")
	fl.StringArrayVar(&f.files, "file", nil, "file field=path to upload")
	fl.StringSliceVar(&f.clear, "clear-file", nil, "file field to remove")
	fl.StringArrayVar(&f.relations, "relation", nil, "relation field=record id")
	fl.StringVar(&f.password, "password", "", "new password (auth collections)")
	fl.StringVar(&f.confirm, "password-confirm", "", "repeat the new password")
}

func (f *recordFlags) apply(form *service.RecordForm) error {
	for _, kv := range f.set {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: --set %q must be field=value", errs.ErrValidation, kv)
		}
		if err := form.Set(name, val); err != nil {
			return err
		}
	}
	for _, kv := range f.relations {
		name, id, _ := strings.Cut(kv, "=")
		var v any
		if id != "" {
			v = id
		}
		if err := form.SetValue(name, v); err != nil {
			return err
		}
	}
	for _, name := range f.clear {
		form.ClearExistingFile(name)
	}
	for _, kv := range f.files {
		name, path, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: --file %q must be field=path", errs.ErrValidation, kv)
		}
		up, err := loadUpload(path)
		if err != nil {
			return err
		}
		if err := form.StageFile(name, up); err != nil {
			return err
		}
	}
	if f.password != "" || f.confirm != "" {
		if err := form.SetPassword(f.password, f.confirm); err != nil {
			return err
		}
	}
	return nil
}

// loadUpload reads a local file for staging. The content type follows the
// extension.
func loadUpload(path string) (model.FileUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FileUpload{}, err
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return model.FileUpload{Filename: filepath.Base(path), ContentType: ct, Data: data}, nil
}

func newRecordsWriteCmd(a *app, create bool) *cobra.Command {
	var flags recordFlags
	use, short, nargs := "edit <collection> <id>", "Change a record", 2
	if create {
		use, short, nargs = "create <collection>", "Create a record", 1
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			col, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			id := service.NewRecordID
			if !create {
				id = args[1]
			}
			form, err := a.deps.Records.LoadForEdit(cmd.Context(), col, id)
			if err != nil {
				return err
			}
			if err := flags.apply(form); err != nil {
				return err
			}
			if !form.IsNew() && !form.IsDirty() {
				fmt.Fprintln(a.out, "nothing to change")
				return nil
			}
			saved, err := a.deps.Records.Save(cmd.Context(), form)
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, saved)
				return nil
			}
			fmt.Fprintf(a.out, "saved %s/%s\n", col.Name, form.RecordID)
			return nil
		}),
	}
	flags.bind(cmd)
	return cmd
}

func newRecordsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>...",
		Short: "Delete one or more records",
		Args:  cobra.MinimumNArgs(2),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			col, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			l := service.NewListState(col.Name, a.cfg.PerPage)
			ids := args[1:]
			if len(ids) == 1 {
				if err := a.deps.Lists.Delete(cmd.Context(), l, ids[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s/%s\n", col.Name, ids[0])
				return nil
			}
			for _, id := range ids {
				l.Records = append(l.Records, model.Record{model.KeyID: id})
			}
			l.ToggleSelectAll()
			n, err := a.deps.Lists.BulkDelete(cmd.Context(), l)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %d records\n", n)
			return nil
		}),
	}
}

func newRecordsDownloadCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <collection> <id> <field>",
		Short: "Download the stored file of a file field",
		Args:  cobra.ExactArgs(3),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			rec, err := a.client.GetRecord(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			f, ok := schema.ExistingFile(rec[args[2]])
			if !ok {
				return fmt.Errorf("%w: field %q holds no file", errs.ErrNotFound, args[2])
			}
			if output == "" {
				output = f.Filename
			}
			out, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := a.client.DownloadFile(cmd.Context(), args[0], args[1], f.Filename, out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%s)\n", output, humanize.Bytes(uint64(n)))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: stored filename)")
	return cmd
}
