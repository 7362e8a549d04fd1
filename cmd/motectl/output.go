package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/and161185/motectl/internal/api"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
)

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// table writes tab-aligned rows under an upper-case header.
func table(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

func unixString(sec int64) string {
	if sec == 0 {
		return "—"
	}
	t := time.Unix(sec, 0)
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.RFC3339), humanize.Time(t))
}

// printRecord writes one record field by field in schema order, then any
// remaining keys.
func printRecord(w io.Writer, col model.Collection, rec model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", rec.ID())
	seen := map[string]bool{model.KeyID: true}
	for _, def := range col.Schema {
		seen[def.Name] = true
		fmt.Fprintf(tw, "%s\t%s\n", def.Name, fieldText(def, rec[def.Name]))
	}
	for _, k := range []string{model.KeyCreatedAt, model.KeyUpdatedAt} {
		seen[k] = true
		if v, ok := rec[k]; ok {
			fmt.Fprintf(tw, "%s\t%s\n", k, model.ValueString(v))
		}
	}
	var rest []string
	for k := range rec {
		if !seen[k] && k != model.KeyPasswordHash {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(tw, "%s\t%s\n", k, schema.EncodeValue(rec[k]))
	}
	_ = tw.Flush()
}

// fieldText renders a value for the detail view. Files show their size.
func fieldText(def model.FieldDefinition, v any) string {
	if def.Type == model.FieldFile {
		if f, ok := schema.ExistingFile(v); ok {
			s := fmt.Sprintf("%s (%s", f.Filename, f.MimeType)
			if f.Size > 0 {
				s += ", " + humanize.Bytes(uint64(f.Size))
			}
			return s + ")"
		}
	}
	return schema.Display(def, v)
}

// printFileLinks lists the retrieval URL of every stored file of a record.
func printFileLinks(w io.Writer, c *api.Client, col model.Collection, id string, value func(string) any) {
	for _, def := range col.Schema {
		if def.Type != model.FieldFile {
			continue
		}
		if f, ok := schema.ExistingFile(value(def.Name)); ok {
			fmt.Fprintf(w, "%s: %s\n", def.Name, c.FileURL(col.Name, id, f.Filename))
		}
	}
}

func sortedOptionKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
