package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
	"github.com/and161185/motectl/internal/service"
)

func newCollectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"col"},
		Short:   "Manage collection definitions",
		Long: `List, inspect, create, edit and delete collections.

Examples:
  motectl collections list --filter auth
  motectl collections create posts --field title:text:required --field body:json
  motectl collections edit posts --add-field cover:file --rule listRule=true
  motectl collections delete posts`,
	}
	cmd.AddCommand(
		newCollectionsListCmd(a),
		newCollectionsShowCmd(a),
		newCollectionsCreateCmd(a),
		newCollectionsEditCmd(a),
		newCollectionsDeleteCmd(a),
	)
	return cmd
}

func newCollectionsListCmd(a *app) *cobra.Command {
	var filter string
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			cols, err := a.deps.Collections.List(cmd.Context())
			if err != nil {
				return err
			}
			cols = service.FilterCollections(cols, filter)
			if a.jsonOut {
				printJSON(a.out, cols)
				return nil
			}
			shown, pages := service.PageCollections(cols, page)
			rows := make([][]string, 0, len(shown))
			for _, c := range shown {
				rows = append(rows, []string{c.Name, string(c.TypeOrDefault()), strconv.Itoa(len(c.Schema)), c.ID.String()})
			}
			table(a.out, []string{"name", "type", "fields", "id"}, rows)
			if pages > 1 {
				fmt.Fprintf(a.out, "page %d of %d\n", min(max(page, 1), pages), pages)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&filter, "filter", "", "match name or type")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func (a *app) findCollection(cmd *cobra.Command, name string) (model.Collection, error) {
	cols, err := a.deps.Collections.List(cmd.Context())
	if err != nil {
		return model.Collection{}, err
	}
	c, ok := service.FindCollection(cols, name)
	if !ok {
		return model.Collection{}, fmt.Errorf("%w: Collection %q not found", errs.ErrNotFound, name)
	}
	return c, nil
}

func newCollectionsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a collection schema and rules",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			c, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, c)
				return nil
			}
			fmt.Fprintf(a.out, "%s (%s) id=%s\n\n", c.Name, c.TypeOrDefault(), c.ID)
			rows := make([][]string, 0, len(c.Schema))
			for _, def := range c.Schema {
				widget := "?"
				if k, err := schema.KindOf(def.Type); err == nil {
					widget = string(k.Widget())
				}
				rows = append(rows, []string{def.Name, string(def.Type), strconv.FormatBool(def.Required), widget, optionsText(def)})
			}
			table(a.out, []string{"field", "type", "required", "widget", "options"}, rows)
			fmt.Fprintln(a.out)
			rules := c.Rules()
			for i, n := range model.RuleNames {
				fmt.Fprintf(a.out, "%-11s %s\n", n, rules[i])
			}
			return nil
		}),
	}
}

func optionsText(def model.FieldDefinition) string {
	var parts []string
	for _, k := range sortedOptionKeys(def.Options) {
		parts = append(parts, k+"="+schema.EncodeValue(def.Options[k]))
	}
	return strings.Join(parts, " ")
}

type collectionFlags struct {
	typ      string
	rename   string
	add      []string
	remove   []string
	options  []string
	rules    []string
	required []string
}

func (f *collectionFlags) bind(cmd *cobra.Command, edit bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.typ, "type", "", "collection type (base, auth)")
	name := "field"
	if edit {
		name = "add-field"
		fl.StringVar(&f.rename, "rename", "", "new collection name")
		fl.StringSliceVar(&f.remove, "remove-field", nil, "field to remove")
		fl.StringSliceVar(&f.required, "required", nil, "field=true|false")
	}
	fl.StringArrayVar(&f.add, name, nil, "field as name:type[:required]")
	fl.StringArrayVar(&f.options, "option", nil, "field option as field.key=value")
	fl.StringArrayVar(&f.rules, "rule", nil, "rule as listRule=expr (empty expr clears)")
}

// apply edits form per the flags, validating field types locally.
func (f *collectionFlags) apply(form *service.CollectionForm) error {
	if f.typ != "" {
		form.Type = model.CollectionType(f.typ)
	}
	if f.rename != "" {
		form.Name = f.rename
	}
	for _, name := range f.remove {
		i := fieldIndex(form, name)
		if i < 0 {
			return fmt.Errorf("%w: no field %q", errs.ErrValidation, name)
		}
		if err := form.RemoveField(i); err != nil {
			return err
		}
	}
	for _, raw := range f.add {
		parts := strings.Split(raw, ":")
		typ := model.FieldText
		if len(parts) > 1 && parts[1] != "" {
			typ = model.FieldType(parts[1])
		}
		if _, err := schema.KindOf(typ); err != nil {
			return err
		}
		def := form.AddField(typ)
		def.Name = parts[0]
		def.Required = len(parts) > 2 && parts[2] == "required"
	}
	for _, kv := range f.required {
		name, val, _ := strings.Cut(kv, "=")
		i := fieldIndex(form, name)
		if i < 0 {
			return fmt.Errorf("%w: no field %q", errs.ErrValidation, name)
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: required %q: %v", errs.ErrValidation, kv, err)
		}
		form.Fields[i].Required = b
	}
	for _, opt := range f.options {
		key, val, ok := strings.Cut(opt, "=")
		field, name, dotted := strings.Cut(key, ".")
		if !ok || !dotted {
			return fmt.Errorf("%w: option %q must be field.key=value", errs.ErrValidation, opt)
		}
		i := fieldIndex(form, field)
		if i < 0 {
			return fmt.Errorf("%w: no field %q", errs.ErrValidation, field)
		}
		if form.Fields[i].Options == nil {
			form.Fields[i].Options = map[string]any{}
		}
		form.Fields[i].Options[name] = val
	}
	for _, r := range f.rules {
		key, expr, _ := strings.Cut(r, "=")
		if err := form.SetRule(key, expr); err != nil {
			return err
		}
	}
	return nil
}

func fieldIndex(form *service.CollectionForm, name string) int {
	for i, def := range form.Fields {
		if def.Name == name {
			return i
		}
	}
	return -1
}

func newCollectionsCreateCmd(a *app) *cobra.Command {
	var flags collectionFlags
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			form := service.NewCollectionForm(nil)
			form.Name = args[0]
			if err := flags.apply(form); err != nil {
				return err
			}
			if _, err := a.deps.Collections.Save(cmd.Context(), nil, form); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %s\n", strings.TrimSpace(form.Name))
			return nil
		}),
	}
	flags.bind(cmd, false)
	return cmd
}

func newCollectionsEditCmd(a *app) *cobra.Command {
	var flags collectionFlags
	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Change a collection definition",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			cur, err := a.findCollection(cmd, args[0])
			if err != nil {
				return err
			}
			form := service.NewCollectionForm(&cur)
			if err := flags.apply(form); err != nil {
				return err
			}
			if _, err := a.deps.Collections.Save(cmd.Context(), &cur, form); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated %s\n", strings.TrimSpace(form.Name))
			return nil
		}),
	}
	flags.bind(cmd, true)
	return cmd
}

func newCollectionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			if _, err := a.deps.Collections.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", args[0])
			return nil
		}),
	}
}
