package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/motectl/internal/console"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
	"github.com/and161185/motectl/internal/service"
)

const shellHelp = `navigation:
  go <route>            /, /collections/<name>, /records/<name>/<id|new>,
                        /settings, /logs, /jobs, /crons
  ls                    show the current view
  login <email>         sign in (password is prompted)
  logout
  quit                  leave the shell
collections (dashboard):
  find <text>           filter collections by name or type
  drop <name>           delete a collection
  export [json|yaml] [file]
  import <file>         review a definition file
  delete-missing on|off include deletions in the review
  apply                 apply the reviewed import
records (collection view):
  filter <expr>         server filter, empty to clear
  sort <field>          cycle asc, desc, none
  page <n> | next | prev
  select <id|all>       toggle selection
  delete [id]           delete one record or the selection
  new | edit <id>       open the record editor
editor (record view):
  set <field> <value>   parse and set a field
  file <field> <path>   stage an upload
  clearfile <field>     remove the stored file
  password <pw> <confirm>
  relation <field> [filter]  search the related collection
  pick <n>              link search result n
  unlink <field>        clear a relation
  save
admin views:
  set <key>=<value>     (settings) change a setting; save to store
  retry <id> | retry-all | deljob <id> | clearjobs [status]   (jobs)
  clearlogs             (logs)`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive console",
		Long: `Interactive console with one view at a time. Leaving a record editor
with unsaved changes asks first. Type "help" for commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := &shell{a: a, c: console.New(a.deps, a.confirm, a.notify, a.log)}
			s.c.PerPage = a.cfg.PerPage
			return s.run(cmd.Context())
		},
	}
}

type shell struct {
	a      *app
	c      *console.Console
	picker *service.RelationPicker
}

func (s *shell) out() io.Writer { return s.a.out }

func (s *shell) run(ctx context.Context) error {
	if err := s.c.Restore(ctx); err != nil && !errors.Is(err, errs.ErrUnauthorized) {
		s.c.Report(ctx, err)
	}
	s.show()
	for {
		fmt.Fprintf(s.out(), "%s> ", s.c.Route)
		line, err := readLine(s.a.in)
		if err != nil {
			fmt.Fprintln(s.out())
			if s.c.BeforeUnload() {
				s.c.Notify(ctx, service.LevelWarning, "unsaved changes discarded")
			}
			return nil
		}
		if line == "" {
			continue
		}
		if done := s.exec(ctx, line); done {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should end.
// Failures are reported and never end the shell.
func (s *shell) exec(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error
	switch name {
	case "quit", "exit", "q":
		if s.c.BeforeUnload() && !s.a.confirm.Confirm(ctx, console.LeaveMessage) {
			return false
		}
		return true
	case "help", "?":
		fmt.Fprintln(s.out(), shellHelp)
	case "ls":
		s.show()
	case "go", "cd":
		err = s.navigate(ctx, rest)
	case "login":
		err = s.login(ctx, rest)
	case "logout":
		err = s.c.Logout(ctx)
	default:
		if s.c.Session == nil {
			err = fmt.Errorf("%w: not logged in (use: login <email>)", errs.ErrUnauthorized)
			break
		}
		err = s.viewCommand(ctx, name, rest)
	}
	if err != nil {
		s.report(ctx, err)
	}
	return false
}

func (s *shell) report(ctx context.Context, err error) {
	if errors.Is(err, errs.ErrNavigationCancelled) || errors.Is(err, errs.ErrNotConfirmed) {
		s.c.Notify(ctx, service.LevelInfo, "cancelled")
		return
	}
	s.c.Report(ctx, err)
}

func (s *shell) navigate(ctx context.Context, token string) error {
	if err := s.c.Navigate(ctx, token); err != nil {
		return err
	}
	s.picker = nil
	s.show()
	return nil
}

func (s *shell) login(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("%w: usage: login <email>", errs.ErrValidation)
	}
	pw, err := prompt(s.a.in, s.a.errOut, "Password")
	if err != nil {
		return err
	}
	if err := s.c.Login(ctx, email, pw); err != nil {
		return err
	}
	fmt.Fprintf(s.out(), "logged in as %s\n", s.c.Session.Admin.Email)
	s.show()
	return nil
}

func (s *shell) viewCommand(ctx context.Context, name, rest string) error {
	switch s.c.Route.View {
	case console.ViewDashboard:
		return s.dashboardCommand(ctx, name, rest)
	case console.ViewCollection:
		return s.listCommand(ctx, name, rest)
	case console.ViewRecord:
		return s.editorCommand(ctx, name, rest)
	case console.ViewSettings, console.ViewLogs, console.ViewJobs, console.ViewCrons:
		return s.adminCommand(ctx, name, rest)
	}
	return unknownCommand(name)
}

func unknownCommand(name string) error {
	return fmt.Errorf("%w: unknown command %q here (try: help)", errs.ErrValidation, name)
}

func (s *shell) dashboardCommand(ctx context.Context, name, rest string) error {
	d := s.c.Deps()
	switch name {
	case "find":
		s.printCollections(service.FilterCollections(s.c.Collections, rest))
	case "drop":
		cols, err := d.Collections.Delete(ctx, rest)
		if err != nil {
			return err
		}
		s.c.SetCollections(cols)
		s.c.Notify(ctx, service.LevelSuccess, "Collection deleted")
	case "export":
		return s.export(ctx, strings.Fields(rest))
	case "import":
		data, err := os.ReadFile(rest)
		if err != nil {
			return err
		}
		sess, err := d.Transfer.Preview(ctx, data, service.FormatFromPath(rest))
		if err != nil {
			return err
		}
		s.c.Import = sess
		printChanges(s.out(), sess)
	case "delete-missing":
		if s.c.Import == nil {
			return fmt.Errorf("%w: no import under review", errs.ErrValidation)
		}
		s.c.Import.DeleteMissing = rest == "on" || rest == "true"
		printChanges(s.out(), s.c.Import)
	case "apply":
		if s.c.Import == nil {
			return fmt.Errorf("%w: no import under review", errs.ErrValidation)
		}
		if err := d.Transfer.Apply(ctx, s.c.Import); err != nil {
			return err
		}
		s.c.SetCollections(s.c.Import.Live)
		s.c.Notify(ctx, service.LevelSuccess, "Import applied")
		printChanges(s.out(), s.c.Import)
	default:
		return unknownCommand(name)
	}
	return nil
}

func (s *shell) export(ctx context.Context, args []string) error {
	f := service.FormatJSON
	if len(args) > 0 {
		var err error
		if f, err = service.ParseFormat(args[0]); err != nil {
			return err
		}
	}
	path := service.ExportFileName(time.Now(), f)
	if len(args) > 1 {
		path = args[1]
	}
	data, err := s.c.Deps().Transfer.Export(ctx, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	s.c.Notify(ctx, service.LevelSuccess, "Exported to "+path)
	return nil
}

func (s *shell) listCommand(ctx context.Context, name, rest string) error {
	l := s.c.List
	lists := s.c.Deps().Lists
	reload := func() error {
		err := lists.Load(ctx, l)
		printList(s.a, *s.c.Current, l)
		return err
	}
	switch name {
	case "filter":
		l.SetFilter(rest)
		return reload()
	case "sort":
		l.ToggleSort(rest)
		return reload()
	case "next":
		if l.NextPage() {
			return reload()
		}
	case "prev":
		if l.PrevPage() {
			return reload()
		}
	case "page":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("%w: page %q", errs.ErrValidation, rest)
		}
		if l.GoToPage(n) {
			return reload()
		}
	case "select":
		if rest == "all" {
			l.ToggleSelectAll()
		} else {
			l.ToggleSelection(rest)
		}
		printList(s.a, *s.c.Current, l)
	case "delete":
		if rest != "" {
			if err := lists.Delete(ctx, l, rest); err != nil {
				return err
			}
		} else {
			n, err := lists.BulkDelete(ctx, l)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: nothing selected", errs.ErrValidation)
			}
		}
		s.c.Notify(ctx, service.LevelSuccess, "Deleted")
		printList(s.a, *s.c.Current, l)
	case "new":
		return s.navigate(ctx, "/records/"+l.Collection+"/"+service.NewRecordID)
	case "edit":
		return s.navigate(ctx, "/records/"+l.Collection+"/"+rest)
	default:
		return unknownCommand(name)
	}
	return nil
}

func (s *shell) editorCommand(ctx context.Context, name, rest string) error {
	f := s.c.Form
	if f == nil {
		return fmt.Errorf("%w: the record could not be loaded", errs.ErrNotFound)
	}
	field, value, _ := strings.Cut(rest, " ")
	value = strings.TrimSpace(value)
	switch name {
	case "set":
		if err := f.Set(field, value); err != nil {
			return err
		}
	case "file":
		up, err := loadUpload(value)
		if err != nil {
			return err
		}
		if err := f.StageFile(field, up); err != nil {
			return err
		}
	case "clearfile":
		f.UnstageFile(field)
		f.ClearExistingFile(field)
	case "password":
		if err := f.SetPassword(field, value); err != nil {
			return err
		}
	case "relation":
		def, ok := f.Collection.Schema.Field(field)
		if !ok || def.Type != model.FieldRelation {
			return fmt.Errorf("%w: %q is not a relation field", errs.ErrValidation, field)
		}
		p, err := service.NewRelationPicker(s.c.Deps().Lookup, def, s.c.Collections)
		if err != nil {
			return err
		}
		s.picker = p
		if err := p.Search(ctx, value); err != nil {
			return err
		}
		for i, rec := range p.Options {
			fmt.Fprintf(s.out(), "%3d  %s  %s\n", i+1, rec.ID(), service.DisplayLabel(rec))
		}
		return nil
	case "pick":
		if s.picker == nil {
			return fmt.Errorf("%w: run relation <field> first", errs.ErrValidation)
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > len(s.picker.Options) {
			return fmt.Errorf("%w: pick 1-%d", errs.ErrValidation, len(s.picker.Options))
		}
		if err := s.picker.Select(f, s.picker.Options[n-1]); err != nil {
			return err
		}
	case "unlink":
		def, ok := f.Collection.Schema.Field(field)
		if !ok {
			return fmt.Errorf("%w: unknown field %q", errs.ErrValidation, field)
		}
		p, err := service.NewRelationPicker(s.c.Deps().Lookup, def, s.c.Collections)
		if err != nil {
			return err
		}
		if err := p.Clear(f); err != nil {
			return err
		}
	case "save":
		if err := s.c.SaveRecord(ctx); err != nil {
			return err
		}
		s.picker = nil
		s.show()
		return nil
	default:
		return unknownCommand(name)
	}
	s.show()
	return nil
}

func (s *shell) adminCommand(ctx context.Context, name, rest string) error {
	admin := s.c.Deps().Admin
	switch {
	case s.c.Route.View == console.ViewSettings && name == "set":
		if s.c.Settings == nil {
			return fmt.Errorf("%w: settings are not loaded", errs.ErrNotFound)
		}
		key, val, ok := strings.Cut(rest, "=")
		if !ok || key == "" {
			return fmt.Errorf("%w: usage: set <key>=<value>", errs.ErrValidation)
		}
		s.c.Settings.Set(strings.TrimSpace(key), settingValue(strings.TrimSpace(val)))
	case s.c.Route.View == console.ViewSettings && name == "save":
		if s.c.Settings == nil {
			return fmt.Errorf("%w: settings are not loaded", errs.ErrNotFound)
		}
		if err := admin.SaveSettings(ctx, s.c.Settings); err != nil {
			return err
		}
		s.c.Notify(ctx, service.LevelSuccess, "Settings saved")
	case s.c.Route.View == console.ViewLogs && name == "clearlogs":
		if err := admin.ClearLogs(ctx); err != nil {
			return err
		}
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewLogs && (name == "next" || name == "prev"):
		s.c.Logs.Page = stepPage(s.c.Logs.Page, name, s.c.Logs.Result.TotalPages)
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewJobs && (name == "next" || name == "prev"):
		s.c.Jobs.Page = stepPage(s.c.Jobs.Page, name, s.c.Jobs.Result.TotalPages)
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewJobs && name == "retry":
		if err := admin.RetryJob(ctx, rest); err != nil {
			return err
		}
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewJobs && name == "retry-all":
		n, err := admin.RetryAllJobs(ctx)
		if err != nil {
			return err
		}
		s.c.Notify(ctx, service.LevelSuccess, fmt.Sprintf("%d jobs queued", n))
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewJobs && name == "deljob":
		if err := admin.DeleteJob(ctx, rest); err != nil {
			return err
		}
		return s.reloadAdmin(ctx)
	case s.c.Route.View == console.ViewJobs && name == "clearjobs":
		if err := admin.ClearJobs(ctx, rest); err != nil {
			return err
		}
		return s.reloadAdmin(ctx)
	default:
		return unknownCommand(name)
	}
	s.show()
	return nil
}

func stepPage(page int, dir string, total int) int {
	if dir == "next" {
		return min(page+1, max(total, 1))
	}
	return max(page-1, 1)
}

func (s *shell) reloadAdmin(ctx context.Context) error {
	admin := s.c.Deps().Admin
	var err error
	switch s.c.Route.View {
	case console.ViewLogs:
		err = admin.LoadLogs(ctx, s.c.Logs)
	case console.ViewJobs:
		err = admin.LoadJobs(ctx, s.c.Jobs)
	}
	s.show()
	return err
}

// show renders the current view.
func (s *shell) show() {
	w := s.out()
	switch s.c.Route.View {
	case console.ViewLogin:
		fmt.Fprintln(w, "not logged in (use: login <email>)")
	case console.ViewDashboard:
		s.printCollections(s.c.Collections)
	case console.ViewCollection:
		if s.c.List != nil && s.c.Current != nil {
			fmt.Fprintf(w, "%s (%s)\n", s.c.Current.Name, s.c.Current.TypeOrDefault())
			printList(s.a, *s.c.Current, s.c.List)
		}
	case console.ViewRecord:
		s.printForm()
	case console.ViewSettings:
		if s.c.Settings != nil {
			printJSON(w, s.c.Settings.Values)
			if s.c.Settings.IsDirty() {
				fmt.Fprintln(w, "(unsaved)")
			}
		}
	case console.ViewLogs:
		if s.c.Logs != nil {
			printLogs(w, s.c.Logs)
		}
	case console.ViewJobs:
		if s.c.Jobs != nil {
			printJobs(w, s.c.Jobs)
		}
	case console.ViewCrons:
		printCrons(w, s.c.Crons)
	}
}

func (s *shell) printCollections(cols []model.Collection) {
	rows := make([][]string, 0, len(cols))
	for _, c := range cols {
		rows = append(rows, []string{c.Name, string(c.TypeOrDefault()), strconv.Itoa(len(c.Schema))})
	}
	table(s.out(), []string{"collection", "type", "fields"}, rows)
}

func (s *shell) printForm() {
	w := s.out()
	f := s.c.Form
	if f == nil {
		fmt.Fprintln(w, "record not loaded")
		return
	}
	title := "new record"
	if !f.IsNew() {
		title = "record " + f.RecordID
	}
	fmt.Fprintf(w, "%s in %s\n", title, f.Collection.Name)
	uploads := f.Uploads()
	rows := make([][]string, 0, len(f.Fields()))
	for _, def := range f.Fields() {
		req := ""
		if def.Required {
			req = "*"
		}
		val := fieldText(def, f.Value(def.Name))
		if up, ok := uploads[def.Name]; ok {
			val = "staged: " + up.Filename
		}
		widget := ""
		if k, err := schema.KindOf(def.Type); err == nil {
			widget = string(k.Widget())
		}
		rows = append(rows, []string{def.Name + req, widget, val})
	}
	table(w, []string{"field", "widget", "value"}, rows)
	if !f.IsNew() {
		printFileLinks(w, s.a.client, f.Collection, f.RecordID, f.Value)
	}
	if f.IsDirty() {
		fmt.Fprintln(w, "(unsaved changes)")
	}
}
