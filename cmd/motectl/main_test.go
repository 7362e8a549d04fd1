package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/api/apitest"
	"github.com/and161185/motectl/internal/console"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/limiter"
	"github.com/and161185/motectl/internal/model"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "motectl")
}

type cli struct {
	t   *testing.T
	srv *apitest.Server
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	_ = withTmpConfig(t)
	srv := apitest.New(t)
	srv.AddAdmin("ops@example.com", "s3cret")
	srv.AddCollection(model.Collection{ID: "c1", Name: "posts", Schema: model.Schema{
		{Name: "title", Type: model.FieldText, Required: true},
		{Name: "views", Type: model.FieldNumber},
	}})
	return &cli{t: t, srv: srv}
}

// run executes one invocation with stdin and returns stdout and stderr.
func (c *cli) run(stdin string, args ...string) (string, string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	cmd.SetArgs(append(args, "--server="+c.srv.URL))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, err := c.run("", args...)
	require.NoError(c.t, err, "stderr: %s", errOut)
	return out
}

func (c *cli) login() {
	c.t.Helper()
	c.mustRun("login", "--email", "ops@example.com", "--password", "s3cret")
}

func Test_login_whoami_logout(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("login", "-e", "ops@example.com", "-p", "s3cret")
	require.Contains(t, out, "logged in as ops@example.com")

	out = c.mustRun("whoami")
	require.Contains(t, out, "ops@example.com")

	c.mustRun("logout")
	_, _, err := c.run("", "whoami")
	require.Error(t, err)
}

func Test_login_passwordPrompt(t *testing.T) {
	c := newCLI(t)
	out, errOut, err := c.run("s3cret\n", "login", "--email", "ops@example.com")
	require.NoError(t, err)
	require.Contains(t, errOut, "Password:")
	require.Contains(t, out, "logged in")
}

func Test_login_wrongPassword(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run("", "login", "-e", "ops@example.com", "-p", "nope")
	require.Error(t, err)
}

func Test_login_lockout(t *testing.T) {
	c := newCLI(t)
	for i := 0; i < limiter.DefaultMaxFails; i++ {
		_, _, err := c.run("", "login", "-e", "ops@example.com", "-p", "nope")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	}
	c.srv.ResetRequests()
	_, _, err := c.run("", "login", "-e", "ops@example.com", "-p", "s3cret")
	require.ErrorIs(t, err, errs.ErrTooManyAttempts)
	require.Zero(t, c.srv.CountRequests("POST", "/api/auth/login"))
}

func Test_commandsRequireSession(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run("", "collections", "list")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not logged in")
	require.Zero(t, c.srv.CountRequests("GET", "/api/collections"))
}

func Test_collections_createEditDelete(t *testing.T) {
	c := newCLI(t)
	c.login()

	c.mustRun("collections", "create", "tags",
		"--field", "label:text:required",
		"--field", "kind:select",
		"--option", "kind.values=a,b",
		"--rule", "listRule=true")
	tags, ok := findCol(c.srv.Collections(), "tags")
	require.True(t, ok)
	require.Len(t, tags.Schema, 2)
	require.True(t, tags.Schema[0].Required)
	require.NotNil(t, tags.ListRule)
	require.Equal(t, "true", *tags.ListRule)

	out := c.mustRun("collections", "list", "--filter", "TAG")
	require.Contains(t, out, "tags")
	require.NotContains(t, out, "posts")

	c.mustRun("collections", "edit", "tags", "--rename", "labels", "--remove-field", "kind")
	_, ok = findCol(c.srv.Collections(), "tags")
	require.False(t, ok)
	labels, ok := findCol(c.srv.Collections(), "labels")
	require.True(t, ok)
	require.Len(t, labels.Schema, 1)

	out = c.mustRun("collections", "show", "labels")
	require.Contains(t, out, "label")
	require.Contains(t, out, "listRule")

	c.mustRun("collections", "delete", "labels", "-y")
	_, ok = findCol(c.srv.Collections(), "labels")
	require.False(t, ok)
}

func Test_collections_createRejectsUnknownType(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.srv.ResetRequests()
	_, _, err := c.run("", "collections", "create", "x", "--field", "a:geo")
	require.Error(t, err)
	require.Zero(t, c.srv.CountRequests("POST", "/api/collections"))
}

func Test_collections_deleteDeclined(t *testing.T) {
	c := newCLI(t)
	c.login()
	_, errOut, err := c.run("n\n", "collections", "delete", "posts")
	require.Error(t, err)
	require.Contains(t, errOut, "[y/N]")
	_, ok := findCol(c.srv.Collections(), "posts")
	require.True(t, ok)
}

func findCol(cols []model.Collection, name string) (model.Collection, bool) {
	for _, col := range cols {
		if col.Name == name {
			return col, true
		}
	}
	return model.Collection{}, false
}

func Test_records_createListGetDelete(t *testing.T) {
	c := newCLI(t)
	c.login()

	out := c.mustRun("records", "create", "posts", "--set", "title=Hello", "--set", "views=3")
	require.Contains(t, out, "saved posts/")
	recs := c.srv.Records("posts")
	require.Len(t, recs, 1)
	require.Equal(t, "Hello", recs[0]["title"])
	id := recs[0].ID()

	out = c.mustRun("records", "list", "posts", "--sort", "-title")
	require.Contains(t, out, "Hello")
	require.Contains(t, out, "TITLE (DESC)")
	require.Contains(t, out, "1 total")

	out = c.mustRun("records", "get", "posts", id)
	require.Contains(t, out, "Hello")

	out = c.mustRun("records", "edit", "posts", id)
	require.Contains(t, out, "nothing to change")

	c.mustRun("records", "edit", "posts", id, "--set", "views=4")
	require.EqualValues(t, "4", model.ValueString(c.srv.Records("posts")[0]["views"]))

	c.mustRun("records", "delete", "posts", id, "--yes")
	require.Empty(t, c.srv.Records("posts"))
}

func Test_records_getShowsFileURL(t *testing.T) {
	c := newCLI(t)
	c.srv.AddCollection(model.Collection{Name: "docs", Schema: model.Schema{
		{Name: "title", Type: model.FieldText},
		{Name: "attachment", Type: model.FieldFile},
	}})
	rec := c.srv.AddRecord("docs", model.Record{
		"title":      "report",
		"attachment": map[string]any{"filename": "r.pdf", "mime_type": "application/pdf", "size": 2048},
	})
	c.login()

	out := c.mustRun("records", "get", "docs", rec.ID())
	require.Contains(t, out, "r.pdf (application/pdf, 2.0 kB)")
	require.Contains(t, out, "attachment: "+c.srv.URL+"/api/files/docs/"+rec.ID()+"/r.pdf")
}

func Test_records_bulkDelete(t *testing.T) {
	c := newCLI(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		c.srv.AddRecord("posts", model.Record{"id": id, "title": id})
	}
	c.login()

	out := c.mustRun("records", "delete", "posts", "r1", "r3", "-y")
	require.Contains(t, out, "deleted 2 records")
	recs := c.srv.Records("posts")
	require.Len(t, recs, 1)
	require.Equal(t, "r2", recs[0].ID())
}

func Test_records_badNumberSendsNothing(t *testing.T) {
	c := newCLI(t)
	c.login()
	c.srv.ResetRequests()
	_, _, err := c.run("", "records", "create", "posts", "--set", "title=x", "--set", "views=many")
	require.Error(t, err)
	require.Zero(t, c.srv.CountRequests("POST", "/api/collections/posts/records"))
}

func Test_export_import(t *testing.T) {
	c := newCLI(t)
	c.login()
	dir := t.TempDir()

	path := filepath.Join(dir, "schema.yaml")
	out := c.mustRun("export", "-o", path)
	require.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "name: posts")

	out = c.mustRun("import", path, "--dry-run")
	require.Contains(t, out, "no changes")

	next := filepath.Join(dir, "next.json")
	require.NoError(t, os.WriteFile(next, []byte(`[
  {"name": "tags", "type": "base", "schema": [{"name": "label", "type": "text"}]}
]`), 0o600))

	out = c.mustRun("import", next, "--dry-run")
	require.Contains(t, out, "create")
	require.Contains(t, out, "1 to create, 0 to update, 0 to rename, 0 to delete")
	_, ok := findCol(c.srv.Collections(), "tags")
	require.False(t, ok)

	out = c.mustRun("import", next, "-y")
	require.Contains(t, out, "import applied")
	_, ok = findCol(c.srv.Collections(), "tags")
	require.True(t, ok)
	_, ok = findCol(c.srv.Collections(), "posts")
	require.True(t, ok, "missing collections are kept without --delete-missing")
}

func Test_import_conflictBlocksApply(t *testing.T) {
	c := newCLI(t)
	c.login()
	path := filepath.Join(t.TempDir(), "conflict.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "other", "name": "posts", "schema": []}]`), 0o600))

	c.srv.ResetRequests()
	out, _, err := c.run("", "import", path, "-y")
	require.Error(t, err)
	require.Contains(t, out, "Name already used by another collection")
	require.Zero(t, c.srv.CountRequests("POST", "/api/collections/import"))
}

func Test_import_invalidDocument(t *testing.T) {
	c := newCLI(t)
	c.login()
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "posts"}`), 0o600))
	_, _, err := c.run("", "import", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid format: expected an array of collections")
}

func Test_settings_setGet(t *testing.T) {
	c := newCLI(t)
	c.srv.SetSettings(model.Settings{"appName": "old"})
	c.login()

	c.mustRun("settings", "set", "appName=Motebase", `smtp={"enabled":true}`)
	out := c.mustRun("settings", "get", "appName")
	require.Contains(t, out, `"Motebase"`)
	out = c.mustRun("settings", "get", "smtp")
	require.Contains(t, out, `"enabled": true`)
}

func Test_crons_list(t *testing.T) {
	c := newCLI(t)
	c.login()
	_, errOut, err := c.run("", "crons")
	require.NoError(t, err, errOut)
}

func Test_shell_editAndSave(t *testing.T) {
	c := newCLI(t)
	c.login()

	script := strings.Join([]string{
		"go /collections/posts",
		"new",
		"set title From shell",
		"set views 7",
		"save",
		"quit",
	}, "\n") + "\n"
	out, errOut, err := c.run(script, "shell")
	require.NoError(t, err)
	require.Contains(t, out, "new record in posts")
	require.Contains(t, errOut, "Record saved")

	recs := c.srv.Records("posts")
	require.Len(t, recs, 1)
	require.Equal(t, "From shell", recs[0]["title"])
}

func Test_shell_dirtyGuard(t *testing.T) {
	c := newCLI(t)
	c.login()

	script := strings.Join([]string{
		"go /records/posts/new",
		"set title Draft",
		"go /settings",
		"n",
		"ls",
		"go /settings",
		"y",
		"quit",
	}, "\n") + "\n"
	out, errOut, err := c.run(script, "shell")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(errOut, console.LeaveMessage))
	require.Contains(t, errOut, "cancelled")
	require.Contains(t, out, "/settings> ")
	require.Empty(t, c.srv.Records("posts"))
}

func Test_shell_errorsDoNotEndSession(t *testing.T) {
	c := newCLI(t)
	c.login()

	script := "go /collections/missing\nbogus\nls\n"
	out, errOut, err := c.run(script, "shell")
	require.NoError(t, err)
	require.Contains(t, errOut, `Collection "missing" not found`)
	require.Contains(t, errOut, `unknown command "bogus"`)
	require.Contains(t, out, "posts")
}

func Test_shell_requiresLogin(t *testing.T) {
	c := newCLI(t)
	out, errOut, err := c.run("ls\nfilter x\n", "shell")
	require.NoError(t, err)
	require.Contains(t, out, "not logged in")
	require.Contains(t, errOut, "not logged in")
}
