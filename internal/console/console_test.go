package console

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/api"
	"github.com/and161185/motectl/internal/api/apitest"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository/sqlite"
	"github.com/and161185/motectl/internal/service"
)

type harness struct {
	srv     *apitest.Server
	con     *Console
	confirm *service.ScriptedConfirmer
	notes   *service.RecordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	srv.AddAdmin("ops@example.com", "s3cret")
	srv.AddCollection(model.Collection{ID: "c1", Name: "posts", Schema: model.Schema{
		{Name: "title", Type: model.FieldText},
		{Name: "views", Type: model.FieldNumber},
	}})

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := api.New(srv.URL)
	busy := &service.Busy{}
	confirm := &service.ScriptedConfirmer{}
	notes := &service.RecordingNotifier{}
	deps := Deps{
		Auth:        service.NewAuthService(client, store, client, nil, nil),
		Collections: service.NewCollectionService(client, confirm, busy, nil),
		Records:     service.NewRecordService(client, busy, nil),
		Lists:       service.NewListService(client, confirm, busy, nil),
		Transfer:    service.NewTransferService(client, busy, nil),
		Admin:       service.NewAdminService(client, confirm, busy, nil),
		Lookup:      client,
	}
	return &harness{srv: srv, con: New(deps, confirm, notes, nil), confirm: confirm, notes: notes}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.con.Login(context.Background(), "ops@example.com", "s3cret"))
}

func TestParseRoute(t *testing.T) {
	t.Parallel()
	tests := []struct {
		token string
		want  Route
		canon string
	}{
		{"", Route{}, "/"},
		{"/", Route{}, "/"},
		{"#/collections/posts", Route{View: ViewCollection, Collection: "posts"}, "/collections/posts"},
		{"//collections//posts/", Route{View: ViewCollection, Collection: "posts"}, "/collections/posts"},
		{"/records/posts/new", Route{View: ViewRecord, Collection: "posts", RecordID: "new"}, "/records/posts/new"},
		{"/records/posts", Route{}, "/"},
		{"/collections", Route{}, "/"},
		{"/settings", Route{View: ViewSettings}, "/settings"},
		{"/logs", Route{View: ViewLogs}, "/logs"},
		{"/jobs", Route{View: ViewJobs}, "/jobs"},
		{"/crons", Route{View: ViewCrons}, "/crons"},
		{"#/login", Route{View: ViewLogin}, "/login"},
		{"/nowhere", Route{}, "/"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()
			got := ParseRoute(tt.token)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.canon, got.String())
		})
	}
}

func TestNavigate_RequiresLogin(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Equal(t, ViewLogin, h.con.Route.View)

	h.login(t)
	require.Equal(t, ViewDashboard, h.con.Route.View)
	require.Len(t, h.con.Collections, 1)

	require.NoError(t, h.con.Navigate(ctx, "/login"))
	require.Equal(t, ViewDashboard, h.con.Route.View)

	require.NoError(t, h.con.Logout(ctx))
	require.Nil(t, h.con.Session)
	require.Equal(t, ViewLogin, h.con.Route.View)
}

func TestNavigate_UnknownCollection(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.con.Navigate(context.Background(), "/collections/ghosts"))
	require.Equal(t, ViewDashboard, h.con.Route.View)
	last, ok := h.notes.Last()
	require.True(t, ok)
	require.Equal(t, `Collection "ghosts" not found`, last.Message)
}

func TestNavigate_CollectionListResets(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.AddRecord("posts", model.Record{"title": "a"})
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Len(t, h.con.List.Records, 1)
	h.con.List.SetFilter("title='a'")
	h.con.List.ToggleSort("title")

	require.NoError(t, h.con.Navigate(ctx, "/"))
	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Empty(t, h.con.List.Filter)
	require.Equal(t, service.SortNone, h.con.List.SortDir)
}

func TestNavigate_GuardsDirtyForm(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	rec := h.srv.AddRecord("posts", model.Record{"title": "a"})
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.con.Navigate(ctx, "/records/posts/"+rec.ID()))
	require.NotNil(t, h.con.Form)
	require.False(t, h.con.BeforeUnload())

	// clean form: leaving asks nothing
	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Empty(t, h.confirm.Questions)

	require.NoError(t, h.con.Navigate(ctx, "/records/posts/"+rec.ID()))
	require.NoError(t, h.con.Form.Set("title", "b"))
	require.True(t, h.con.BeforeUnload())

	// same route is not leaving
	require.NoError(t, h.con.Navigate(ctx, "#/records/posts/"+rec.ID()))
	require.Empty(t, h.confirm.Questions)

	h.confirm.Answers = []bool{false}
	form := h.con.Form
	err := h.con.Navigate(ctx, "/collections/posts")
	require.ErrorIs(t, err, errs.ErrNavigationCancelled)
	require.Equal(t, ViewRecord, h.con.Route.View)
	require.Same(t, form, h.con.Form)
	require.Equal(t, "b", h.con.Form.Value("title"))
	require.Equal(t, []string{LeaveMessage}, h.confirm.Questions)

	h.confirm.Answers = []bool{true}
	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Equal(t, ViewCollection, h.con.Route.View)
	require.Nil(t, h.con.Form)
}

func TestSaveRecord_NavigatesToList(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.con.Navigate(ctx, "/records/posts/new"))
	require.True(t, h.con.Form.IsNew())
	require.NoError(t, h.con.Form.Set("title", "hello"))
	require.NoError(t, h.con.Form.Set("views", "3"))

	require.NoError(t, h.con.SaveRecord(ctx))
	require.Equal(t, Route{View: ViewCollection, Collection: "posts"}, h.con.Route)
	require.Empty(t, h.confirm.Questions)
	require.Len(t, h.srv.Records("posts"), 1)
	require.Len(t, h.con.List.Records, 1)
}

func TestNavigate_RecordLoadFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.con.Navigate(context.Background(), "/records/posts/missing"))
	require.Equal(t, ViewRecord, h.con.Route.View)
	require.Nil(t, h.con.Form)
	require.False(t, h.con.BeforeUnload())
	_, ok := h.notes.Last()
	require.True(t, ok)
}

func TestReport_UnauthorizedDropsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)
	ctx := context.Background()

	h.srv.Fail(http.MethodGet, "/api/collections/posts/records", http.StatusUnauthorized, `{"error":"Token expired"}`)
	require.NoError(t, h.con.Navigate(ctx, "/collections/posts"))
	require.Nil(t, h.con.Session)
	require.Equal(t, ViewLogin, h.con.Route.View)
}

func TestRestore_UsesPersistedSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	require.ErrorIs(t, h.con.Restore(ctx), errs.ErrUnauthorized)
	h.login(t)

	other := New(h.con.Deps(), h.confirm, h.notes, nil)
	require.NoError(t, other.Restore(ctx))
	require.Equal(t, "ops@example.com", other.Session.Admin.Email)
	require.Equal(t, ViewDashboard, other.Route.View)
}

func TestNavigate_AdminViews(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.srv.SetSettings(model.Settings{"appName": "mote"})
	h.srv.AddJob(model.Job{Name: "mail", Status: "failed"})
	h.srv.AddCron(model.CronEntry{Name: "cleanup", Schedule: "@hourly"})
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.con.Navigate(ctx, "/settings"))
	require.Equal(t, "mote", h.con.Settings.Values["appName"])
	require.NoError(t, h.con.Navigate(ctx, "/jobs"))
	require.Len(t, h.con.Jobs.Result.Items, 1)
	require.NoError(t, h.con.Navigate(ctx, "/logs"))
	require.NotNil(t, h.con.Logs)
	require.NoError(t, h.con.Navigate(ctx, "/crons"))
	require.Len(t, h.con.Crons, 1)
	require.NotZero(t, h.con.Crons[0].NextRun)
}
