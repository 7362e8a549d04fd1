package console

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/repository"
	"github.com/and161185/motectl/internal/service"
)

// LeaveMessage is asked before unsaved record edits are discarded.
const LeaveMessage = "You have unsaved changes. Are you sure you want to leave?"

// Deps are the services the console drives.
type Deps struct {
	Auth        service.AuthService
	Collections *service.CollectionService
	Records     *service.RecordService
	Lists       *service.ListService
	Transfer    *service.TransferService
	Admin       *service.AdminService
	Lookup      repository.RecordLookup
}

// Console is the whole console state. It is owned by one goroutine.
type Console struct {
	Route   Route
	Session *model.Session

	Collections []model.Collection
	Current     *model.Collection
	List        *service.ListState
	Form        *service.RecordForm
	Import      *service.ImportSession

	Settings *service.SettingsState
	Logs     *service.LogsState
	Jobs     *service.JobsState
	Crons    []model.CronEntry

	PerPage int

	deps    Deps
	confirm service.Confirmer
	notify  service.Notifier
	log     *zap.Logger
	entered bool
}

// New builds a console on the login route.
func New(deps Deps, c service.Confirmer, n service.Notifier, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{
		Route:   Route{View: ViewLogin},
		PerPage: service.DefaultPerPage,
		deps:    deps,
		confirm: c,
		notify:  n,
		log:     log,
	}
}

// Deps exposes the services for direct actions.
func (c *Console) Deps() Deps { return c.deps }

// Notify reports a message to the operator.
func (c *Console) Notify(ctx context.Context, level service.Level, msg string) {
	if c.notify != nil {
		c.notify.Notify(ctx, level, msg)
	}
}

// Report notifies err. An unauthorized error also drops the session.
func (c *Console) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errs.ErrUnauthorized) && c.Session != nil {
		c.Session = nil
		c.leaveTo(Route{View: ViewLogin})
	}
	c.Notify(ctx, service.LevelError, err.Error())
}

// Restore resumes a persisted session, if any.
func (c *Console) Restore(ctx context.Context) error {
	sess, err := c.deps.Auth.Current(ctx)
	if err != nil {
		return err
	}
	c.Session = &sess
	return c.enter(ctx, Route{})
}

// Login authenticates and lands on the dashboard.
func (c *Console) Login(ctx context.Context, email, password string) error {
	sess, err := c.deps.Auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	c.Session = &sess
	return c.enter(ctx, Route{})
}

// Logout clears the session. Unsaved edits are guarded like navigation.
func (c *Console) Logout(ctx context.Context) error {
	if err := c.guardLeave(ctx); err != nil {
		return err
	}
	if err := c.deps.Auth.Logout(ctx); err != nil {
		return err
	}
	c.Session = nil
	c.leaveTo(Route{View: ViewLogin})
	return nil
}

// Dirty reports whether the active record editor holds unsaved edits.
func (c *Console) Dirty() bool {
	return c.Route.View == ViewRecord && c.Form != nil && c.Form.IsDirty()
}

// BeforeUnload reports whether quitting must be confirmed.
func (c *Console) BeforeUnload() bool { return c.Dirty() }

func (c *Console) guardLeave(ctx context.Context) error {
	if !c.Dirty() {
		return nil
	}
	if c.confirm == nil || !c.confirm.Confirm(ctx, LeaveMessage) {
		return errs.ErrNavigationCancelled
	}
	return nil
}

// Navigate moves to the route named by token. Leaving a dirty record editor
// asks first; declining returns errs.ErrNavigationCancelled and changes
// nothing. Load failures are reported through the notifier.
func (c *Console) Navigate(ctx context.Context, token string) error {
	r := ParseRoute(token)
	if c.entered && r == c.Route {
		return nil
	}
	if err := c.guardLeave(ctx); err != nil {
		return err
	}
	switch {
	case c.Session == nil:
		r = Route{View: ViewLogin}
	case r.View == ViewLogin:
		r = Route{}
	}
	return c.enter(ctx, r)
}

// leaveTo commits r and drops per-view state.
func (c *Console) leaveTo(r Route) {
	if r.View != ViewRecord {
		c.Form = nil
	}
	c.Route = r
	c.entered = true
}

func (c *Console) enter(ctx context.Context, r Route) error {
	c.log.Debug("navigate", zap.String("from", c.Route.String()), zap.String("to", r.String()))
	switch r.View {
	case ViewDashboard:
		c.leaveTo(r)
		c.Current, c.List = nil, nil
		c.LoadCollections(ctx)
	case ViewCollection, ViewRecord:
		col, ok := c.lookupCollection(ctx, r.Collection)
		if !ok {
			c.Notify(ctx, service.LevelError, fmt.Sprintf("Collection %q not found", r.Collection))
			return c.enter(ctx, Route{})
		}
		c.Current = &col
		if r.View == ViewCollection {
			c.leaveTo(r)
			c.List = service.NewListState(col.Name, c.PerPage)
			c.Report(ctx, c.deps.Lists.Load(ctx, c.List))
			return nil
		}
		form, err := c.deps.Records.LoadForEdit(ctx, col, r.RecordID)
		c.leaveTo(r)
		c.Form = form
		c.Report(ctx, err)
	case ViewSettings:
		c.leaveTo(r)
		st, err := c.deps.Admin.LoadSettings(ctx)
		c.Settings = st
		c.Report(ctx, err)
	case ViewLogs:
		c.leaveTo(r)
		c.Logs = &service.LogsState{Page: 1}
		c.Report(ctx, c.deps.Admin.LoadLogs(ctx, c.Logs))
	case ViewJobs:
		c.leaveTo(r)
		c.Jobs = &service.JobsState{Page: 1}
		c.Report(ctx, c.deps.Admin.LoadJobs(ctx, c.Jobs))
	case ViewCrons:
		c.leaveTo(r)
		crons, err := c.deps.Admin.ListCrons(ctx)
		c.Crons = crons
		c.Report(ctx, err)
	default:
		c.leaveTo(r)
	}
	return nil
}

// lookupCollection finds name in the cached list, reloading once on a miss.
func (c *Console) lookupCollection(ctx context.Context, name string) (model.Collection, bool) {
	if col, ok := service.FindCollection(c.Collections, name); ok {
		return col, true
	}
	if !c.LoadCollections(ctx) {
		return model.Collection{}, false
	}
	return service.FindCollection(c.Collections, name)
}

// LoadCollections refreshes the live collections. On failure the previous
// list is kept and the error reported.
func (c *Console) LoadCollections(ctx context.Context) bool {
	cols, err := c.deps.Collections.List(ctx)
	if err != nil {
		c.Report(ctx, err)
		return false
	}
	c.Collections = cols
	return true
}

// SaveRecord saves the active form and returns to its collection list.
func (c *Console) SaveRecord(ctx context.Context) error {
	if c.Route.View != ViewRecord || c.Form == nil {
		return fmt.Errorf("%w: no record is being edited", errs.ErrValidation)
	}
	if _, err := c.deps.Records.Save(ctx, c.Form); err != nil {
		return err
	}
	c.Notify(ctx, service.LevelSuccess, "Record saved")
	return c.Navigate(ctx, "/collections/"+c.Form.Collection.Name)
}

// SetCollections swaps in a reloaded live set, e.g. after an import.
func (c *Console) SetCollections(cols []model.Collection) {
	c.Collections = cols
	if c.Current == nil {
		return
	}
	if col, ok := service.FindCollection(cols, c.Current.Name); ok {
		c.Current = &col
	}
}
