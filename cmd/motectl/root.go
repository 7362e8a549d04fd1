package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/motectl/internal/api"
	"github.com/and161185/motectl/internal/config"
	"github.com/and161185/motectl/internal/console"
	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/limiter"
	"github.com/and161185/motectl/internal/logging"
	"github.com/and161185/motectl/internal/repository/sqlite"
	"github.com/and161185/motectl/internal/service"
)

// app is the per-invocation wiring shared by all subcommands.
type app struct {
	configFile string
	yes        bool
	jsonOut    bool

	cfg    config.Config
	log    *zap.Logger
	client *api.Client
	store  *sqlite.Store
	busy   *service.Busy

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	confirm service.Confirmer
	notify  service.Notifier
	deps    console.Deps
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: bufio.NewReader(in), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "motectl",
		Short: "motectl - motebase admin console",
		Long: `motectl manages a motebase server: collection schemas, records,
definition export/import, settings, logs, jobs and crons.

Run "motectl shell" for the interactive console.`,
		Version:           fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/motectl/motectl.yaml)")
	pf.String("server", "", "motebase server URL")
	pf.String("state-dir", "", "directory of the local session database")
	pf.Duration("timeout", 0, "HTTP request timeout")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&a.yes, "yes", "y", false, "answer yes to every confirmation")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newCollectionsCmd(a),
		newRecordsCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newSettingsCmd(a),
		newLogsCmd(a),
		newJobsCmd(a),
		newCronsCmd(a),
		newShellCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}
	a.store, err = sqlite.Open(cmd.Context(), cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}

	a.client = api.New(cfg.Server, api.WithTimeout(cfg.Timeout), api.WithLogger(a.log))
	a.busy = &service.Busy{}
	a.confirm = &promptConfirmer{in: a.in, out: a.errOut}
	if a.yes {
		a.confirm = service.AlwaysConfirm
	}
	a.notify = &writerNotifier{w: a.errOut}
	lim := limiter.NewSQL(a.store.DB(), cfg.Server, limiter.DefaultWindow, limiter.DefaultMaxFails, limiter.DefaultBlockFor)
	a.deps = console.Deps{
		Auth:        service.NewAuthService(a.client, a.store, a.client, lim, a.log),
		Collections: service.NewCollectionService(a.client, a.confirm, a.busy, a.log),
		Records:     service.NewRecordService(a.client, a.busy, a.log),
		Lists:       service.NewListService(a.client, a.confirm, a.busy, a.log),
		Transfer:    service.NewTransferService(a.client, a.busy, a.log),
		Admin:       service.NewAdminService(a.client, a.confirm, a.busy, a.log),
		Lookup:      a.client,
	}
	a.log.Debug("configured", zap.String("server", cfg.Server), zap.String("state", cfg.StatePath()))
	return nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// session restores the stored login and sets the client token.
func (a *app) session(ctx context.Context) error {
	if _, err := a.deps.Auth.Current(ctx); err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return errors.New("not logged in (run: motectl login)")
		}
		return err
	}
	return nil
}

// authed wraps a RunE so it runs with a restored session.
func (a *app) authed(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.session(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}
