package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
	"github.com/and161185/motectl/internal/schema"
	"github.com/and161185/motectl/internal/service"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change server settings",
	}
	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Print the settings document or one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			st, err := a.deps.Admin.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				v, ok := st.Values[args[0]]
				if !ok {
					return fmt.Errorf("%w: no setting %q", errs.ErrNotFound, args[0])
				}
				printJSON(a.out, v)
				return nil
			}
			printJSON(a.out, st.Values)
			return nil
		}),
	}
	set := &cobra.Command{
		Use:   "set key=value...",
		Short: "Change top-level settings",
		Long: `Change top-level settings. A value that parses as JSON is sent as JSON,
anything else as a string.

Example:
  motectl settings set appName=Motebase 'smtp={"enabled":false}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			st, err := a.deps.Admin.LoadSettings(cmd.Context())
			if err != nil {
				return err
			}
			for _, kv := range args {
				key, val, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return fmt.Errorf("%w: %q must be key=value", errs.ErrValidation, kv)
				}
				st.Set(key, settingValue(val))
			}
			if !st.IsDirty() {
				fmt.Fprintln(a.out, "nothing to change")
				return nil
			}
			if err := a.deps.Admin.SaveSettings(cmd.Context(), st); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "settings saved")
			return nil
		}),
	}
	cmd.AddCommand(get, set)
	return cmd
}

func settingValue(s string) any {
	var v any
	if err := model.DecodeJSON([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func printStats(w io.Writer, st model.Stats) {
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, schema.EncodeValue(st[k])})
	}
	table(w, []string{"stat", "value"}, rows)
}

func newLogsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect request logs",
	}
	var st service.LogsState
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of request logs",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			if err := a.deps.Admin.LoadLogs(cmd.Context(), &st); err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, st.Result)
				return nil
			}
			printLogs(a.out, &st)
			return nil
		}),
	}
	list.Flags().IntVar(&st.Page, "page", 1, "page number")
	list.Flags().StringVar(&st.Filter.Status, "status", "", "status code")
	list.Flags().StringVar(&st.Filter.Method, "method", "", "HTTP method")
	list.Flags().StringVar(&st.Filter.Path, "path", "", "path substring")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show log statistics",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			s, err := a.deps.Admin.LogStats(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, s)
				return nil
			}
			printStats(a.out, s)
			return nil
		}),
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every log entry",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			if err := a.deps.Admin.ClearLogs(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "logs cleared")
			return nil
		}),
	}
	cmd.AddCommand(list, stats, clearCmd)
	return cmd
}

func newJobsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage background jobs",
	}
	var st service.JobsState
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of jobs",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			if err := a.deps.Admin.LoadJobs(cmd.Context(), &st); err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, st.Result)
				return nil
			}
			printJobs(a.out, &st)
			return nil
		}),
	}
	list.Flags().IntVar(&st.Page, "page", 1, "page number")
	list.Flags().StringVar(&st.Filter.Status, "status", "", "job status")
	list.Flags().StringVar(&st.Filter.Name, "name", "", "job name")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show job statistics",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			s, err := a.deps.Admin.JobStats(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, s)
				return nil
			}
			printStats(a.out, s)
			return nil
		}),
	}
	retry := &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue one job",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			if err := a.deps.Admin.RetryJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "job %s queued\n", args[0])
			return nil
		}),
	}
	retryAll := &cobra.Command{
		Use:   "retry-all",
		Short: "Requeue every failed job",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			n, err := a.deps.Admin.RetryAllJobs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d jobs queued\n", n)
			return nil
		}),
	}
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one job",
		Args:  cobra.ExactArgs(1),
		RunE: a.authed(func(cmd *cobra.Command, args []string) error {
			if err := a.deps.Admin.DeleteJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "job %s deleted\n", args[0])
			return nil
		}),
	}
	var status string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete jobs by status, or all jobs",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			if err := a.deps.Admin.ClearJobs(cmd.Context(), status); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "jobs cleared")
			return nil
		}),
	}
	clearCmd.Flags().StringVar(&status, "status", "", "only jobs with this status")
	cmd.AddCommand(list, stats, retry, retryAll, del, clearCmd)
	return cmd
}

func newCronsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crons",
		Short: "List scheduled cron jobs",
		RunE: a.authed(func(cmd *cobra.Command, _ []string) error {
			crons, err := a.deps.Admin.ListCrons(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				printJSON(a.out, crons)
				return nil
			}
			printCrons(a.out, crons)
			return nil
		}),
	}
}

func printCrons(w io.Writer, crons []model.CronEntry) {
	rows := make([][]string, 0, len(crons))
	for _, c := range crons {
		rows = append(rows, []string{c.Name, c.Schedule, unixString(c.NextRun), unixString(c.LastRun)})
	}
	table(w, []string{"name", "schedule", "next run", "last run"}, rows)
}

func printLogs(w io.Writer, st *service.LogsState) {
	rows := make([][]string, 0, len(st.Result.Items))
	for _, e := range st.Result.Items {
		rows = append(rows, []string{
			unixString(e.CreatedAt), e.Method, e.Path,
			strconv.Itoa(e.Status), service.StatusClass(e.Status),
			strconv.FormatFloat(e.DurationMs, 'f', 1, 64) + "ms", e.IP,
		})
	}
	table(w, []string{"time", "method", "path", "status", "class", "duration", "ip"}, rows)
	fmt.Fprintf(w, "page %d of %d, %d total\n", st.Page, max(st.Result.TotalPages, 1), st.Result.TotalItems)
}

func printJobs(w io.Writer, st *service.JobsState) {
	rows := make([][]string, 0, len(st.Result.Items))
	for _, j := range st.Result.Items {
		attempts := strconv.Itoa(j.Attempts)
		if j.MaxAttempts > 0 {
			attempts += "/" + strconv.Itoa(j.MaxAttempts)
		}
		rows = append(rows, []string{
			j.ID.String(), j.Name, j.Status, service.JobStatusClass(j.Status),
			attempts, unixString(j.CreatedAt), j.Error,
		})
	}
	table(w, []string{"id", "name", "status", "class", "attempts", "created", "error"}, rows)
	fmt.Fprintf(w, "page %d of %d, %d total\n", st.Page, max(st.Result.TotalPages, 1), st.Result.TotalItems)
}
