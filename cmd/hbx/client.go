// ABOUTME: Client commands that talk to a running management server.
// ABOUTME: Plugins roster, child bridges, pairings, users, logs and platform tools.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/2389/hbx/internal/api"
	"github.com/2389/hbx/internal/childbridge"
	"github.com/2389/hbx/internal/logs"
	"github.com/2389/hbx/internal/notify"
	"github.com/2389/hbx/internal/pairings"
	"github.com/2389/hbx/internal/platform"
	"github.com/2389/hbx/internal/roster"
	"github.com/2389/hbx/internal/users"
	"github.com/2389/hbx/internal/ws"
)

// controlTimeout bounds how long a bridge control command waits for the
// resulting status push.
const controlTimeout = 10 * time.Second

// session is a logged-in connection to the management server.
type session struct {
	client   *api.Client
	notifier notify.Notifier
	out      io.Writer
}

func connect(ctx context.Context, out io.Writer) (*session, error) {
	client, err := api.New(cfg.Client.URL, api.WithTimeout(cfg.Client.Timeout()))
	if err != nil {
		return nil, err
	}
	if _, err := client.Login(ctx, cfg.Client.Username, cfg.Client.Password); err != nil {
		return nil, fmt.Errorf("login to %s failed: %s", cfg.Client.URL, api.Message(err))
	}
	return &session{client: client, notifier: notify.NewConsole(out), out: out}, nil
}

// bridges opens the child-bridges namespace and seeds a status table.
func (s *session) bridges(ctx context.Context) (*childbridge.Reconciler, *ws.Conn, error) {
	conn, err := ws.Dial(ctx, s.client.SocketURL(childbridge.Namespace))
	if err != nil {
		return nil, nil, err
	}
	rec := childbridge.NewReconciler(conn, nil)
	if err := rec.Seed(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return rec, conn, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func addClientCommands(root *cobra.Command) {
	root.AddCommand(
		newPluginsCmd(),
		newBridgesCmd(),
		newPairingsCmd(),
		newUsersCmd(),
		newLogsCmd(),
		newStatusCmd(),
		newShutdownCmd(),
	)
}

func newPluginsCmd() *cobra.Command {
	var find string
	cmd := &cobra.Command{
		Use:   "plugins [query]",
		Short: "Show the installed plugin roster, or search the registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runPlugins(cmd.Context(), cmd.OutOrStdout(), query, find)
		},
	}
	cmd.Flags().StringVar(&find, "find", "", "Report whether an installed plugin still needs configuration")
	return cmd
}

func runPlugins(ctx context.Context, out io.Writer, query, find string) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}

	settings, err := s.client.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load server settings")
	}

	table := childbridge.NewTable()
	if rec, conn, err := s.bridges(ctx); err != nil {
		log.Warn().Err(err).Msg("child bridge status unavailable")
	} else {
		table = rec.Table()
		conn.Close()
	}

	agg := roster.New(s.client, table, roster.SettingsFrom(settings), s.notifier,
		roster.WithConcurrency(cfg.Client.Concurrency))

	list, err := agg.Submit(ctx, query)
	if err != nil && len(list) == 0 {
		return err
	}

	if find != "" {
		p, needsConfig, found := roster.Find(list, find)
		switch {
		case !found:
			fmt.Fprintf(out, "%s is not installed\n", find)
		case needsConfig:
			fmt.Fprintf(out, "%s %s needs configuration\n", p.Name, p.InstalledVersion)
		default:
			fmt.Fprintf(out, "%s %s is configured\n", p.Name, p.InstalledVersion)
		}
		return nil
	}

	printRoster(out, list)
	return nil
}

func printRoster(out io.Writer, list []roster.Plugin) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINSTALLED\tLATEST\tFLAGS")
	for _, p := range list {
		var flags []string
		if p.UpdateAvailable {
			flags = append(flags, "update")
		}
		if p.Disabled {
			flags = append(flags, "disabled")
		}
		if p.Installed && !p.IsConfigured {
			flags = append(flags, "unconfigured")
		}
		if p.HasChildBridgesUnpaired {
			flags = append(flags, "unpaired")
		} else if p.HasChildBridges {
			flags = append(flags, "child-bridge")
		}
		if p.RecommendChildBridge {
			flags = append(flags, "recommend-child-bridge")
		}
		if p.Verified {
			flags = append(flags, "verified")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.InstalledVersion, p.LatestVersion, strings.Join(flags, ","))
	}
	tw.Flush()
}

func newBridgesCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "bridges",
		Short: "Show child bridge status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridges(cmd.Context(), cmd.OutOrStdout(), watch)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep following status changes")

	for _, action := range []string{"restart", "stop", "start"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " <username>",
			Short: strings.ToUpper(action[:1]) + action[1:] + " a child bridge",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBridgeControl(cmd.Context(), cmd.OutOrStdout(), action, args[0])
			},
		})
	}

	var copyPin bool
	pinCmd := &cobra.Command{
		Use:   "pin <username>",
		Short: "Print the setup pin of a child bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridgePin(cmd.Context(), cmd.OutOrStdout(), args[0], copyPin)
		},
	}
	pinCmd.Flags().BoolVar(&copyPin, "copy", false, "Copy the pin to the clipboard")
	cmd.AddCommand(pinCmd)
	return cmd
}

func runBridges(ctx context.Context, out io.Writer, watch bool) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}

	if !watch {
		rec, conn, err := s.bridges(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		printBridges(out, rec.Table().Snapshot())
		return nil
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	conn, err := ws.Dial(ctx, s.client.SocketURL(childbridge.Namespace))
	if err != nil {
		return err
	}
	defer conn.Close()

	rec := childbridge.NewReconciler(conn, nil)
	sub := conn.Subscribe(childbridge.EventStatusUpdate)
	defer sub.Close()
	if err := rec.Seed(ctx); err != nil {
		return err
	}
	printBridges(out, rec.Table().Snapshot())

	err = rec.Watch(ctx, sub, func(row childbridge.Status) {
		fmt.Fprintf(out, "%s  %-24s %-8s pid=%d\n", time.Now().Format("15:04:05"), row.Name, row.Status, row.PID)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printBridges(out io.Writer, rows []childbridge.Status) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tPLUGIN\tSTATUS\tPID\tPAIRED")
	for _, row := range rows {
		status := string(row.Status)
		if row.ManuallyStopped {
			status += " (stopped)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%t\n", row.Username, row.Name, row.Plugin, status, row.PID, row.Paired)
	}
	tw.Flush()
}

func runBridgeControl(ctx context.Context, out io.Writer, action, username string) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}
	rec, conn, err := s.bridges(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !rec.Table().Has(username) {
		return fmt.Errorf("unknown child bridge %s", username)
	}

	sub := conn.Subscribe(childbridge.EventStatusUpdate)
	defer sub.Close()

	switch action {
	case "restart":
		err = rec.Restart(username)
	case "stop":
		err = rec.Stop(username)
	case "start":
		err = rec.Start(username)
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return rec.Watch(ctx, sub, func(row childbridge.Status) {
		if row.Username != username {
			return
		}
		fmt.Fprintf(out, "%s: %s\n", row.Name, row.Status)
		if row.Status != childbridge.StatePending {
			cancel()
		}
	})
}

func runBridgePin(ctx context.Context, out io.Writer, username string, copyPin bool) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}
	rec, conn, err := s.bridges(ctx)
	if err != nil {
		return err
	}
	conn.Close()

	row, ok := rec.Table().Get(username)
	if !ok {
		return fmt.Errorf("unknown child bridge %s", username)
	}
	fmt.Fprintf(out, "%s\n  pin: %s\n  setup: %s\n", row.Name, row.Pin, row.SetupURI)

	if copyPin {
		if err := clipboard.WriteAll(row.Pin); err != nil {
			s.notifier.Error(notify.TitleError, "Clipboard unavailable")
			return fmt.Errorf("copy pin: %w", err)
		}
		s.notifier.Success("Copied", "Pin copied to clipboard")
	}
	return nil
}

func newPairingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "List child bridge pairings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPairings(cmd.Context(), cmd.OutOrStdout(), nil, false)
		},
	}

	var restart bool
	resetCmd := &cobra.Command{
		Use:   "reset <id>...",
		Short: "Reset the cached accessories of child bridge pairings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPairings(cmd.Context(), cmd.OutOrStdout(), args, restart)
		},
	}
	resetCmd.Flags().BoolVar(&restart, "restart", false, "Restart the affected child bridges afterwards")
	cmd.AddCommand(resetCmd)
	return cmd
}

func runPairings(ctx context.Context, out io.Writer, reset []string, restart bool) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}
	rec, conn, err := s.bridges(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	flow := pairings.NewFlow(s.client, rec.Table(), s.notifier)
	list, err := flow.Load(ctx)
	if err != nil {
		return err
	}

	if len(reset) == 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tPAIRED\tACCESSORIES")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n", p.ID, p.DisplayName, p.Username, p.IsPaired, p.Accessories)
		}
		return tw.Flush()
	}

	for _, id := range reset {
		if err := flow.RemoveAccessories(ctx, id); err != nil {
			return err
		}
	}

	targets := flow.RestartTargets()
	if len(targets) == 0 {
		return nil
	}
	if !restart {
		fmt.Fprintln(out, "Restart these child bridges to apply the reset:")
		for _, t := range targets {
			fmt.Fprintf(out, "  %s (%s)\n", t.DisplayName, t.Username)
		}
		return nil
	}
	for _, t := range targets {
		if err := rec.Restart(t.Username); err != nil {
			return err
		}
		fmt.Fprintf(out, "Restarting %s\n", t.DisplayName)
	}
	return nil
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, m *users.Manager, out io.Writer) error {
				list, err := m.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tADMIN")
				for _, u := range list {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", u.ID, u.Username, u.Name, u.Admin)
				}
				return tw.Flush()
			})
		},
	}

	var add users.AddForm
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password-confirm") {
				add.PasswordConfirm = add.Password
			}
			return withUsers(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, m *users.Manager, out io.Writer) error {
				u, err := m.Add(ctx, add)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Added %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&add.Username, "username", "", "Login name")
	addCmd.Flags().StringVar(&add.Name, "name", "", "Display name")
	addCmd.Flags().StringVar(&add.Password, "password", "", "Password")
	addCmd.Flags().StringVar(&add.PasswordConfirm, "password-confirm", "", "Password again (defaults to --password)")
	addCmd.Flags().BoolVar(&add.Admin, "admin", false, "Grant administrator rights")

	var edit users.EditForm
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			flags := cmd.Flags()
			return withUsers(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, m *users.Manager, out io.Writer) error {
				user, err := findUser(ctx, m, id)
				if err != nil {
					return err
				}
				form := users.EditFormFor(user)
				if flags.Changed("username") {
					form.Username = edit.Username
				}
				if flags.Changed("name") {
					form.Name = edit.Name
				}
				if flags.Changed("admin") {
					form.Admin = edit.Admin
				}
				form.Password = edit.Password
				form.PasswordConfirm = edit.Password
				if flags.Changed("password-confirm") {
					form.PasswordConfirm = edit.PasswordConfirm
				}

				loggedOut, err := m.Update(ctx, user, form)
				if err != nil {
					return err
				}
				if loggedOut {
					fmt.Fprintln(out, "You renamed yourself; log in again with the new username.")
				}
				return nil
			})
		},
	}
	editCmd.Flags().StringVar(&edit.Username, "username", "", "New login name")
	editCmd.Flags().StringVar(&edit.Name, "name", "", "New display name")
	editCmd.Flags().StringVar(&edit.Password, "password", "", "New password (empty keeps the current one)")
	editCmd.Flags().StringVar(&edit.PasswordConfirm, "password-confirm", "", "New password again")
	editCmd.Flags().BoolVar(&edit.Admin, "admin", false, "Administrator rights")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withUsers(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, m *users.Manager, out io.Writer) error {
				user, err := findUser(ctx, m, id)
				if err != nil {
					return err
				}
				return m.Delete(ctx, user)
			})
		},
	}

	cmd.AddCommand(addCmd, editCmd, deleteCmd)
	return cmd
}

func withUsers(ctx context.Context, out io.Writer, fn func(context.Context, *users.Manager, io.Writer) error) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}
	return fn(ctx, users.NewManager(s.client, s.client, s.notifier), out)
}

func findUser(ctx context.Context, m *users.Manager, id int) (api.User, error) {
	list, err := m.List(ctx)
	if err != nil {
		return api.User{}, err
	}
	for _, u := range list {
		if u.ID == id {
			return u, nil
		}
	}
	return api.User{}, fmt.Errorf("user %d not found", id)
}

func newLogsCmd() *cobra.Command {
	var (
		output string
		replay string
		size   logs.Size
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Stream the server log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if replay != "" {
				return replayLog(cmd.OutOrStdout(), replay)
			}
			return runLogs(cmd.Context(), cmd.OutOrStdout(), output, size)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the stream to a file (.lz4 compresses)")
	cmd.Flags().StringVar(&replay, "replay", "", "Print a file written with --output instead of connecting")
	cmd.Flags().IntVar(&size.Cols, "cols", 120, "Terminal width")
	cmd.Flags().IntVar(&size.Rows, "rows", 40, "Terminal height")
	return cmd
}

func runLogs(ctx context.Context, out io.Writer, output string, size logs.Size) error {
	s, err := connect(ctx, out)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	conn, err := ws.Dial(ctx, s.client.SocketURL(logs.Namespace))
	if err != nil {
		return err
	}
	defer conn.Close()

	w := out
	if output != "" {
		capture, err := logs.OpenCapture(output)
		if err != nil {
			return err
		}
		defer capture.Close()
		w = io.MultiWriter(out, capture)
	}

	return logs.NewTerminal(conn, w, size).Run(ctx)
}

func replayLog(out io.Writer, path string) error {
	r, err := logs.OpenReplay(path)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(out, r)
	return err
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show host CPU and memory usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			s, err := connect(cmd.Context(), out)
			if err != nil {
				return err
			}
			st, err := platform.New(s.client, s.notifier).Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "CPU: %.1f%% across %d cores\n", st.CPU.CurrentLoad, st.CPU.Cores)
			fmt.Fprintf(out, "RAM: %s of %s used (%.1f%%)\n", formatBytes(st.RAM.Used), formatBytes(st.RAM.Total), st.RAM.UsedPercent)
			return nil
		},
	}
}

func newShutdownCmd() *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Shut down (or restart) the server host",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			tools := platform.New(s.client, s.notifier)
			if restart {
				err = tools.Restart(cmd.Context())
			} else {
				err = tools.Shutdown(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Request sent to the server host.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Restart instead of shutting down")
	return cmd
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
