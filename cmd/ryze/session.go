package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ryzeai/ryze/client"
	"github.com/ryzeai/ryze/config"
	"github.com/ryzeai/ryze/event"
	"github.com/ryzeai/ryze/llm"
	"github.com/ryzeai/ryze/session"
	"github.com/ryzeai/ryze/storage"
)

// openSession opens the persisted session the configuration points at. The
// returned func releases the storage backend.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*client.Runner, func(), error) {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	c := client.New(cfg.Client.ServerURL, client.WithLogger(logger))
	runner, err := client.Open(ctx, c, session.NewRepository(store, session.WithLogger(logger)),
		client.WithRunnerLogger(logger))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return runner, closeStore, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.Client.Storage {
	case config.StorageMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.StorageNATS:
		n, err := connectNATS(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		kv, err := storage.NewKVStore(ctx, n.JetStream(), storage.BucketSessions, cfg.Client.Session)
		if err != nil {
			n.Close()
			return nil, nil, err
		}
		return kv, n.Close, nil
	default:
		logger.Debug("Using file session store", "dir", cfg.Client.StateDir)
		return storage.NewFileStore(cfg.Client.StateDir), func() {}, nil
	}
}

func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.NATS, error) {
	return storage.ConnectNATS(ctx, storage.NATSOptions{
		URL:      cfg.NATS.URL,
		Embedded: cfg.NATS.Embedded,
		StoreDir: cfg.NATS.StoreDir,
	}, logger)
}

// withSession loads the config, opens the session and runs fn with it.
func withSession(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, r *client.Runner) error) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	runner, closeStore, err := openSession(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(cmd.Context(), runner)
}

func chatCmd(g *globalFlags) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "chat <request>",
		Short: "Describe a UI or a change to the current one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := strings.Join(args, " ")
			return withSession(cmd, g, func(ctx context.Context, r *client.Runner) error {
				return runChat(ctx, r, intent, cmd.OutOrStdout(), quiet)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only the explanation, not the code")
	return cmd
}

func runChat(ctx context.Context, r *client.Runner, intent string, out io.Writer, quiet bool) error {
	var code string
	result, err := r.Send(ctx, intent, func(ev event.Event) {
		switch ev := ev.(type) {
		case event.PlanReady:
			fmt.Fprintf(out, "Plan: %s\n\n", ev.Plan.Layout)
		case event.CodeReady:
			code = ev.Code
		case event.ExplanationChunk:
			fmt.Fprint(out, ev.Text)
		}
	})

	switch result {
	case session.Failed:
		fmt.Fprintln(out, session.ApologyMessage)
		return err
	case session.Interrupted:
		fmt.Fprintln(out, "\n(interrupted; history not updated)")
		return err
	}
	fmt.Fprintln(out)
	if !quiet {
		fmt.Fprintf(out, "\n%s\n", code)
	}
	if result == session.Unchanged {
		fmt.Fprintln(out, "\n(no change to the code; history not updated)")
	}
	return err
}

func undoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Show the previous result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, r *client.Runner) error {
				return printStep(cmd.OutOrStdout(), r, "undo")(r.Undo(ctx))
			})
		},
	}
}

func redoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Show the next result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, r *client.Runner) error {
				return printStep(cmd.OutOrStdout(), r, "redo")(r.Redo(ctx))
			})
		},
	}
}

func printStep(out io.Writer, r *client.Runner, verb string) func(bool, error) error {
	return func(changed bool, err error) error {
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintf(out, "Nothing to %s.\n", verb)
			return nil
		}
		snap := r.Snapshot()
		fmt.Fprintf(out, "Now at %d/%d\n\n%s\n", snap.Cursor+1, len(snap.History), snap.CurrentCode)
		return nil
	}
}

func resetCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the session and its history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, r *client.Runner) error {
				if err := r.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
				return nil
			})
		},
	}
}

func historyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the accepted results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(_ context.Context, r *client.Runner) error {
				printHistory(cmd.OutOrStdout(), r.Snapshot())
				return nil
			})
		},
	}
}

func printHistory(out io.Writer, snap client.Snapshot) {
	if len(snap.History) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return
	}
	for i, e := range snap.History {
		marker := " "
		if i == snap.Cursor {
			marker = "*"
		}
		layout := "(no plan)"
		if e.Plan != nil {
			layout = e.Plan.Layout
		}
		fmt.Fprintf(out, "%s %2d  %s\n", marker, i+1, layout)
		if e.Explanation != "" {
			fmt.Fprintf(out, "      %s\n", firstLine(e.Explanation))
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func showCmd(g *globalFlags) *cobra.Command {
	var what string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current code, plan or transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(_ context.Context, r *client.Runner) error {
				return printShow(cmd.OutOrStdout(), r.Snapshot(), what)
			})
		},
	}
	cmd.Flags().StringVar(&what, "what", "code", "What to print: code, plan or messages")
	return cmd
}

func printShow(out io.Writer, snap client.Snapshot, what string) error {
	switch what {
	case "code":
		fmt.Fprintln(out, snap.CurrentCode)
	case "plan":
		if snap.CurrentPlan == nil {
			fmt.Fprintln(out, "No plan yet.")
			return nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(snap.CurrentPlan)
	case "messages":
		for _, m := range snap.Messages {
			fmt.Fprintf(out, "%s: %s\n", m.Role, m.Content)
		}
	default:
		return fmt.Errorf("unknown value %q for --what (want code, plan or messages)", what)
	}
	return nil
}

func diffCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show how the code changed between two history entries",
		Long: `Prints a line diff between two history entries, numbered as in
"ryze history". With no arguments it compares the entry before the current
one with the current one; with one argument it compares that entry with the
current one.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(_ context.Context, r *client.Runner) error {
				return printDiff(cmd.OutOrStdout(), r.Snapshot(), args)
			})
		},
	}
}

func printDiff(out io.Writer, snap client.Snapshot, args []string) error {
	from, to := snap.Cursor-1, snap.Cursor
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid history entry %q", arg)
		}
		if i == 0 {
			from = n - 1
		} else {
			to = n - 1
		}
	}
	if len(args) == 0 && snap.Cursor < 1 {
		fmt.Fprintln(out, "Nothing to compare yet.")
		return nil
	}

	lines, err := session.RestoreHistory(snap.History, snap.Cursor).DiffEntries(from, to)
	if err != nil {
		return err
	}
	if !session.HasChanges(lines) {
		fmt.Fprintln(out, "No differences.")
		return nil
	}

	fmt.Fprintf(out, "--- %d\n+++ %d\n", from+1, to+1)
	for _, l := range lines {
		prefix := " "
		switch l.Op {
		case session.DiffAdded:
			prefix = "+"
		case session.DiffRemoved:
			prefix = "-"
		}
		fmt.Fprintf(out, "%s%s\n", prefix, l.Text)
	}
	return nil
}

func callsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calls <request-id>",
		Short: "List the LLM calls recorded for a request",
		Long: `Lists the LLM calls the server recorded for one chat request. The
server must run with server.record_calls enabled and share the NATS server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			n, err := connectNATS(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer n.Close()

			store, err := llm.NewCallStore(cmd.Context(), n.JetStream(), llm.WithStoreLogger(logger))
			if err != nil {
				return err
			}
			records, err := store.GetByTraceID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCalls(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func printCalls(out io.Writer, records []*llm.CallRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No calls recorded.")
		return
	}
	for _, r := range records {
		status := "ok"
		if r.Error != "" {
			status = "error: " + r.Error
		}
		fmt.Fprintf(out, "%s  %-9s %-28s %6dms  %5d tokens  %s\n",
			r.StartedAt.Format("15:04:05"), r.Capability, r.Provider+"/"+r.Model,
			r.DurationMs, r.TotalTokens, status)
	}
}
