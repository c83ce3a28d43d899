// Package main is a one-shot Tableau refresh trigger for operators: it runs
// the same refresh engine as the Temporal worker, without Temporal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/log"

	"github.com/nucleus/tableau-worker/internal/config"
	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
	"github.com/nucleus/tableau-worker/internal/refresh"
)

var (
	flagResource    string
	flagName        string
	flagProject     string
	flagSite        string
	flagConnection  string
	flagNoWait      bool
	flagDeadline    time.Duration
	flagConnections string
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "tableau-refresh",
	Short: "Trigger a Tableau extract refresh",
	Long: `Triggers an extract refresh of a workbook or datasource and waits for the
job to finish. Connections are resolved from TABLEAU_CONN_* environment
variables, an optional connections file, and an optional connections
database, in that order.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&flagResource, "resource", "", "resource kind: workbook or datasource")
	rootCmd.Flags().StringVar(&flagName, "name", "", "resource name")
	rootCmd.Flags().StringVar(&flagProject, "project", "", "project the resource lives in")
	rootCmd.Flags().StringVar(&flagSite, "site", "", "site content URL, overrides the connection's site")
	rootCmd.Flags().StringVar(&flagConnection, "connection", "", "connection id (default from TABLEAU_DEFAULT_CONNECTION_ID)")
	rootCmd.Flags().BoolVar(&flagNoWait, "no-wait", false, "return after triggering, do not wait for the job")
	rootCmd.Flags().DurationVar(&flagDeadline, "deadline", 0, "overall wait deadline, 0 waits until the job finishes")
	rootCmd.Flags().StringVar(&flagConnections, "connections-file", "", "YAML connections file (default from TABLEAU_CONNECTIONS_FILE)")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "log engine progress")

	_ = rootCmd.MarkFlagRequired("resource")
	_ = rootCmd.MarkFlagRequired("name")
	_ = rootCmd.MarkFlagRequired("project")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if flagConnections != "" {
		cfg.ConnectionsFile = flagConnections
	}
	if flagDeadline > 0 {
		cfg.WaitDeadline = flagDeadline
	}

	resolver, closeStore, err := buildResolver(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	engine, err := refresh.New(resolver, &refresh.ServerSource{HTTP: cfg.HTTPClient()}, refresh.Options{
		DefaultConnectionID: cfg.DefaultConnectionID,
		Wait:                cfg.WaitOptions(),
		Logger:              log.NewStructuredLogger(logger),
	})
	if err != nil {
		return err
	}

	blocking := !flagNoWait
	result, err := engine.Execute(cmd.Context(), refresh.Request{
		Kind:         refresh.Kind(flagResource),
		Name:         flagName,
		Project:      flagProject,
		SiteID:       flagSite,
		ConnectionID: flagConnection,
		Blocking:     &blocking,
		RequestID:    uuid.NewString(),
		OnPoll: func(job *tableau.Job) {
			if job.Progress != "" {
				cmd.Printf("\rjob %s: %s%%", job.ID, job.Progress)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if blocking {
		cmd.Printf("\rjob %s: %s\n", result.JobID, result.Status)
	} else {
		cmd.Printf("job %s triggered, not waiting\n", result.JobID)
	}
	return nil
}

// buildResolver assembles the connection resolver chain from configuration.
func buildResolver(ctx context.Context, cfg *config.Config) (connection.Resolver, func(), error) {
	chain := connection.Chain{connection.EnvResolver{}}
	closer := func() {}

	if cfg.ConnectionsFile != "" {
		fileResolver, err := connection.NewFileResolver(cfg.ConnectionsFile)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, fileResolver)
	}

	if cfg.ConnectionsDatabaseURL != "" {
		store, err := connection.NewStore(ctx, cfg.ConnectionsDatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, store)
		closer = func() { _ = store.Close() }
	}

	return chain, closer, nil
}

func main() {
	// Ctrl-C cancels the wait loop between polls; the session still gets
	// its sign-out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
