// Package main runs the Tableau refresh Temporal worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/nucleus/tableau-worker/internal/activities"
	"github.com/nucleus/tableau-worker/internal/config"
	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/refresh"
	temporal_internal "github.com/nucleus/tableau-worker/internal/temporal"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg := config.Load()

	// Build the connection store: env records always, file and database
	// resolvers when configured. First hit wins.
	resolver, closeStore, err := buildResolver(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build connection store: %v", err)
	}
	defer closeStore()

	// Build the refresh engine
	engine, err := refresh.New(resolver, &refresh.ServerSource{HTTP: cfg.HTTPClient()}, refresh.Options{
		DefaultConnectionID: cfg.DefaultConnectionID,
		Wait:                cfg.WaitOptions(),
	})
	if err != nil {
		log.Fatalf("failed to build refresh engine: %v", err)
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Create worker for the tableau task queue
	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})

	// Register activities
	acts := activities.NewActivities(engine)
	w.RegisterActivity(acts.RefreshResource)

	// Register workflows
	w.RegisterWorkflowWithOptions(temporal_internal.RefreshResourceWorkflowFunc, workflow.RegisterOptions{
		Name: temporal_internal.RefreshResourceWorkflow,
	})

	// Start worker
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(worker.InterruptCh())
	}()

	log.Printf("tableau worker started on task queue: %s", cfg.TemporalTaskQueue)

	// Handle shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down...", sig)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Printf("worker error: %v", err)
		}
	}
}

// buildResolver assembles the connection resolver chain from configuration.
// The returned closer releases the database store when one was opened.
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
		closer = func() {
			if err := store.Close(); err != nil {
				log.Printf("failed to close connections database: %v", err)
			}
		}
	}

	return chain, closer, nil
}
