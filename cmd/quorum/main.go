package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/natsbus"
	"github.com/mberos/quorum/internal/registry"
	"github.com/mberos/quorum/internal/roles"
	"github.com/mberos/quorum/internal/scheduler"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/swarm"
	"github.com/mberos/quorum/internal/vault"
	"github.com/mberos/quorum/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("quorum %s\n", version)
	case "gateway":
		if err := runGateway(); err != nil {
			slog.Error("gateway failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	case "vault":
		if err := runVault(os.Args[2:]); err != nil {
			slog.Error("vault command failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: quorum <command>

Commands:
  gateway    Start the quorum gateway service
  backup     Archive the data directory
  restore    Restore the data directory from an archive
  vault      Manage encrypted secrets
  version    Print version
`)
}

func runGateway() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting quorum gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	// Secrets vault (optional)
	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	} else {
		slog.Warn("vault passphrase not set, secret references disabled")
	}

	// Role registry
	reg := registry.New(db, v, cfg.Roles)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync role registry: %w", err)
	}

	// Bus client shared by role collaborators
	busClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer busClient.Close()

	newCollaborator := func(client *natsbus.Client, role swarm.Role) *roles.BusCollaborator {
		c := roles.NewBusCollaborator(client, role, reg.ResolveTimeout(string(role)))
		apiKey, err := reg.ResolveAPIKey(string(role))
		if err != nil {
			slog.Warn("api key unresolved, responder must supply its own", "role", role, "error", err)
		}
		c.SetProvider(reg.ResolveModel(string(role)), apiKey)
		return c
	}

	collaborators := make(map[swarm.Role]swarm.Collaborator, len(swarm.AllRoles()))
	for _, role := range swarm.AllRoles() {
		collaborators[role] = newCollaborator(busClient, role)
	}

	executor := swarm.NewExecutor(collaborators)
	for _, role := range swarm.AllRoles() {
		executor.SetTimeout(role, reg.ResolveTimeout(string(role)))
	}
	executor.SetSubstrate(roles.NewBusSubstrate(busClient, cfg.Swarm.GlobalTimeout))
	executor.SetMasterFactory(func() (swarm.Collaborator, error) {
		client, err := natsbus.NewClient(bus)
		if err != nil {
			return nil, err
		}
		return newCollaborator(client, swarm.RoleMaster), nil
	})

	// Orchestrator with bus events and sqlite run history
	orch := swarm.NewOrchestrator(executor)
	eventsClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init events client: %w", err)
	}
	defer eventsClient.Close()
	orch.SetEventSink(natsbus.NewQueryEvents(eventsClient))
	orch.SetRunRecorder(db)

	// Standing query scheduler
	sched := scheduler.New(db, orch, eventsClient, cfg.Scheduler)
	go sched.Start(ctx)

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, reg, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}
