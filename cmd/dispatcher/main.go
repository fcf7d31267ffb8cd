// Command dispatcher is the front-end dispatch controller for a
// data-parallel inference service: it binds the intake socket, spawns the
// configured number of replica worker processes, and runs the dispatch loop
// until terminated.
//
// Configuration is read entirely from the environment; see
// internal/config.Config for the full table (load_balance_method, dp_size,
// tp_size, controller_port, THRESOLD/THRESHOLD).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokenfleet/dispatchctl/internal/config"
	"github.com/tokenfleet/dispatchctl/internal/dispatcher"
	"github.com/tokenfleet/dispatchctl/internal/intake"
	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/logging"
	"github.com/tokenfleet/dispatchctl/internal/policy"
	"github.com/tokenfleet/dispatchctl/internal/ratewatch"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

func main() {
	logger := logging.New(os.Stdout, logging.LevelInformational)

	if err := run(logger); err != nil {
		logger.Crit().Err(err).Log("dispatcher: fatal start-up error")
		os.Exit(1)
	}
}

func run(logger *logging.Logger) error {
	cfg, err := config.FromEnviron()
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	block, err := loadblock.NewSharedLoadBlock(cfg.DPSize)
	if err != nil {
		return fmt.Errorf("dispatcher: shared load block: %w", err)
	}
	defer block.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	table, err := workertable.Spawn(ctx, workertable.SpawnTableOptions{
		N:       cfg.DPSize,
		TPSize:  cfg.TPSize,
		Command: replicaWorkerCommand(),
		Block:   block,
	})
	if err != nil {
		return fmt.Errorf("dispatcher: spawning replicas: %w", err)
	}
	defer table.CloseAll()

	pol, err := policy.Select(cfg.LoadBalanceMethod, cfg.DPSize, block, cfg.Threshold)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	mux, err := intake.Listen(fmt.Sprintf("127.0.0.1:%d", cfg.ControllerPort), logger)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	defer mux.Close()

	rw := ratewatch.New(ratewatch.DefaultRates(64, 256), logger)

	d := dispatcher.New(mux, table, pol, logger, rw)

	logger.Notice().
		Str("policy", pol.Name()).
		Int("dp_size", cfg.DPSize).
		Int("tp_size", cfg.TPSize).
		Int("controller_port", cfg.ControllerPort).
		Log("dispatcher: started")

	return d.Run(ctx)
}

// replicaWorkerCommand names the external replica worker binary. spec.md §1
// treats the replica worker as an out-of-scope external collaborator; this
// repository's cmd/replicaworker is only a minimal stand-in driving the
// spawn/init/ingress path end-to-end, not a real inference engine.
func replicaWorkerCommand() string {
	if v := os.Getenv("DISPATCHER_REPLICA_WORKER_CMD"); v != "" {
		return v
	}
	return "replicaworker"
}
