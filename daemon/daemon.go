// Package daemon composes the connector: cursor store, chain adapter, event
// manager, transaction builder, submitter and gateway, under one run
// lifecycle with a node health loop.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/config"
	"github.com/w3b2/w3b2-solana-go/engine"
	"github.com/w3b2/w3b2-solana-go/gateway"
	"github.com/w3b2/w3b2-solana-go/metrics"
	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/submitter"
	"github.com/w3b2/w3b2-solana-go/txbuilder"
)

const (
	healthCheckInterval = 30 * time.Second
	healthFailThreshold = 3
	shutdownTimeout     = 10 * time.Second
)

type Daemon struct {
	cfg       *config.Config
	homeDir   string
	logger    log.Logger
	programID solana.PublicKey

	st       store.Store
	registry *prometheus.Registry
	met      *metrics.Engine
	builder  *txbuilder.Builder

	runMu     sync.Mutex
	adapter   *chain.Adapter
	manager   *engine.Manager
	runCancel context.CancelFunc
	runDone   chan struct{}

	healthMu sync.Mutex
}

func New(cfg *config.Config, homeDir string) (*Daemon, error) {
	logger := log.NewLogger(
		os.Stdout,
		log.LevelOption(zerolog.InfoLevel),
		log.TimeFormatOption(time.RFC3339),
		log.OutputJSONOption(),
	)

	programID, err := cfg.ProgramKey()
	if err != nil {
		return nil, fmt.Errorf("parse program id: %w", err)
	}

	st, err := openStore(cfg, homeDir)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()

	return &Daemon{
		cfg:       cfg,
		homeDir:   homeDir,
		logger:    logger,
		programID: programID,
		st:        st,
		registry:  registry,
		met:       metrics.NewEngine(registry),
		builder:   txbuilder.New(programID),
	}, nil
}

func openStore(cfg *config.Config, homeDir string) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "disk":
		path := cfg.Storage.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(homeDir, path)
		}
		return store.OpenDisk(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Start brings the run up and begins the health loop. It returns after
// startup; ctx cancellation tears everything down.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.startRun(ctx); err != nil {
		return err
	}
	go d.healthLoop(ctx)

	go func() {
		<-ctx.Done()
		d.healthMu.Lock()
		defer d.healthMu.Unlock()
		d.stopRun()
		if err := d.st.Close(); err != nil {
			d.logger.Error("close cursor store", "error", err)
		}
	}()
	return nil
}

func (d *Daemon) startRun(parent context.Context) error {
	runCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	adapter, err := chain.Dial(runCtx, d.logger, d.cfg.Chain.RPCURL, d.cfg.Chain.WSURL, chain.Options{
		Commitment: commitment(d.cfg.Chain.Commitment),
		Backoff:    d.backoff(),
	})
	if err != nil {
		cancel()
		return fmt.Errorf("dial node: %w", err)
	}

	manager := engine.NewManager(d.logger, adapter, d.st, d.programID, engine.Config{
		SignaturesPageSize:    d.cfg.Engine.SignaturesPageSize,
		CatchupBufferCapacity: d.cfg.Engine.CatchupBufferCapacity,
		LiveBufferCapacity:    d.cfg.Engine.LiveBufferCapacity,
		ListenerQueueCapacity: d.cfg.Engine.ListenerQueueCapacity,
		Backoff:               d.backoff(),
	}, d.met)

	sub := submitter.New(d.logger, adapter, submitter.Options{
		Commitment: confirmation(d.cfg.Chain.Commitment),
	})

	gw := gateway.NewServer(d.logger, d.builder, sub, manager, adapter, adapter.Health, d.registry)

	d.runMu.Lock()
	d.adapter = adapter
	d.manager = manager
	d.runCancel = cancel
	d.runDone = done
	d.runMu.Unlock()

	go func() {
		defer close(done)
		if err := gw.ListenAndServe(runCtx, d.cfg.Gateway.ListenAddr); err != nil {
			d.logger.Error("gateway stopped", "error", err)
		}
		manager.Close()
	}()

	d.logger.Info("connector started",
		"program_id", d.programID.String(),
		"rpc_url", d.cfg.Chain.RPCURL,
		"gateway", d.cfg.Gateway.ListenAddr,
	)
	return nil
}

func (d *Daemon) stopRun() {
	d.runMu.Lock()
	cancel := d.runCancel
	done := d.runDone
	d.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			d.logger.Error("run shutdown timed out")
		}
	}
}

// healthLoop probes the node, restarting the run after a fail streak. The
// cursor store survives restarts, so subscriptions resume where they were.
func (d *Daemon) healthLoop(ctx context.Context) {
	nextWait := healthCheckInterval
	streak := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(nextWait):
		}

		d.runMu.Lock()
		adapter := d.adapter
		d.runMu.Unlock()

		if adapter != nil && adapter.Health(ctx) == nil {
			streak = 0
			nextWait = healthCheckInterval
			continue
		}

		streak++
		if streak < healthFailThreshold {
			nextWait = time.Duration(1<<streak) * time.Second
			continue
		}

		d.logger.Error("node health check failed repeatedly; restarting run", "failures", streak)
		d.restart(ctx)
		streak = 0
		nextWait = healthCheckInterval
	}
}

func (d *Daemon) restart(ctx context.Context) {
	d.healthMu.Lock()
	defer d.healthMu.Unlock()

	d.stopRun()
	if ctx.Err() != nil {
		return
	}
	if err := d.startRun(ctx); err != nil {
		d.logger.Error("run restart failed", "error", err)
	}
}

func (d *Daemon) backoff() chain.Backoff {
	return chain.Backoff{
		Initial: d.cfg.Backoff.Initial,
		Max:     d.cfg.Backoff.Max,
		Factor:  d.cfg.Backoff.Factor,
		Jitter:  d.cfg.Backoff.Jitter,
	}
}

func commitment(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

func confirmation(s string) rpc.ConfirmationStatusType {
	switch s {
	case "processed":
		return rpc.ConfirmationStatusProcessed
	case "finalized":
		return rpc.ConfirmationStatusFinalized
	default:
		return rpc.ConfirmationStatusConfirmed
	}
}
