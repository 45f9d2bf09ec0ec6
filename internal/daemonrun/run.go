// Package daemonrun owns the worker process runtime: logger and PID file
// setup, dependency wiring, and the signal-driven shutdown sequence.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"overdub/internal/clonestage"
	"overdub/internal/cluster"
	"overdub/internal/config"
	"overdub/internal/credits"
	"overdub/internal/daemon"
	"overdub/internal/extract"
	"overdub/internal/ingest"
	"overdub/internal/jobs"
	"overdub/internal/logging"
	"overdub/internal/mergestage"
	"overdub/internal/notifications"
	"overdub/internal/pipeline"
	"overdub/internal/sweep"
	"overdub/internal/transcribe"
	"overdub/internal/translate"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the overdub daemon runtime loop and blocks until the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("overdub-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update overdub.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "overdub.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	ledger := credits.NewLedger(store.DB())
	notifier := notifications.NewService(cfg)

	mgr := pipeline.NewManagerWithNotifier(cfg, store, logger, ledger, notifier)
	if err := registerStages(mgr, cfg, store, logger, ledger); err != nil {
		return fmt.Errorf("configure stages: %w", err)
	}

	sweeper := sweep.New(cfg, store, logger, ledger)

	d, err := daemon.New(cfg, store, logger, mgr, sweeper)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("overdub daemon shutting down")
	return nil
}

func registerStages(mgr *pipeline.Manager, cfg *config.Config, store *jobs.Store, logger *slog.Logger, ledger *credits.Ledger) error {
	transcriber, err := transcribe.New(cfg, store, logger)
	if err != nil {
		return err
	}
	clusterer, err := cluster.New(cfg, store, logger)
	if err != nil {
		return err
	}
	translator, err := translate.New(cfg, store, logger)
	if err != nil {
		return err
	}
	cloner, err := clonestage.New(cfg, store, logger, ledger)
	if err != nil {
		return err
	}
	merger, err := mergestage.New(cfg, store, logger)
	if err != nil {
		return err
	}

	mgr.ConfigureStages(pipeline.StageSet{
		Ingester:    ingest.New(cfg, store, logger),
		Extractor:   extract.New(cfg, store, logger),
		Transcriber: transcriber,
		Clusterer:   clusterer,
		Translator:  translator,
		Cloner:      cloner,
		Merger:      merger,
	})
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "overdub.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
