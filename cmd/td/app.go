package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/auth"
	"github.com/zulandar/taskdesk/internal/config"
	"github.com/zulandar/taskdesk/internal/db"
	"github.com/zulandar/taskdesk/internal/notify"
	"github.com/zulandar/taskdesk/internal/settings"
	"github.com/zulandar/taskdesk/internal/task"
	"github.com/zulandar/taskdesk/internal/user"
	"gorm.io/gorm"
)

const (
	defaultConfigPath = "taskdesk.yaml"
	closeTimeout      = 10 * time.Second
)

// app holds the store handles of one command invocation.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *gorm.DB
	migration  db.MigrationResult
	users      *user.Store
	settings   *settings.Store
	tasks      *task.Store
	dispatcher *notify.Dispatcher
	cancelRun  context.CancelFunc
}

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to TaskDesk config file")
}

// openApp loads config, opens the store, brings the schema up to date and
// wires the stores. The caller must call close.
func openApp(cmd *cobra.Command, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.Log, cmd.ErrOrStderr())

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := db.EnsureSchema(ctx, gdb, backupFor(cfg.Database), log)
	if err != nil {
		closeDB(gdb, log)
		return nil, err
	}
	if res.BackupPath != "" {
		log.Info("schema migrated", "backup", res.BackupPath, "steps", len(res.Applied))
	}

	sinks, err := buildSinks(cfg.Notify, log)
	if err != nil {
		closeDB(gdb, log)
		return nil, err
	}
	d := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize:   cfg.Notify.QueueSize,
		MaxAttempts: cfg.Notify.MaxAttempts,
		RetryDelay:  cfg.Notify.RetryDelay(),
		Logger:      log,
	}, sinks...)
	runCtx, cancel := context.WithCancel(context.Background())
	go d.Run(runCtx)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         gdb,
		migration:  res,
		users:      user.NewStore(gdb, auth.BcryptHasher{}),
		settings:   settings.NewStore(gdb),
		tasks:      task.NewStore(gdb, task.WithNotifier(d)),
		dispatcher: d,
		cancelRun:  cancel,
	}, nil
}

// close flushes pending notifications and releases the store.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.dispatcher.Close(ctx); err != nil {
		a.log.Warn("pending notifications not delivered", "error", err)
	}
	a.cancelRun()
	closeDB(a.db, a.log)
}

func closeDB(gdb *gorm.DB, log *slog.Logger) {
	if err := db.Close(gdb); err != nil {
		log.Warn("close database", "error", err)
	}
}

func backupFor(cfg config.DatabaseConfig) db.Backup {
	if cfg.Driver == "mysql" {
		return db.TableSnapshotBackup{}
	}
	return db.FileBackup{Path: cfg.Path, Dir: cfg.BackupDir}
}

func buildSinks(cfg config.NotifyConfig, log *slog.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if !cfg.LogOnly && cfg.SlackWebhookURL != "" {
		s, err := notify.NewSlackSink(cfg.SlackWebhookURL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if !cfg.LogOnly && cfg.DiscordWebhookURL != "" {
		s, err := notify.NewDiscordSink(cfg.DiscordWebhookURL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, notify.LogSink{Logger: log})
	}
	return sinks, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
