// Package app wires the bot together and owns its lifecycle: startup
// reconciliation of persisted tasks into live timers, the inbound update
// loop, and total shutdown.
package app

import (
	"context"
	"strings"
	"sync"

	"replaybot/internal/bot"
	"replaybot/internal/config"
	"replaybot/internal/dispatch"
	"replaybot/internal/schedule"
	"replaybot/internal/storage"
	"replaybot/internal/transport"
	"replaybot/internal/transport/telegram"
	"replaybot/pkg/logx"
)

const updateBuffer = 64

type App struct {
	cfg     *config.Config
	cfgPath string

	logSvc  *logx.Service
	log     logx.Logger
	store   storage.Store
	adapter *telegram.Adapter
	reg     *schedule.Registry
	disp    *dispatch.Dispatcher
	handler *bot.Handler

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	disp := dispatch.New(adapter, log.With(logx.String("comp", "dispatch")))
	reg := schedule.New(schedule.DefaultTimezone, disp.Fire, log.With(logx.String("comp", "schedule")))

	username := adapter.Username()
	if username == "" {
		username = strings.TrimPrefix(cfg.Telegram.Username, "@")
	}
	handler := bot.NewHandler(store, reg, disp, adapter, username,
		log.With(logx.String("comp", "bot")))

	return &App{
		cfg:     cfg,
		cfgPath: cfgPath,
		logSvc:  logSvc,
		log:     log.With(logx.String("comp", "app")),
		store:   store,
		adapter: adapter,
		reg:     reg,
		disp:    disp,
		handler: handler,
		updates: make(chan transport.Update, updateBuffer),
	}, nil
}

// Start reconciles persisted tasks into live timers, then begins serving
// commands. Startup is skip-and-continue: a row with a corrupt cron
// expression is logged and skipped, never fatal.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	tasks, err := a.store.ListAll(runCtx)
	if err != nil {
		cancel()
		return err
	}

	a.reg.Start()
	armed := 0
	for _, t := range tasks {
		// Re-check defensively; the creation gate means this should
		// never fire, but manual edits of the database are possible.
		if !a.reg.Validate(t.Cron) {
			a.log.Warn("skipping task with invalid stored cron",
				logx.Int64("id", t.ID), logx.String("cron", t.Cron))
			continue
		}
		if err := a.reg.Arm(t); err != nil {
			a.log.Warn("skipping task that failed to arm",
				logx.Int64("id", t.ID), logx.Err(err))
			continue
		}
		armed++
	}
	a.log.Info("tasks reconciled", logx.Int("persisted", len(tasks)), logx.Int("armed", armed))

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}
	if err := a.adapter.UpdateMenuCommands(runCtx, bot.Commands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case up := <-a.updates:
				a.handler.HandleUpdate(runCtx, up)
			}
		}
	}()

	if strings.TrimSpace(a.cfgPath) != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := config.Watch(runCtx, a.cfgPath, a.log, a.applyConfig)
			if err != nil {
				a.log.Warn("config watcher unavailable", logx.Err(err))
			}
		}()
	}

	return nil
}

// applyConfig applies a hot-reloaded config. Only logging settings can
// change at runtime; everything else needs a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	if cfg.Telegram.Token != a.cfg.Telegram.Token {
		a.log.Warn("telegram token change ignored; restart required")
	}
	if cfg.Storage.Path != a.cfg.Storage.Path {
		a.log.Warn("storage path change ignored; restart required")
	}
}

// Stop shuts the bot down completely: no fire may begin once the
// disarm-all step starts, then the transport and store are released.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.reg.Stop(ctx)
	_ = a.adapter.Stop(ctx)
	a.wg.Wait()
	err := a.store.Close()
	_ = a.logSvc.Close()
	return err
}
