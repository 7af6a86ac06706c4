package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bgservice/internal/api"
	"bgservice/internal/config"
	"bgservice/internal/controller"
	"bgservice/internal/events"
	"bgservice/internal/heartbeat"
	"bgservice/internal/host"
	"bgservice/internal/logger"
	"bgservice/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// daemon owns the controller and everything hanging off it for one run.
type daemon struct {
	configPath  string
	loggingPath string

	mu  sync.Mutex
	cfg *config.Config
	ctl *controller.ServiceController
}

func newDaemon(cfg *config.Config, configPath, loggingPath string) *daemon {
	return &daemon{
		configPath:  configPath,
		loggingPath: loggingPath,
		cfg:         cfg,
	}
}

func (d *daemon) controller() *controller.ServiceController {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctl
}

// run wires the service and blocks until ctx is cancelled. Teardown runs
// in reverse order so the final destroy transition still reaches the sink.
func (d *daemon) run(ctx context.Context) error {
	log := logger.WithComponent("main")

	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	ch, n, err := cfg.NotificationSettings()
	if err != nil {
		return err
	}

	// Phase 1: event sink
	sink, err := events.NewSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to create event sink: %w", err)
	}
	dispatcher := events.NewDispatcher(sink, 0)
	defer func() {
		log.Info().Msg("Closing event sink")
		if err := dispatcher.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event sink")
		}
	}()

	// Phase 2: host and controller
	h := host.Default(cfg.HostSettings())
	ctl := controller.New(h,
		controller.WithName(cfg.Name),
		controller.WithChannel(ch),
		controller.WithNotification(n),
	)
	h.Attach(ctl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.SetState(cfg.Name, ctl.State())
	m.RegisterDropped(dispatcher.Dropped)

	ctl.Subscribe(dispatcher.Observe)
	ctl.Subscribe(m.Observe)
	if cfg.AutoForeground {
		ctl.Subscribe(func(tr controller.Transition) {
			if tr.Trigger != controller.TriggerStartCommand {
				return
			}
			if err := ctl.EnterForeground(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to enter foreground")
			}
		})
	}

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service host: %w", err)
	}
	defer h.Stop()

	d.mu.Lock()
	d.ctl = ctl
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.ctl = nil
		d.mu.Unlock()
	}()

	log.Info().
		Str("service", cfg.Name).
		Bool("os_host", host.Available()).
		Str("sink", cfg.SinkType).
		Msg("Service controller initialized")

	// Phase 3: heartbeat
	var hbOpts []heartbeat.Option
	if sampler, err := heartbeat.NewProcessSampler(); err != nil {
		log.Warn().Err(err).Msg("Process sampling unavailable, heartbeats will omit usage")
	} else {
		hbOpts = append(hbOpts, heartbeat.WithSampler(sampler))
	}
	hb := heartbeat.New(ctl, dispatcher, cfg.HeartbeatInterval, hbOpts...)
	if err := hb.Start(ctx); err != nil {
		return fmt.Errorf("failed to start heartbeat: %w", err)
	}
	defer hb.Stop()

	// Phase 4: control API
	if cfg.API.Enabled() {
		srv := api.New(ctl, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := srv.Start(cfg.API.Listen); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping HTTP API")
			}
		}()
	}

	// Phase 5: hot reload
	stopWatchers := d.setupWatchers()
	defer stopWatchers()

	if cfg.AutoStart {
		if err := ctl.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Automatic start failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ctl.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("Stop request failed, the host will destroy the service")
	}
	return nil
}

// reload re-reads both configuration files.
func (d *daemon) reload() {
	log := logger.WithComponent("main")

	if lc, err := config.LoadLogging(d.loggingPath); err != nil {
		log.Error().Err(err).Msg("Failed to reload logging configuration")
	} else {
		d.applyLogging(lc)
	}
	if cfg, err := config.Load(d.configPath); err != nil {
		log.Error().Err(err).Msg("Failed to reload service configuration")
	} else {
		d.applyService(cfg)
	}
}

func (d *daemon) applyLogging(lc *logger.Config) {
	log := logger.WithComponent("main")
	if err := logger.Init(*lc); err != nil {
		log.Error().Err(err).Msg("Failed to update logging configuration")
		return
	}
	log.Info().Str("level", lc.Level).Msg("Logging configuration updated")
}

// applyService applies the notification content live. Other settings take
// effect on the next start of the daemon.
func (d *daemon) applyService(newCfg *config.Config) {
	log := logger.WithComponent("main")

	d.mu.Lock()
	old := d.cfg
	d.cfg = newCfg
	ctl := d.ctl
	d.mu.Unlock()

	if old.Name != newCfg.Name || old.SinkType != newCfg.SinkType || old.API.Listen != newCfg.API.Listen ||
		old.Host != newCfg.Host || old.Channel != newCfg.Channel {
		log.Warn().Msg("Service configuration changes outside the notification require a restart")
	}

	if ctl == nil {
		return
	}
	_, n, err := newCfg.NotificationSettings()
	if err != nil {
		log.Error().Err(err).Msg("Invalid notification settings")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ctl.SetNotification(ctx, n); err != nil {
		log.Error().Err(err).Msg("Failed to update notification")
		return
	}
	log.Info().Str("text", n.Text).Msg("Notification updated")
}

// setupWatchers starts hot-reload watchers for both configuration files and
// returns a function that stops them.
func (d *daemon) setupWatchers() func() {
	log := logger.WithComponent("main")
	var cleanups []func()

	start := func(name string, w *config.FileWatcher, err error) {
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to create watcher, hot reload disabled")
			return
		}
		if err := w.Start(); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to start watcher")
			return
		}
		cleanups = append(cleanups, func() {
			if err := w.Stop(); err != nil {
				log.Error().Err(err).Str("file", name).Msg("Error stopping watcher")
			}
		})
	}

	sw, err := config.NewServiceWatcher(d.configPath, d.applyService)
	start(d.configPath, sw, err)
	lw, err := config.NewLoggingWatcher(d.loggingPath, d.applyLogging)
	start(d.loggingPath, lw, err)

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}
