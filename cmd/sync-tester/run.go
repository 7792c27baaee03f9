package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/sync-tester/internal/config"
	"github.com/sweeney/sync-tester/internal/gpio"
	"github.com/sweeney/sync-tester/internal/logging"
	"github.com/sweeney/sync-tester/internal/logic"
	"github.com/sweeney/sync-tester/internal/mqtt"
	"github.com/sweeney/sync-tester/internal/sim"
	"github.com/sweeney/sync-tester/internal/status"
	"github.com/sweeney/sync-tester/internal/web"
)

// selfTestDwell is how long each position stays lit during the startup sweep.
const selfTestDwell = 80 * time.Millisecond

// override copies one explicitly set flag onto the loaded config.
type override struct {
	flag  string
	apply func(*config.Config)
}

func runCmd(configPath, logLevel *string) *cobra.Command {
	var (
		flagCfg    = config.Default()
		overrides  []override
		frameRate  int
		simulateHz float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tester daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			for _, o := range overrides {
				if cmd.Flags().Changed(o.flag) {
					o.apply(&cfg)
				}
			}
			if *logLevel != "" {
				cfg.LogLevel = *logLevel
			}
			return run(cfg, *configPath)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flagCfg.Chip, "chip", flagCfg.Chip, "GPIO chip")
	f.IntVar(&flagCfg.PinSync, "pin-sync", flagCfg.PinSync, "BCM pin for the sync input")
	f.IntVar(&flagCfg.PinField, "pin-field", flagCfg.PinField, "BCM pin for the field input")
	f.IntVar(&flagCfg.PinAux, "pin-aux", flagCfg.PinAux, "BCM pin for the aux frame output")
	f.DurationVar(&flagCfg.Poll, "poll", flagCfg.Poll, "animation poll interval (0 to spin)")
	f.DurationVar(&flagCfg.StatusInterval, "status-interval", flagCfg.StatusInterval, "sync watcher sample interval")
	f.DurationVar(&flagCfg.Debounce, "debounce", flagCfg.Debounce, "debounce duration for sync events")
	f.DurationVar(&flagCfg.LossTimeout, "loss-timeout", flagCfg.LossTimeout, "edge silence after which sync counts as lost")
	f.DurationVar(&flagCfg.Heartbeat, "heartbeat", flagCfg.Heartbeat, "heartbeat interval (0 to disable)")
	f.StringVar(&flagCfg.Broker, "broker", flagCfg.Broker, "MQTT broker address (empty to disable)")
	f.StringVar(&flagCfg.HTTPAddr, "http", flagCfg.HTTPAddr, "HTTP address (empty to disable)")
	f.BoolVar(&flagCfg.Simulate, "simulate", flagCfg.Simulate, "generate sync in software instead of reading GPIO")
	f.Float64Var(&simulateHz, "sim-rate", flagCfg.SimRateHz, "simulated sync rate in Hz")
	f.BoolVar(&flagCfg.SelfTest, "self-test", flagCfg.SelfTest, "sweep the ring once at startup")
	f.IntVar(&frameRate, "frame-rate", flagCfg.FrameRateHz, "frame phase rate in Hz")
	f.BoolVar(&flagCfg.Lock, "lock", flagCfg.Lock, "reset both sequencers on each sync pulse")

	overrides = []override{
		{"chip", func(c *config.Config) { c.Chip = flagCfg.Chip }},
		{"pin-sync", func(c *config.Config) { c.PinSync = flagCfg.PinSync }},
		{"pin-field", func(c *config.Config) { c.PinField = flagCfg.PinField }},
		{"pin-aux", func(c *config.Config) { c.PinAux = flagCfg.PinAux }},
		{"poll", func(c *config.Config) { c.Poll = flagCfg.Poll }},
		{"status-interval", func(c *config.Config) { c.StatusInterval = flagCfg.StatusInterval }},
		{"debounce", func(c *config.Config) { c.Debounce = flagCfg.Debounce }},
		{"loss-timeout", func(c *config.Config) { c.LossTimeout = flagCfg.LossTimeout }},
		{"heartbeat", func(c *config.Config) { c.Heartbeat = flagCfg.Heartbeat }},
		{"broker", func(c *config.Config) { c.Broker = flagCfg.Broker }},
		{"http", func(c *config.Config) { c.HTTPAddr = flagCfg.HTTPAddr }},
		{"simulate", func(c *config.Config) { c.Simulate = flagCfg.Simulate }},
		{"sim-rate", func(c *config.Config) { c.SimRateHz = simulateHz }},
		{"self-test", func(c *config.Config) { c.SelfTest = flagCfg.SelfTest }},
		{"frame-rate", func(c *config.Config) { c.FrameRateHz = frameRate }},
		{"lock", func(c *config.Config) { c.Lock = flagCfg.Lock }},
	}
	return cmd
}

func run(cfg config.Config, configPath string) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.SetDefaultLevel(level)
	logger := logging.New("main")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	settings := logic.NewSettings()
	cfg.ApplyAnimation(settings)

	// Initialize ring outputs
	var ring gpio.Outputs
	if cfg.Simulate {
		ring = gpio.NewFakeRing()
	} else {
		pins, err := cfg.RingPinArray()
		if err != nil {
			return err
		}
		hw, err := gpio.NewRealRing(cfg.Chip, pins, cfg.PinAux)
		if err != nil {
			return fmt.Errorf("init ring: %w", err)
		}
		ring = hw
	}
	defer func() {
		if n := ring.Errors(); n > 0 {
			logger.Warnw("ring write errors", "count", n)
		}
		if err := ring.Close(); err != nil {
			logger.Warnw("close ring", "error", err)
		}
	}()

	// Registered after the ring so the poll loop and the simulator have
	// stopped writing before the ring is closed.
	bg := newWorkers()
	defer bg.stop()

	core := logic.NewController(settings, ring)
	if cfg.SelfTest {
		logger.Infow("self test")
		logic.SelfTest(ring, func() { time.Sleep(selfTestDwell) })
	}

	// Initialize sync inputs
	clock := logic.NewMonotonicClock()
	if cfg.Simulate {
		src, err := sim.NewSource(cfg.SimRateHz, sim.DefaultPulse, clock, logging.New("sim"))
		if err != nil {
			return err
		}
		bg.start(func(ctx context.Context) { _ = src.Run(ctx, core.Monitor) })
	} else {
		inputs, err := gpio.NewRealInputs(cfg.Chip, cfg.PinSync, cfg.PinField, core.Monitor)
		if err != nil {
			return fmt.Errorf("init inputs: %w", err)
		}
		defer inputs.Close()
	}

	// Initialize MQTT
	var publisher publisherStatus = disabledPublisher{}
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{Broker: cfg.Broker}, logging.New("mqtt"))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollUs:        cfg.Poll.Microseconds(),
		DebounceMs:    cfg.Debounce.Milliseconds(),
		LossTimeoutMs: cfg.LossTimeout.Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		Simulated:     cfg.Simulate,
	}, core.Status)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	publishStartup(publisher, tracker, logger)

	// Start HTTP server
	var onEvent func(logic.Event)
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, settings, web.Options{
			StreamInterval: cfg.StreamInterval,
			Logger:         logging.New("web"),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		onEvent = srv.PublishEvent
		logger.Infow("http server listening", "addr", cfg.HTTPAddr)
	}

	if configPath != "" {
		bg.start(func(ctx context.Context) {
			err := config.Watch(ctx, configPath, logging.New("config"), func(c config.Config) {
				c.ApplyAnimation(settings)
				logger.Infow("config reloaded", "frame_rate_hz", c.FrameRateHz, "lock", c.Lock)
			})
			if err != nil {
				logger.Warnw("config watch stopped", "error", err)
			}
		})
	}

	bg.start(func(ctx context.Context) { pollLoop(ctx, core, clock, cfg.Poll) })

	logger.Infow("started",
		"poll", cfg.Poll,
		"debounce", cfg.Debounce,
		"loss_timeout", cfg.LossTimeout,
		"broker", cfg.Broker,
		"heartbeat", cfg.Heartbeat,
		"simulated", cfg.Simulate,
	)

	ticker := time.NewTicker(cfg.StatusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		core:        core.Status,
		publisher:   publisher,
		mqttStatus:  publisher,
		tracker:     tracker,
		onEvent:     onEvent,
		debounce:    cfg.Debounce,
		lossTimeout: cfg.LossTimeout,
		heartbeat:   cfg.Heartbeat,
		now:         time.Now,
		tick:        ticker.C,
		sig:         sigCh,
		logger:      logger,
	})
}

// workers runs background goroutines that share one context and are
// stopped together.
type workers struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorkers() *workers {
	ctx, cancel := context.WithCancel(context.Background())
	return &workers{ctx: ctx, cancel: cancel}
}

func (w *workers) start(fn func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(w.ctx)
	}()
}

// stop cancels the shared context and waits for every worker to return.
func (w *workers) stop() {
	w.cancel()
	w.wg.Wait()
}

// pollLoop runs the animation core until ctx is done. A zero interval
// polls continuously, yielding between iterations.
func pollLoop(ctx context.Context, core *logic.Controller, clock logic.Clock, every time.Duration) {
	if every <= 0 {
		for ctx.Err() == nil {
			core.Poll(clock.Millis())
			runtime.Gosched()
		}
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			core.Poll(clock.Millis())
		}
	}
}

func publishStartup(publisher mqtt.Publisher, tracker *status.Tracker, logger *zap.SugaredLogger) {
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(event); err != nil {
		logger.Warnw("failed to publish startup event", "error", err)
	} else {
		logger.Infow("published startup event")
	}
}

type publisherStatus interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

// disabledPublisher stands in when no broker is configured.
type disabledPublisher struct{}

func (disabledPublisher) Publish(logic.Event) error            { return nil }
func (disabledPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (disabledPublisher) Close() error                         { return nil }
func (disabledPublisher) IsConnected() bool                    { return false }
