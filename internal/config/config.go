// Package config loads daemon settings from defaults, an optional YAML or
// TOML file and SYNCTESTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/sync-tester/internal/gpio"
	"github.com/sweeney/sync-tester/internal/logging"
	"github.com/sweeney/sync-tester/internal/logic"
)

// Config is the full daemon configuration.
type Config struct {
	Chip     string `yaml:"chip" toml:"chip" env:"SYNCTESTER_CHIP"`
	PinSync  int    `yaml:"pin_sync" toml:"pin_sync" env:"SYNCTESTER_PIN_SYNC"`
	PinField int    `yaml:"pin_field" toml:"pin_field" env:"SYNCTESTER_PIN_FIELD"`
	PinAux   int    `yaml:"pin_aux" toml:"pin_aux" env:"SYNCTESTER_PIN_AUX"`
	RingPins []int  `yaml:"ring_pins" toml:"ring_pins" env:"SYNCTESTER_RING_PINS" envSeparator:","`

	Poll           time.Duration `yaml:"poll" toml:"poll" env:"SYNCTESTER_POLL"`
	StatusInterval time.Duration `yaml:"status_interval" toml:"status_interval" env:"SYNCTESTER_STATUS_INTERVAL"`
	Debounce       time.Duration `yaml:"debounce" toml:"debounce" env:"SYNCTESTER_DEBOUNCE"`
	LossTimeout    time.Duration `yaml:"loss_timeout" toml:"loss_timeout" env:"SYNCTESTER_LOSS_TIMEOUT"`
	Heartbeat      time.Duration `yaml:"heartbeat" toml:"heartbeat" env:"SYNCTESTER_HEARTBEAT"`

	Broker         string        `yaml:"broker" toml:"broker" env:"SYNCTESTER_BROKER"`
	HTTPAddr       string        `yaml:"http_addr" toml:"http_addr" env:"SYNCTESTER_HTTP_ADDR"`
	StreamInterval time.Duration `yaml:"stream_interval" toml:"stream_interval" env:"SYNCTESTER_STREAM_INTERVAL"`

	Simulate  bool    `yaml:"simulate" toml:"simulate" env:"SYNCTESTER_SIMULATE"`
	SimRateHz float64 `yaml:"sim_rate_hz" toml:"sim_rate_hz" env:"SYNCTESTER_SIM_RATE_HZ"`
	SelfTest  bool    `yaml:"self_test" toml:"self_test" env:"SYNCTESTER_SELF_TEST"`
	LogLevel  string  `yaml:"log_level" toml:"log_level" env:"SYNCTESTER_LOG_LEVEL"`

	FastSweep           bool `yaml:"fast_sweep" toml:"fast_sweep" env:"SYNCTESTER_FAST_SWEEP"`
	FastSweepIntervalMs int  `yaml:"fast_sweep_interval_ms" toml:"fast_sweep_interval_ms" env:"SYNCTESTER_FAST_SWEEP_INTERVAL_MS"`
	FramePhase          bool `yaml:"frame_phase" toml:"frame_phase" env:"SYNCTESTER_FRAME_PHASE"`
	FrameRateHz         int  `yaml:"frame_rate_hz" toml:"frame_rate_hz" env:"SYNCTESTER_FRAME_RATE_HZ"`
	Output              bool `yaml:"output" toml:"output" env:"SYNCTESTER_OUTPUT"`
	Lock                bool `yaml:"lock" toml:"lock" env:"SYNCTESTER_LOCK"`
	SyncDetection       bool `yaml:"sync_detection" toml:"sync_detection" env:"SYNCTESTER_SYNC_DETECTION"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chip:     gpio.DefaultChip,
		PinSync:  gpio.DefaultPinSync,
		PinField: gpio.DefaultPinField,
		PinAux:   gpio.DefaultPinAux,
		RingPins: append([]int(nil), gpio.DefaultRingPins[:]...),

		Poll:           250 * time.Microsecond,
		StatusInterval: 100 * time.Millisecond,
		Debounce:       200 * time.Millisecond,
		LossTimeout:    500 * time.Millisecond,
		Heartbeat:      15 * time.Minute,

		HTTPAddr:       ":80",
		StreamInterval: 250 * time.Millisecond,

		SimRateHz: 25,
		SelfTest:  true,
		LogLevel:  "info",

		FastSweep:           true,
		FastSweepIntervalMs: logic.DefaultFastSweepIntervalMs,
		FramePhase:          true,
		FrameRateHz:         logic.DefaultFrameRateHz,
		SyncDetection:       true,
	}
}

// Load returns the defaults overlaid with the file at path (if path is not
// empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: %s: unsupported format (want .yaml, .yml or .toml)", path)
	}
	return nil
}

// Validate reports every setting the daemon cannot run with. Animation
// values are not checked here; ApplyAnimation clamps them.
func (c Config) Validate() error {
	var errs []error
	if c.Chip == "" && !c.Simulate {
		errs = append(errs, errors.New("chip is required"))
	}
	if len(c.RingPins) != logic.RingSize {
		errs = append(errs, fmt.Errorf("ring_pins: want %d pins, got %d", logic.RingSize, len(c.RingPins)))
	}
	seen := make(map[int]string)
	for _, p := range c.pins() {
		if p.pin < 0 {
			errs = append(errs, fmt.Errorf("%s: pin %d is negative", p.name, p.pin))
			continue
		}
		if other, ok := seen[p.pin]; ok {
			errs = append(errs, fmt.Errorf("%s: pin %d already used by %s", p.name, p.pin, other))
			continue
		}
		seen[p.pin] = p.name
	}
	if c.Poll < 0 {
		errs = append(errs, fmt.Errorf("poll: %v is negative", c.Poll))
	}
	if c.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("status_interval: %v must be positive", c.StatusInterval))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce: %v is negative", c.Debounce))
	}
	if c.LossTimeout <= 0 {
		errs = append(errs, fmt.Errorf("loss_timeout: %v must be positive", c.LossTimeout))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat: %v is negative", c.Heartbeat))
	}
	if c.StreamInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream_interval: %v must be positive", c.StreamInterval))
	}
	if c.Simulate && c.SimRateHz <= 0 {
		errs = append(errs, fmt.Errorf("sim_rate_hz: %v must be positive", c.SimRateHz))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type namedPin struct {
	name string
	pin  int
}

// pins names every configured line so duplicates can be reported.
func (c Config) pins() []namedPin {
	out := []namedPin{
		{"pin_sync", c.PinSync},
		{"pin_field", c.PinField},
		{"pin_aux", c.PinAux},
	}
	for i, p := range c.RingPins {
		out = append(out, namedPin{fmt.Sprintf("ring_pins[%d]", i), p})
	}
	return out
}

// RingPinArray returns the ring pins as a fixed array.
func (c Config) RingPinArray() ([logic.RingSize]int, error) {
	var out [logic.RingSize]int
	if len(c.RingPins) != logic.RingSize {
		return out, fmt.Errorf("ring_pins: want %d pins, got %d", logic.RingSize, len(c.RingPins))
	}
	copy(out[:], c.RingPins)
	return out, nil
}

// ApplyAnimation pushes the animation settings through the clamping setters.
func (c Config) ApplyAnimation(s *logic.Settings) {
	s.SetFastSweepInterval(c.FastSweepIntervalMs)
	s.SetFrameRate(c.FrameRateHz)
	s.SetFastSweepEnabled(c.FastSweep)
	s.SetFramePhaseEnabled(c.FramePhase)
	s.SetOutputEnabled(c.Output)
	s.SetLockEnabled(c.Lock)
	s.SetSyncDetectionEnabled(c.SyncDetection)
}
