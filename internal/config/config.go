package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/driftsync/driftsync/internal/core/world"
)

// Config is the full client configuration. Every tunable the engine uses is
// declared here; nothing in the hot path reads a literal.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
}

type NetworkConfig struct {
	// Transport selects the wire transport: "websocket" or "quic".
	Transport string `yaml:"transport"`
	// ServerAddr is the dial address, e.g. "wss://host:port/sync" for
	// websocket or "host:port" for quic.
	ServerAddr string `yaml:"server_addr"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// InboundQueueSize bounds the undrained event queue; overflow sheds the
	// oldest events first.
	InboundQueueSize int `yaml:"inbound_queue_size"`

	// RosterRequestInterval is how often the client asks the server for the
	// authoritative roster to drive full reconciliation.
	RosterRequestInterval time.Duration `yaml:"roster_request_interval"`
}

type EngineConfig struct {
	WorldBounds world.Bounds `yaml:"world_bounds"`

	// SnapThreshold is the rendered-to-authoritative gap, in world units,
	// beyond which the reconciler cuts instead of sliding.
	SnapThreshold float64 `yaml:"snap_threshold"`

	// Interpolation tiers: gaps above a tier's distance close at that tier's
	// blend factor per tick. Below the smallest tier the factor scales
	// continuously with distance.
	InterpTiers []InterpTier `yaml:"interp_tiers"`

	// Epsilon is the gap below which the interpolator snaps to target
	// outright, ending micro-drift.
	Epsilon float64 `yaml:"epsilon"`

	// MaxPredictionFactor caps the dead-reckoning contribution per tick.
	// Prediction is suppressed entirely for gaps >= PredictionDistanceLimit.
	MaxPredictionFactor     float64       `yaml:"max_prediction_factor"`
	PredictionDistanceLimit float64       `yaml:"prediction_distance_limit"`
	ExpectedUpdateInterval  time.Duration `yaml:"expected_update_interval"`

	// RotationRate is the exponential low-pass constant for facing, 1/s.
	RotationRate float64 `yaml:"rotation_rate"`

	DisappearanceTimeout time.Duration `yaml:"disappearance_timeout"`
	DedupSweepInterval   time.Duration `yaml:"dedup_sweep_interval"`

	// TickInterval is the frame cadence of the headless tick loop.
	TickInterval time.Duration `yaml:"tick_interval"`

	// Local entity governor and outbound throttle.
	MaxLocalSpeed float64       `yaml:"max_local_speed"`
	HistoryLength int           `yaml:"history_length"`
	MinSendDelta  float64       `yaml:"min_send_delta"`
	SendInterval  time.Duration `yaml:"send_interval"`
}

type InterpTier struct {
	Distance float64 `yaml:"distance"`
	Alpha    float64 `yaml:"alpha"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration the client ships with.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Transport:             "websocket",
			ServerAddr:            "ws://127.0.0.1:8080/sync",
			DialTimeout:           10 * time.Second,
			WriteTimeout:          5 * time.Second,
			InboundQueueSize:      1024,
			RosterRequestInterval: 15 * time.Second,
		},
		Engine: EngineConfig{
			WorldBounds: world.Bounds{MinX: -500, MaxX: 500, MinZ: -500, MaxZ: 500},

			SnapThreshold: 5.0,
			InterpTiers: []InterpTier{
				{Distance: 3.0, Alpha: 0.8},
				{Distance: 1.0, Alpha: 0.6},
				{Distance: 0.5, Alpha: 0.5},
			},
			Epsilon: 0.01,

			MaxPredictionFactor:     0.3,
			PredictionDistanceLimit: 2.0,
			ExpectedUpdateInterval:  200 * time.Millisecond,

			RotationRate: 10.0,

			DisappearanceTimeout: 10 * time.Second,
			DedupSweepInterval:   5 * time.Second,

			TickInterval: 16 * time.Millisecond,

			MaxLocalSpeed: 20.0,
			HistoryLength: 8,
			MinSendDelta:  0.01,
			SendInterval:  100 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads YAML from r over the defaults, so a partial file overrides only
// what it names.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile loads YAML configuration from path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch c.Network.Transport {
	case "websocket", "quic":
	default:
		return errors.Errorf("unknown transport %q", c.Network.Transport)
	}
	if c.Network.ServerAddr == "" {
		return errors.New("server_addr is required")
	}
	if c.Network.InboundQueueSize <= 0 {
		return errors.New("inbound_queue_size must be positive")
	}
	if c.Network.RosterRequestInterval <= 0 {
		return errors.New("roster_request_interval must be positive")
	}

	e := c.Engine
	if !e.WorldBounds.Valid() {
		return errors.New("world_bounds is degenerate")
	}
	if e.SnapThreshold <= 0 {
		return errors.New("snap_threshold must be positive")
	}
	if e.Epsilon <= 0 || e.Epsilon >= e.SnapThreshold {
		return errors.New("epsilon must be positive and below snap_threshold")
	}
	if len(e.InterpTiers) == 0 {
		return errors.New("at least one interpolation tier is required")
	}
	prev := e.InterpTiers[0]
	if prev.Alpha <= 0 || prev.Alpha > 1 {
		return errors.Errorf("tier alpha %v outside (0,1]", prev.Alpha)
	}
	for _, tier := range e.InterpTiers[1:] {
		if tier.Distance >= prev.Distance {
			return errors.New("interp_tiers must be sorted by descending distance")
		}
		if tier.Alpha <= 0 || tier.Alpha > prev.Alpha {
			return errors.New("tier alphas must decrease with distance")
		}
		prev = tier
	}
	if prev.Distance <= 0 {
		return errors.New("tier distances must be positive")
	}
	if e.MaxPredictionFactor < 0 || e.MaxPredictionFactor > 1 {
		return errors.New("max_prediction_factor outside [0,1]")
	}
	if e.RotationRate <= 0 {
		return errors.New("rotation_rate must be positive")
	}
	if e.DisappearanceTimeout <= 0 || e.DedupSweepInterval <= 0 || e.TickInterval <= 0 {
		return errors.New("engine intervals must be positive")
	}
	if e.MaxLocalSpeed <= 0 {
		return errors.New("max_local_speed must be positive")
	}
	if e.HistoryLength < 2 {
		return errors.New("history_length must be at least 2")
	}
	if e.MinSendDelta < 0 || e.SendInterval <= 0 {
		return errors.New("outbound throttle settings invalid")
	}
	return nil
}
