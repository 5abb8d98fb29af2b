// Package config loads and validates the runtime configuration. Values
// come from three layers: compiled defaults, an optional YAML file, then
// environment variables on top. The API can change tuning while the loop
// runs, so live settings sit behind a Store.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	. "math"

	"github.com/caarlos0/env/v6"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/openfieldag/gosteer/guidance"
)

type Vehicle struct {
	Wheelbase     float64 `yaml:"wheelbase" json:"wheelbase" env:"STEER_WHEELBASE"`                // metres
	MaxSteerAngle float64 `yaml:"max_steer_angle" json:"max_steer_angle" env:"STEER_MAX_ANGLE"`    // degrees
	AntennaPivot  float64 `yaml:"antenna_pivot" json:"antenna_pivot" env:"STEER_ANTENNA_PIVOT"`    // metres antenna ahead of pivot
	AntennaHeight float64 `yaml:"antenna_height" json:"antenna_height" env:"STEER_ANTENNA_HEIGHT"` // metres above ground
}

type Guidance struct {
	Algorithm   string  `yaml:"algorithm" json:"algorithm" env:"STEER_ALGORITHM"`
	OnTrackBand float64 `yaml:"on_track_band" json:"on_track_band" env:"STEER_ON_TRACK_BAND"` // metres
}

type Pursuit struct {
	GoalDistance float64 `yaml:"goal_distance" json:"goal_distance" env:"STEER_GOAL_DISTANCE"` // metres
	SpeedGain    float64 `yaml:"speed_gain" json:"speed_gain" env:"STEER_GOAL_SPEED_GAIN"`     // metres per m/s
	IntegralGain float64 `yaml:"integral_gain" json:"integral_gain"`
	IntegralMax  float64 `yaml:"integral_max" json:"integral_max"` // degrees
}

type Stanley struct {
	HeadingGain  float64 `yaml:"heading_gain" json:"heading_gain"`
	DistanceGain float64 `yaml:"distance_gain" json:"distance_gain"`
	IntegralGain float64 `yaml:"integral_gain" json:"integral_gain"`
	IntegralMax  float64 `yaml:"integral_max" json:"integral_max"` // metres
	SpeedFloor   float64 `yaml:"speed_floor" json:"speed_floor"`   // m/s
}

type SideHill struct {
	RollGain float64 `yaml:"roll_gain" json:"roll_gain"` // degrees steer per radian roll
}

type Sections struct {
	Count int `yaml:"count" json:"count" env:"STEER_SECTIONS"`
}

type Transport struct {
	Mode       string `yaml:"mode" json:"mode" env:"STEER_TRANSPORT"` // udp or serial
	ListenPort int    `yaml:"listen_port" json:"listen_port" env:"STEER_LISTEN_PORT"`
	ModulePort int    `yaml:"module_port" json:"module_port" env:"STEER_MODULE_PORT"`
	Broadcast  string `yaml:"broadcast" json:"broadcast" env:"STEER_BROADCAST"`
	Device     string `yaml:"device" json:"device" env:"STEER_SERIAL_DEVICE"`
	Baud       int    `yaml:"baud" json:"baud" env:"STEER_SERIAL_BAUD"`
}

type API struct {
	Addr      string `yaml:"addr" json:"addr" env:"STEER_API_ADDR"`
	JWTSecret string `yaml:"-" json:"-" env:"STEER_JWT_SECRET"`
}

type Watchdog struct {
	TimeoutMs int `yaml:"timeout_ms" json:"timeout_ms" env:"STEER_WATCHDOG_TIMEOUT_MS"`
}

type Config struct {
	Vehicle   Vehicle   `yaml:"vehicle" json:"vehicle"`
	Guidance  Guidance  `yaml:"guidance" json:"guidance"`
	Pursuit   Pursuit   `yaml:"pursuit" json:"pursuit"`
	Stanley   Stanley   `yaml:"stanley" json:"stanley"`
	SideHill  SideHill  `yaml:"side_hill" json:"side_hill"`
	Sections  Sections  `yaml:"sections" json:"sections"`
	Transport Transport `yaml:"transport" json:"transport"`
	API       API       `yaml:"api" json:"api"`
	Watchdog  Watchdog  `yaml:"watchdog" json:"watchdog"`
}

// Default returns a configuration that drives a mid-size tractor sanely
// until tuned.
func Default() Config {
	return Config{
		Vehicle: Vehicle{
			Wheelbase:     2.8,
			MaxSteerAngle: 35,
			AntennaPivot:  0.6,
			AntennaHeight: 3.0,
		},
		Guidance: Guidance{
			Algorithm:   guidance.PurePursuit.String(),
			OnTrackBand: 0.2,
		},
		Pursuit: Pursuit{
			GoalDistance: 3.0,
			SpeedGain:    0.5,
			IntegralMax:  5,
		},
		Stanley: Stanley{
			HeadingGain:  1.0,
			DistanceGain: 1.0,
			IntegralMax:  2,
			SpeedFloor:   0.5,
		},
		Sections:  Sections{Count: 8},
		Transport: Transport{Mode: "udp", ListenPort: 9999, ModulePort: 8888, Broadcast: "255.255.255.255", Baud: 38400},
		API:       API{Addr: ":8080"},
		Watchdog:  Watchdog{TimeoutMs: 500},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// when path is non-empty, then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem at once rather than stopping at the
// first.
func (c *Config) Validate() error {
	var errs error
	add := func(msg string) {
		errs = multierr.Append(errs, errors.New("config: "+msg))
	}

	if c.Vehicle.Wheelbase <= 0 {
		add("vehicle wheelbase must be positive")
	}
	if c.Vehicle.MaxSteerAngle <= 0 || c.Vehicle.MaxSteerAngle > 60 {
		add("max steer angle must be in (0, 60] degrees")
	}
	if _, ok := guidance.ParseAlgorithm(c.Guidance.Algorithm); !ok {
		add("unknown guidance algorithm " + c.Guidance.Algorithm)
	}
	if c.Guidance.OnTrackBand < 0 {
		add("on-track band cannot be negative")
	}
	if c.Pursuit.GoalDistance <= 0 {
		add("pursuit goal distance must be positive")
	}
	if c.Pursuit.SpeedGain < 0 {
		add("pursuit speed gain cannot be negative")
	}
	if c.Stanley.SpeedFloor <= 0 {
		add("stanley speed floor must be positive")
	}
	if c.Sections.Count < 0 || c.Sections.Count > 16 {
		add("section count must be in [0, 16]")
	}
	switch c.Transport.Mode {
	case "udp":
		if c.Transport.ListenPort <= 0 || c.Transport.ModulePort <= 0 {
			add("udp transport needs listen and module ports")
		}
	case "serial":
		if c.Transport.Device == "" {
			add("serial transport needs a device")
		}
		if c.Transport.Baud <= 0 {
			add("serial transport needs a baud rate")
		}
	default:
		add("transport mode must be udp or serial")
	}
	if c.Watchdog.TimeoutMs <= 0 {
		add("watchdog timeout must be positive")
	}
	return errs
}

// Algorithm returns the parsed guidance algorithm. Validate has already
// checked it; an unparseable value falls back to pure pursuit.
func (c *Config) Algorithm() guidance.Algorithm {
	a, ok := guidance.ParseAlgorithm(c.Guidance.Algorithm)
	if !ok {
		return guidance.PurePursuit
	}
	return a
}

// GoalDistanceFor scales the pursuit look-ahead with ground speed. The
// configured distance is the floor; reverse speed scales the same way.
func (p Pursuit) GoalDistanceFor(speed float64) float64 {
	d := p.GoalDistance + p.SpeedGain*Abs(speed)
	if d < p.GoalDistance {
		return p.GoalDistance
	}
	return d
}

// PursuitTuning maps the section onto the engine's tuning struct for the
// given ground speed.
func (c *Config) PursuitTuning(speed float64) guidance.PursuitTuning {
	return guidance.PursuitTuning{
		GoalDistance: c.Pursuit.GoalDistanceFor(speed),
		IntegralGain: c.Pursuit.IntegralGain,
		IntegralMax:  c.Pursuit.IntegralMax,
	}
}

// StanleyTuning maps the section onto the engine's tuning struct.
func (c *Config) StanleyTuning() guidance.StanleyTuning {
	return guidance.StanleyTuning{
		HeadingGain:  c.Stanley.HeadingGain,
		DistanceGain: c.Stanley.DistanceGain,
		IntegralGain: c.Stanley.IntegralGain,
		IntegralMax:  c.Stanley.IntegralMax,
		SpeedFloor:   c.Stanley.SpeedFloor,
	}
}

// WatchdogTimeout returns the fix silence budget as a duration.
func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Watchdog.TimeoutMs) * time.Millisecond
}
