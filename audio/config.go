// Package audio wires the onset-detection, tempo-tracking, polymetric
// analysis, and particle-simulation components into the real-time
// polymetric beat visualizer core.
package audio

import (
	"errors"
	"fmt"
)

// ErrConfigInvalid is wrapped by every configuration validation failure.
// Constructors and SetConfig return it without mutating any prior state.
var ErrConfigInvalid = errors.New("audio: config invalid")

// ODFKind selects the onset detection function variant.
type ODFKind int

const (
	ODFEnergy ODFKind = iota
	ODFSpectralFlux
	ODFSuperFlux
	ODFHighFrequencyContent
	ODFMultiBand
)

func (k ODFKind) String() string {
	switch k {
	case ODFEnergy:
		return "energy"
	case ODFSpectralFlux:
		return "spectral-flux"
	case ODFSuperFlux:
		return "super-flux"
	case ODFHighFrequencyContent:
		return "high-frequency-content"
	case ODFMultiBand:
		return "multi-band"
	default:
		return "unknown"
	}
}

// Band is one entry of an ordered multi-band configuration.
type Band struct {
	LowHz, HighHz float64
	Weight        float64
}

// PeakPolicyKind selects a PeakPicker decision rule.
type PeakPolicyKind int

const (
	PeakLocalMax PeakPolicyKind = iota
	PeakAdaptiveThreshold
	PeakSuperFluxPeaks
)

// PeakPolicy configures the PeakPicker windows and gating.
type PeakPolicy struct {
	Kind              PeakPolicyKind
	PreMaxMs          float64
	PostMaxMs         float64
	PreAvgMs          float64
	PostAvgMs         float64
	ThresholdDelta    float64
	MinInterOnsetMs   float64
}

// TempoPolicyKind selects a TempoTracker estimation strategy.
type TempoPolicyKind int

const (
	TempoNone TempoPolicyKind = iota
	TempoAutocorrelation
	TempoCombFilter
)

// TempoPolicy configures the TempoTracker search space and prior.
type TempoPolicy struct {
	Kind             TempoPolicyKind
	MinBPM, MaxBPM   float64
	RayleighSigmaBPM float64
	ACFWindowSec     float64
}

// PolymetricConfig configures the primary/overlay meter tracking.
type PolymetricConfig struct {
	Enabled           bool
	OverlayNumerator  int
	OverlayDenominator int
	OverlayBars       int
	SwingAmount       float64 // [0, 0.25]
}

// EmitterConfig configures one of the four particle emitters.
type EmitterConfig struct {
	EmitRate           float64
	VelocityMin, VelocityMax float64
	LifeMin, LifeMax   float64
	BaseHue            float64 // degrees [0,360)
	BaseSaturation     float64 // [0,1]
	BaseValue          float64 // [0,1]
	HueVarianceDeg     float64
	SpreadAngleDeg     float64
	PosX, PosY, PosZ   float64 // normalized [0,1]
}

// ParticlesConfig configures the particle population and its physics.
type ParticlesConfig struct {
	MaxParticles       int
	TimestepDefault    float64
	VelocityDecay      float64 // (0,1]
	RadialGravity      float64
	CurlStrength       float64
	KickDuckAmount     float64 // [0,1]
	KickDuckDurationMs float64
	BloomThreshold     float64 // 0 disables bloom
	BloomStrength      float64
	GridWidth          int
	GridHeight         int
	Enable3D           bool
	ClearOnBeat        bool
	BackgroundFade     int // [0,255]; 255 leaves the buffer untouched

	Kick, Snare, Hat, Overlay EmitterConfig
}

// Config is the immutable-during-a-stream configuration tree.
// The caller constructs it and hands it to NewOrchestrator; the core keeps
// a private copy and never aliases the caller's struct.
type Config struct {
	SampleRateHz float64
	FrameSize    int
	HopSize      int

	ODFKind              ODFKind
	Bands                []Band
	AdaptiveWhitening    bool
	WhiteningAlpha       float64
	LogCompression       bool
	SuperFluxMu          int
	SuperFluxFilterRadius int

	Peak       PeakPolicy
	Tempo      TempoPolicy
	Polymetric PolymetricConfig
	Particles  ParticlesConfig
}

// DefaultBands returns the spec's typical 3-band bass/mid/high split.
func DefaultBands() []Band {
	return []Band{
		{LowHz: 20, HighHz: 160, Weight: 1.0},
		{LowHz: 160, HighHz: 2000, Weight: 1.0},
		{LowHz: 2000, HighHz: 10000, Weight: 1.0},
	}
}

// DefaultConfig returns sensible defaults for a 48 kHz streaming source.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:          48000,
		FrameSize:             512,
		HopSize:               256,
		ODFKind:               ODFSuperFlux,
		Bands:                 DefaultBands(),
		AdaptiveWhitening:     false,
		WhiteningAlpha:        0.95,
		LogCompression:        true,
		SuperFluxMu:           3,
		SuperFluxFilterRadius: 2,
		Peak: PeakPolicy{
			Kind:            PeakSuperFluxPeaks,
			PreMaxMs:        30,
			PostMaxMs:       30,
			PreAvgMs:        100,
			PostAvgMs:       70,
			ThresholdDelta:  0.07,
			MinInterOnsetMs: 30,
		},
		Tempo: TempoPolicy{
			Kind:             TempoCombFilter,
			MinBPM:           60,
			MaxBPM:           200,
			RayleighSigmaBPM: 120,
			ACFWindowSec:     4,
		},
		Polymetric: PolymetricConfig{
			Enabled:            false,
			OverlayNumerator:   7,
			OverlayDenominator: 8,
			OverlayBars:        2,
			SwingAmount:        0.12,
		},
		Particles: defaultParticlesConfig(),
	}
}

func defaultParticlesConfig() ParticlesConfig {
	return ParticlesConfig{
		MaxParticles:       256,
		TimestepDefault:    1.0 / 60.0,
		VelocityDecay:      0.985,
		RadialGravity:      0,
		CurlStrength:       0.7,
		KickDuckAmount:     0.35,
		KickDuckDurationMs: 80,
		BloomThreshold:     64,
		BloomStrength:      0.5,
		GridWidth:          32,
		GridHeight:         8,
		Enable3D:           false,
		ClearOnBeat:        false,
		BackgroundFade:     255,
		Kick: EmitterConfig{
			EmitRate: 15, VelocityMin: 1, VelocityMax: 3,
			LifeMin: 0.8, LifeMax: 1.5,
			BaseHue: 12, BaseSaturation: 1, BaseValue: 1,
			HueVarianceDeg: 20, SpreadAngleDeg: 360,
			PosX: 0.5, PosY: 0.5,
		},
		Snare: EmitterConfig{
			EmitRate: 12, VelocityMin: 0.8, VelocityMax: 2.5,
			LifeMin: 0.5, LifeMax: 1.2,
			BaseHue: 195, BaseSaturation: 1, BaseValue: 1,
			HueVarianceDeg: 30, SpreadAngleDeg: 360,
			PosX: 0.3, PosY: 0.6,
		},
		Hat: EmitterConfig{
			EmitRate: 8, VelocityMin: 0.5, VelocityMax: 1.8,
			LifeMin: 0.3, LifeMax: 0.8,
			BaseHue: 55, BaseSaturation: 0.9, BaseValue: 1,
			HueVarianceDeg: 40, SpreadAngleDeg: 360,
			PosX: 0.7, PosY: 0.4,
		},
		Overlay: EmitterConfig{
			EmitRate: 10, VelocityMin: 0.7, VelocityMax: 2.0,
			LifeMin: 0.6, LifeMax: 1.3,
			BaseHue: 285, BaseSaturation: 1, BaseValue: 1,
			HueVarianceDeg: 25, SpreadAngleDeg: 360,
			PosX: 0.5, PosY: 0.8,
		},
	}
}

// Validate checks field invariants, returning a wrapped ErrConfigInvalid on
// failure. It never mutates cfg.
func (cfg Config) Validate() error {
	if cfg.SampleRateHz <= 0 {
		return fmt.Errorf("%w: sample_rate_hz must be > 0: %g", ErrConfigInvalid, cfg.SampleRateHz)
	}
	if cfg.FrameSize <= 0 || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
		return fmt.Errorf("%w: frame_size must be a power of two: %d", ErrConfigInvalid, cfg.FrameSize)
	}
	if cfg.HopSize <= 0 || cfg.HopSize > cfg.FrameSize {
		return fmt.Errorf("%w: hop_size must be in (0, frame_size]: %d", ErrConfigInvalid, cfg.HopSize)
	}
	for i, b := range cfg.Bands {
		if b.LowHz >= b.HighHz {
			return fmt.Errorf("%w: band %d low_hz must be < high_hz", ErrConfigInvalid, i)
		}
		if b.Weight < 0 {
			return fmt.Errorf("%w: band %d weight must be >= 0", ErrConfigInvalid, i)
		}
	}
	if cfg.Polymetric.SwingAmount < 0 || cfg.Polymetric.SwingAmount > 0.25 {
		return fmt.Errorf("%w: polymetric swing_amount must be in [0, 0.25]", ErrConfigInvalid)
	}
	if cfg.Particles.MaxParticles < 0 {
		return fmt.Errorf("%w: particles max_particles must be >= 0", ErrConfigInvalid)
	}
	if cfg.Particles.VelocityDecay <= 0 || cfg.Particles.VelocityDecay > 1 {
		return fmt.Errorf("%w: particles velocity_decay must be in (0, 1]", ErrConfigInvalid)
	}
	if cfg.Particles.KickDuckAmount < 0 || cfg.Particles.KickDuckAmount > 1 {
		return fmt.Errorf("%w: particles kick_duck_amount must be in [0, 1]", ErrConfigInvalid)
	}
	if cfg.Particles.GridWidth <= 0 || cfg.Particles.GridHeight <= 0 {
		return fmt.Errorf("%w: particles grid dimensions must be > 0", ErrConfigInvalid)
	}
	if cfg.Particles.BackgroundFade < 0 || cfg.Particles.BackgroundFade > 255 {
		return fmt.Errorf("%w: particles background_fade must be in [0, 255]", ErrConfigInvalid)
	}
	return nil
}
