package audio

import (
	"errors"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadFrameSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 500 // not a power of two

	err := cfg.Validate()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("Validate() = %v, want wrapped ErrConfigInvalid", err)
	}
}

func TestValidateRejectsBadHopSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HopSize = cfg.FrameSize + 1

	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("Validate() = %v, want wrapped ErrConfigInvalid", err)
	}
}

func TestValidateRejectsInvertedBand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bands = []Band{{LowHz: 100, HighHz: 50, Weight: 1}}

	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("Validate() = %v, want wrapped ErrConfigInvalid", err)
	}
}

func TestValidateRejectsSwingOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Polymetric.SwingAmount = 0.5

	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("Validate() = %v, want wrapped ErrConfigInvalid", err)
	}
}

func TestValidateRejectsBackgroundFadeOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Particles.BackgroundFade = 300

	if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("Validate() = %v, want wrapped ErrConfigInvalid", err)
	}
}

func TestValidateDoesNotMutateOnFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameSize = 500

	beforeHop := cfg.HopSize
	beforeBands := len(cfg.Bands)
	_ = cfg.Validate()

	if cfg.HopSize != beforeHop || len(cfg.Bands) != beforeBands {
		t.Fatalf("Validate() mutated cfg")
	}
}
