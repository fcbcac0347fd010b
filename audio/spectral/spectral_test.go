package spectral

import (
	"math"
	"testing"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	if _, err := New(500); err == nil {
		t.Fatal("New(500) = nil error, want ErrInvalidFrameSize")
	}
}

func TestBinCountIsHalfFrameSize(t *testing.T) {
	f, err := New(512)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := f.BinCount(); got != 256 {
		t.Fatalf("BinCount() = %d, want 256", got)
	}
}

func TestSpectrumZeroPadsShortFrames(t *testing.T) {
	f, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	short := make([]float64, 10)
	for i := range short {
		short[i] = 1.0
	}

	mag := f.Spectrum(short)
	if len(mag) != f.BinCount() {
		t.Fatalf("len(Spectrum()) = %d, want %d", len(mag), f.BinCount())
	}
	for i, v := range mag {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("Spectrum()[%d] = %v, want finite", i, v)
		}
	}
}

func TestSpectrumOfSilenceIsZero(t *testing.T) {
	f, err := New(128)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	mag := f.Spectrum(make([]float64, 128))
	for i, v := range mag {
		if v != 0 {
			t.Fatalf("Spectrum(silence)[%d] = %v, want 0", i, v)
		}
	}
}

func TestSpectrumReusesScratchAcrossCalls(t *testing.T) {
	f, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	frame := make([]float64, 64)
	frame[0] = 1

	first := f.Spectrum(frame)
	firstPtr := &first[0]

	second := f.Spectrum(frame)
	secondPtr := &second[0]

	if firstPtr != secondPtr {
		t.Fatal("Spectrum() returned a different backing array on the second call, want the same owned scratch slice")
	}
}
