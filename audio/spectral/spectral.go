// Package spectral converts time-domain audio frames to magnitude spectra.
//
// Each [Front] owns its own FFT plan and scratch storage so that multiple
// independent cores can run in the same process without sharing state
// (: "Global FFT scratch buffers... give each SpectralFront instance its
// own scratch storage to preserve reentrancy").
package spectral

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/ledbeat/dsp/spectrum"
	"github.com/cwbudde/ledbeat/dsp/window"
)

// ErrInvalidFrameSize is returned when frameSize is not a power of two.
var ErrInvalidFrameSize = errors.New("spectral: frame_size must be a power of two")

// Front computes a magnitude spectrum from a windowed, zero-padded
// time-domain frame.
type Front struct {
	frameSize int

	win  []float64
	plan *algofft.Plan[complex128]

	in  []complex128
	out []complex128
	re  []float64
	im  []float64
	mag []float64
}

// New constructs a Front for the given FFT window length. frameSize must be
// a power of two (enforced here; config-invalid otherwise).
func New(frameSize int) (*Front, error) {
	if frameSize <= 0 || frameSize&(frameSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, frameSize)
	}

	plan, err := algofft.NewPlan64(frameSize)
	if err != nil {
		return nil, fmt.Errorf("spectral: fft plan init: %w", err)
	}

	return &Front{
		frameSize: frameSize,
		win:       window.Generate(window.TypeHann, frameSize, window.WithPeriodic()),
		plan:      plan,
		in:        make([]complex128, frameSize),
		out:       make([]complex128, frameSize),
		re:        make([]float64, frameSize/2),
		im:        make([]float64, frameSize/2),
		mag:       make([]float64, frameSize/2),
	}, nil
}

// FrameSize returns the configured FFT window length.
func (f *Front) FrameSize() int { return f.frameSize }

// BinCount returns the number of magnitude bins produced (frame_size/2).
func (f *Front) BinCount() int { return f.frameSize / 2 }

// Spectrum computes |FFT(window * frame)| for the first frame_size/2 bins.
// Input shorter than frame_size is zero-padded; longer input is truncated.
// The returned slice is owned by Front and overwritten on the next call.
func (f *Front) Spectrum(frame []float64) []float64 {
	n := len(frame)
	if n > f.frameSize {
		n = f.frameSize
	}
	for i := 0; i < n; i++ {
		f.in[i] = complex(frame[i]*f.win[i], 0)
	}
	for i := n; i < f.frameSize; i++ {
		f.in[i] = 0
	}

	if err := f.plan.Forward(f.out, f.in); err != nil {
		for i := range f.mag {
			f.mag[i] = 0
		}
		return f.mag
	}

	half := f.frameSize / 2
	for i := 0; i < half; i++ {
		f.re[i] = real(f.out[i])
		f.im[i] = imag(f.out[i])
	}
	spectrum.MagnitudeFromParts(f.mag, f.re, f.im)
	return f.mag
}
