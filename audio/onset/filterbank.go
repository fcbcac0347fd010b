package onset

import (
	"math"

	"github.com/cwbudde/ledbeat/dsp/filter/bank"
)

// FilterBankFunction is the supplemented multi-band onset path: instead of
// restricting FFT bins per band (computeMultiBand in beat_detector.cpp), it
// runs a time-domain Butterworth filter bank per band and takes the
// positive envelope difference as each band's flux. It implements the same
// {bass, mid, high} sub-novelty contract as Function's MultiBand mode.
type FilterBankFunction struct {
	analyzer *bank.Analyzer
	weights  []float64
	lastPeak []float64
	lastSub  SubNovelty
}

// NewFilterBankFunction builds a fractional-octave analyzer spanning
// lowHz..highHz and assigns weight to every resulting band uniformly scaled
// by weights (len(weights) may be less than the analyzer's band count; the
// last weight is reused for any remaining bands).
func NewFilterBankFunction(sampleRate float64, fraction int, lowHz, highHz float64, weights []float64) (*FilterBankFunction, error) {
	a, err := bank.NewOctaveAnalyzer(fraction, sampleRate, bank.WithAnalyzerFrequencyRange(lowHz, highHz))
	if err != nil {
		return nil, err
	}

	n := len(a.Bands())
	w := make([]float64, n)
	for i := range w {
		if i < len(weights) {
			w[i] = weights[i]
		} else if len(weights) > 0 {
			w[i] = weights[len(weights)-1]
		} else {
			w[i] = 1
		}
	}

	return &FilterBankFunction{
		analyzer: a,
		weights:  w,
		lastPeak: make([]float64, n),
	}, nil
}

// Reset clears the filter bank state and flux history.
func (f *FilterBankFunction) Reset() {
	f.analyzer.Reset()
	for i := range f.lastPeak {
		f.lastPeak[i] = 0
	}
	f.lastSub = SubNovelty{}
}

// ProcessBlock computes the weighted sum of positive per-band envelope
// deltas over the block, and records the {bass, mid, high} sub-novelty
// (third-of-bands bucketing) for LastMultiBandOnset.
func (f *FilterBankFunction) ProcessBlock(samples []float64) float64 {
	peaks := f.analyzer.ProcessBlock(samples)

	total := 0.0
	n := len(peaks)
	third := n / 3
	if third < 1 {
		third = 1
	}
	var bucket [3]float64

	for i, p := range peaks {
		delta := math.Max(0, p-f.lastPeak[i])
		total += f.weights[i] * delta
		f.lastPeak[i] = p

		switch {
		case i < third:
			bucket[0] += delta
		case i < 2*third:
			bucket[1] += delta
		default:
			bucket[2] += delta
		}
	}

	f.lastSub = SubNovelty{Bass: bucket[0], Mid: bucket[1], High: bucket[2]}
	return total
}

// LastMultiBandOnset returns the per-band sub-novelty from the most recent
// ProcessBlock call.
func (f *FilterBankFunction) LastMultiBandOnset() SubNovelty { return f.lastSub }
