// Package onset computes scalar novelty ("onset detection function", ODF)
// values and per-band sub-novelties from streaming spectra or time-domain
// frames.
package onset

import "math"

// Kind selects the onset detection function variant.
type Kind int

const (
	Energy Kind = iota
	SpectralFlux
	SuperFlux
	HighFrequencyContent
	MultiBand
)

// Band is one frequency band of a multi-band configuration, expressed in
// FFT bin indices (resolved from Hz by the caller via BinsForBand).
type Band struct {
	LowBin, HighBin int
	Weight          float64
}

// Config configures a Function.
type Config struct {
	Kind Kind

	AdaptiveWhitening bool
	WhiteningAlpha    float64
	LogCompression    bool

	SuperFluxMu           int
	SuperFluxFilterRadius int

	Bands []Band // used only when Kind == MultiBand
}

// SubNovelty holds the per-band novelty values exposed alongside the
// combined ODF so a caller can route onsets to bass/mid/high handlers.
type SubNovelty struct {
	Bass, Mid, High float64
}

// Function computes novelty values for a streaming sequence of spectra or
// time-domain frames. The zero value is not usable; construct with New.
type Function struct {
	cfg Config

	// spectrumHistory is a ring of prior (possibly whitened/compressed)
	// spectra, depth = history capacity (>= SuperFluxMu+1).
	history    [][]float64
	historyLen int // capacity
	histIndex  int
	histCount  int

	runningMax []float64
	lastEnergy float64

	filterScratch []float64 // SuperFlux maximum-filter scratch, sized at New

	lastSub SubNovelty
}

// New constructs a Function for spectra of the given bin count. The
// spectrum history ring holds max(2, SuperFluxMu+1) entries.
func New(cfg Config, binCount int) *Function {
	need := cfg.SuperFluxMu + 1
	if need < 2 {
		need = 2
	}

	history := make([][]float64, need)
	for i := range history {
		history[i] = make([]float64, binCount)
	}

	return &Function{
		cfg:           cfg,
		history:       history,
		historyLen:    need,
		runningMax:    make([]float64, binCount),
		filterScratch: make([]float64, binCount),
	}
}

// Reset zeros all history and running maxima.
func (f *Function) Reset() {
	for i := range f.history {
		for k := range f.history[i] {
			f.history[i][k] = 0
		}
	}
	for k := range f.runningMax {
		f.runningMax[k] = 0
	}
	f.histIndex = 0
	f.histCount = 0
	f.lastEnergy = 0
	f.lastSub = SubNovelty{}
}

// LastMultiBandOnset returns the per-band sub-novelty from the most recent
// ProcessSpectrum call made with a multi-band-capable configuration.
func (f *Function) LastMultiBandOnset() SubNovelty { return f.lastSub }

// ProcessTimeDomain computes the energy ODF directly from samples, without
// requiring a spectrum: max(0, E_t - E_{t-1}).
func (f *Function) ProcessTimeDomain(frame []float64) float64 {
	energy := 0.0
	for _, x := range frame {
		energy += x * x
	}
	novelty := math.Max(0, energy-f.lastEnergy)
	f.lastEnergy = energy
	return novelty
}

// ProcessSpectrum computes the configured ODF from a magnitude spectrum,
// applying whitening/log-compression preprocessing in that order first.
// mag is not retained past this call; Function copies what it needs into
// its own history ring.
func (f *Function) ProcessSpectrum(mag []float64) float64 {
	cur := f.history[f.histIndex]
	n := len(cur)
	if len(mag) < n {
		n = len(mag)
	}
	copy(cur, mag[:n])
	for i := n; i < len(cur); i++ {
		cur[i] = 0
	}

	if f.cfg.AdaptiveWhitening {
		f.applyAdaptiveWhitening(cur)
	}
	if f.cfg.LogCompression {
		applyLogCompression(cur)
	}

	var odf float64
	switch f.cfg.Kind {
	case Energy:
		odf = 0 // handled by ProcessTimeDomain
	case SpectralFlux:
		odf = f.computeSpectralFlux(cur)
	case SuperFlux:
		odf = f.computeSuperFlux(cur)
	case HighFrequencyContent:
		odf = computeHFC(cur)
	case MultiBand:
		odf = f.computeMultiBand(cur)
	}

	f.histIndex = (f.histIndex + 1) % f.historyLen
	if f.histCount < f.historyLen {
		f.histCount++
	}

	return math.Max(0, odf)
}

func (f *Function) prevIndex(back int) int {
	idx := f.histIndex - back
	for idx < 0 {
		idx += f.historyLen
	}
	return idx % f.historyLen
}

func (f *Function) computeSpectralFlux(cur []float64) float64 {
	if f.histCount < 1 {
		return 0
	}
	prev := f.history[f.prevIndex(1)]
	flux := 0.0
	for k, m := range cur {
		flux += math.Max(0, m-prev[k])
	}
	return flux
}

func (f *Function) computeSuperFlux(cur []float64) float64 {
	mu := f.cfg.SuperFluxMu
	if mu < 1 {
		mu = 1
	}
	if f.histCount < mu {
		return 0
	}
	delayed := f.history[f.prevIndex(mu)]

	filtered := f.filterScratch
	applyMaximumFilter(filtered, delayed, f.cfg.SuperFluxFilterRadius)

	flux := 0.0
	for k, m := range cur {
		flux += math.Max(0, m-filtered[k])
	}
	return flux
}

func computeHFC(cur []float64) float64 {
	hfc := 0.0
	for k, m := range cur {
		hfc += float64(k) * m
	}
	return hfc
}

func (f *Function) computeMultiBand(cur []float64) float64 {
	if f.histCount < 1 {
		f.lastSub = SubNovelty{}
		return 0
	}
	prev := f.history[f.prevIndex(1)]

	total := 0.0
	var bandFlux [3]float64 // bass, mid, high buckets for the supplemented accessor

	for i, b := range f.cfg.Bands {
		lo, hi := b.LowBin, b.HighBin
		if lo < 0 {
			lo = 0
		}
		if hi > len(cur) {
			hi = len(cur)
		}
		flux := 0.0
		for k := lo; k < hi; k++ {
			flux += math.Max(0, cur[k]-prev[k])
		}
		total += b.Weight * flux
		if i < 3 {
			bandFlux[i] = flux
		}
	}

	f.lastSub = SubNovelty{Bass: bandFlux[0], Mid: bandFlux[1], High: bandFlux[2]}
	return total
}

func (f *Function) applyAdaptiveWhitening(mag []float64) {
	alpha := f.cfg.WhiteningAlpha
	for k, m := range mag {
		f.runningMax[k] = math.Max(m, alpha*f.runningMax[k])
		if f.runningMax[k] > 1e-6 {
			mag[k] = m / f.runningMax[k]
		}
	}
}

func applyLogCompression(mag []float64) {
	for k, m := range mag {
		mag[k] = math.Log1p(m)
	}
}

func applyMaximumFilter(dst, src []float64, radius int) {
	if radius <= 0 {
		copy(dst, src)
		return
	}
	n := len(src)
	for i := 0; i < n; i++ {
		maxVal := src[i]
		lo := i - radius
		if lo < 0 {
			lo = 0
		}
		hi := i + radius
		if hi > n-1 {
			hi = n - 1
		}
		for j := lo; j <= hi; j++ {
			if src[j] > maxVal {
				maxVal = src[j]
			}
		}
		dst[i] = maxVal
	}
}

// BinsForBand converts a Hz range to an FFT bin range for the given FFT
// size and sample rate.
func BinsForBand(lowHz, highHz, sampleRateHz float64, fftSize int) (loBin, hiBin int) {
	lo := int((lowHz * float64(fftSize)) / sampleRateHz)
	hi := int((highHz * float64(fftSize)) / sampleRateHz)
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
