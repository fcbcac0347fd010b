// Package tempo estimates beats-per-minute and predicts beat timestamps from
// a streaming onset detection function.
package tempo

import (
	"math"

	"github.com/cwbudde/ledbeat/audio"
	timestats "github.com/cwbudde/ledbeat/stats/time"
)

// silenceRMSThreshold below which a novelty window is treated as silence:
// re-estimating tempo from a near-flat window just chases quantization
// noise, so the previous estimate is kept instead.
const silenceRMSThreshold = 1e-9

// Estimate is the tracker's current tempo belief.
type Estimate struct {
	BPM           float64
	Confidence    float64
	PeriodSamples int
}

// Tracker maintains a rolling novelty history and periodically re-estimates
// tempo via autocorrelation, optional comb-filter harmonic reinforcement,
// and Rayleigh-prior weighting toward a typical tempo.
type Tracker struct {
	policy       audio.TempoPolicy
	sampleRateHz float64
	hopSize      int

	history      []float64
	historyIndex int
	historyCount int

	updateInterval    int
	framesSinceUpdate int

	currentBPM    float64
	confidence    float64
	periodSamples int

	// lastBeatSamples advances by periodSamples on every predicted beat,
	// not by the elapsed sample count, so small jitter in call timing
	// cannot accumulate into long-term drift.
	lastBeatSamples float64
	havePrediction  bool
}

const maxACFLag = 512
const defaultHistoryCapacity = 2048

// New constructs a Tracker. sampleRateHz and hopSize are used to convert
// between BPM, lag (in hops), and sample counts.
func New(policy audio.TempoPolicy, sampleRateHz float64, hopSize int) *Tracker {
	t := &Tracker{
		history: make([]float64, defaultHistoryCapacity),
	}
	t.SetConfig(policy, sampleRateHz, hopSize)
	return t
}

// SetConfig updates policy/sample-rate/hop-size in place. Resets the tempo
// estimate but not novelty history: narrower config changes should not
// discard accumulated signal needlessly. Callers that need a full reset
// should call Reset explicitly.
func (t *Tracker) SetConfig(policy audio.TempoPolicy, sampleRateHz float64, hopSize int) {
	t.policy = policy
	t.sampleRateHz = sampleRateHz
	t.hopSize = hopSize

	interval := int(0.5 * sampleRateHz / float64(hopSize))
	if interval < 1 {
		interval = 1
	}
	t.updateInterval = interval

	t.currentBPM = 120
	t.confidence = 0
	t.periodSamples = 0
	t.lastBeatSamples = 0
	t.havePrediction = false
}

// Reset clears novelty history and returns the tempo estimate to the
// warm-up default: 120 BPM, confidence 0.
func (t *Tracker) Reset() {
	for i := range t.history {
		t.history[i] = 0
	}
	t.historyIndex = 0
	t.historyCount = 0
	t.framesSinceUpdate = 0
	t.currentBPM = 120
	t.confidence = 0
	t.periodSamples = 0
	t.lastBeatSamples = 0
	t.havePrediction = false
}

// AddNovelty appends one onset detection function value to the rolling
// history, re-estimating tempo every ~0.5s of audio.
func (t *Tracker) AddNovelty(odfValue float64) {
	if t.policy.Kind == audio.TempoNone {
		return
	}

	t.history[t.historyIndex] = odfValue
	t.historyIndex = (t.historyIndex + 1) % len(t.history)
	if t.historyCount < len(t.history) {
		t.historyCount++
	}

	t.framesSinceUpdate++
	if t.framesSinceUpdate >= t.updateInterval {
		t.framesSinceUpdate = 0
		t.updateEstimate()
	}
}

// Tempo returns the current estimate.
func (t *Tracker) Tempo() Estimate {
	return Estimate{BPM: t.currentBPM, Confidence: t.confidence, PeriodSamples: t.periodSamples}
}

// CheckBeat advances the beat predictor to currentTimeSamples and returns a
// BeatEvent (with PhaseInBar always 0; polymetric phase is layered on by the
// caller) each time a full beat period has elapsed since the last predicted
// beat. Because the predictor advances by period rather than by elapsed
// time, multiple beats are reported in order if more than one period has
// passed since the last call.
func (t *Tracker) CheckBeat(currentTimeSamples float64, frameIndex uint64, timestampMs float64) []audio.BeatEvent {
	if t.periodSamples <= 0 || t.policy.Kind == audio.TempoNone {
		return nil
	}

	if !t.havePrediction {
		t.lastBeatSamples = currentTimeSamples
		t.havePrediction = true
		return nil
	}

	var beats []audio.BeatEvent
	for currentTimeSamples-t.lastBeatSamples >= float64(t.periodSamples) {
		t.lastBeatSamples += float64(t.periodSamples)
		beats = append(beats, audio.BeatEvent{
			FrameIndex:  frameIndex,
			TimestampMs: timestampMs,
			BPM:         t.currentBPM,
			Confidence:  t.confidence,
			PhaseInBar:  0,
		})
	}
	return beats
}

func (t *Tracker) updateEstimate() {
	maxLag := t.historyCount / 2
	if maxLag > maxACFLag {
		maxLag = maxACFLag
	}
	if maxLag < 2 {
		return
	}

	acf := make([]float64, maxLag)
	if !t.computeAutocorrelation(acf, maxLag) {
		return // window is silent; keep the previous estimate
	}

	if t.policy.Kind == audio.TempoCombFilter {
		applyCombFilter(acf)
	}
	t.applyRayleighWeighting(acf)

	peakLag := t.findPeakLag(acf)
	if peakLag > 0 && peakLag < maxLag {
		t.currentBPM = t.lagToBPM(peakLag)
		t.periodSamples = t.bpmToSamples(t.currentBPM)
		t.confidence = acf[peakLag]
	}
}

// computeAutocorrelation materializes the most recent novelty window into a
// contiguous slice and fills acf with its normalized autocorrelation up to
// maxLag. It reports false (leaving acf untouched) if the window's RMS is
// below silenceRMSThreshold, since correlating near-silence just amplifies
// quantization noise into a spurious tempo estimate.
func (t *Tracker) computeAutocorrelation(acf []float64, maxLag int) bool {
	n := len(t.history)
	windowSize := t.historyCount
	if w := int(t.policy.ACFWindowSec * t.sampleRateHz / float64(t.hopSize)); w < windowSize {
		windowSize = w
	}

	window := make([]float64, windowSize)
	for i := 0; i < windowSize; i++ {
		window[i] = t.history[wrap(t.historyIndex-windowSize+i, n)]
	}

	if timestats.RMS(window) < silenceRMSThreshold {
		return false
	}

	for lag := 0; lag < maxLag; lag++ {
		sum := 0.0
		count := 0
		for i := 0; i < windowSize-lag; i++ {
			sum += window[i] * window[i+lag]
			count++
		}
		if count > 0 {
			acf[lag] = sum / float64(count)
		}
	}

	if acf[0] > 0 {
		for lag := range acf {
			acf[lag] /= acf[0]
		}
	}
	return true
}

func applyCombFilter(acf []float64) {
	filtered := make([]float64, len(acf))
	copy(filtered, acf)

	for lag := 1; lag < len(acf); lag++ {
		sum := acf[lag]
		count := 1
		for mult := 2; mult*lag < len(acf); mult++ {
			sum += acf[mult*lag]
			count++
		}
		filtered[lag] = sum / float64(count)
	}
	copy(acf, filtered)
}

func (t *Tracker) applyRayleighWeighting(acf []float64) {
	for lag := range acf {
		bpm := t.lagToBPM(lag)
		x := bpm / t.policy.RayleighSigmaBPM
		acf[lag] *= rayleighWeight(x)
	}
}

func rayleighWeight(x float64) float64 {
	return x * math.Exp(-0.5*x*x)
}

func (t *Tracker) findPeakLag(acf []float64) int {
	minLag := t.bpmToLag(t.policy.MaxBPM)
	maxLag := t.bpmToLag(t.policy.MinBPM)

	if minLag < 1 {
		minLag = 1
	}
	if minLag > len(acf) {
		minLag = len(acf)
	}
	if maxLag > len(acf) {
		maxLag = len(acf)
	}
	if maxLag <= minLag {
		return minLag
	}

	peakLag := minLag
	peakVal := acf[minLag]
	for lag := minLag; lag < maxLag; lag++ {
		if acf[lag] > peakVal {
			peakVal = acf[lag]
			peakLag = lag
		}
	}
	return peakLag
}

func (t *Tracker) bpmToLag(bpm float64) int {
	return t.bpmToSamples(bpm) / t.hopSize
}

func (t *Tracker) lagToBPM(lag int) float64 {
	if lag <= 0 {
		return 0
	}
	periodSamples := lag * t.hopSize
	if periodSamples <= 0 {
		return 0
	}
	return (60.0 * t.sampleRateHz) / float64(periodSamples)
}

func (t *Tracker) bpmToSamples(bpm float64) int {
	if bpm <= 0 {
		return 0
	}
	return int((60.0 * t.sampleRateHz) / bpm)
}

func wrap(idx, n int) int {
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
