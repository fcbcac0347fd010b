package audio

import (
	"math"
	"slices"

	"github.com/cwbudde/ledbeat/audio/onset"
	"github.com/cwbudde/ledbeat/audio/particle"
	"github.com/cwbudde/ledbeat/audio/peak"
	"github.com/cwbudde/ledbeat/audio/polymetric"
	"github.com/cwbudde/ledbeat/audio/spectral"
	"github.com/cwbudde/ledbeat/audio/tempo"
)

// Orchestrator owns every processing component and wires their outputs into
// the named observer slots and the particle renderer.
type Orchestrator struct {
	cfg Config
	obs Observers

	front *spectral.Front // feeds both odfFn (unless Energy) and bandFn (always)

	odfFn     *onset.Function // drives peak picking + tempo tracking
	bandFn    *onset.Function // always MultiBand; feeds bass/mid/high routing
	peakMain  *peak.Picker
	peakBass  *peak.Picker
	peakMid   *peak.Picker
	peakHigh  *peak.Picker
	tempoTrk  *tempo.Tracker
	polyAnlz  *polymetric.Analyzer
	particles *particle.Engine

	frameCount uint64
	onsetCount uint64
	beatCount  uint64

	currentODF  float64
	lastTempoBPM float64

	lastRenderMs    float64
	haveRendered    bool
	beatSinceRender bool
}

// NewOrchestrator validates cfg and constructs every component, wiring the
// particle engine's emission handlers to the default rhythm-response
// behavior. seed makes particle emission and curl-noise sampling
// deterministic for a given (config, seed, input) triple.
func NewOrchestrator(cfg Config, seed uint64) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Bands = slices.Clone(cfg.Bands)

	o := &Orchestrator{cfg: cfg}
	if err := o.buildComponents(seed); err != nil {
		return nil, err
	}
	o.wireParticleObservers()
	return o, nil
}

func (o *Orchestrator) buildComponents(seed uint64) error {
	// The spectral front is built unconditionally (even for the Energy ODF,
	// which drives timing from the time-domain directly) because per-band
	// onset routing always needs a magnitude spectrum to bucket into
	// bass/mid/high sub-novelty.
	front, err := spectral.New(o.cfg.FrameSize)
	if err != nil {
		return err
	}
	o.front = front
	binCount := front.BinCount()

	onsetBands := make([]onset.Band, len(o.cfg.Bands))
	for i, b := range o.cfg.Bands {
		lo, hi := onset.BinsForBand(b.LowHz, b.HighHz, o.cfg.SampleRateHz, o.cfg.FrameSize)
		onsetBands[i] = onset.Band{LowBin: lo, HighBin: hi, Weight: b.Weight}
	}

	odfCfg := onset.Config{
		Kind:                  onset.Kind(o.cfg.ODFKind),
		AdaptiveWhitening:     o.cfg.AdaptiveWhitening,
		WhiteningAlpha:        o.cfg.WhiteningAlpha,
		LogCompression:        o.cfg.LogCompression,
		SuperFluxMu:           o.cfg.SuperFluxMu,
		SuperFluxFilterRadius: o.cfg.SuperFluxFilterRadius,
		Bands:                 onsetBands,
	}
	o.odfFn = onset.New(odfCfg, binCount)

	bandCfg := odfCfg
	bandCfg.Kind = onset.MultiBand
	o.bandFn = onset.New(bandCfg, binCount)

	o.peakMain = peak.New(o.cfg.Peak, o.cfg.SampleRateHz, o.cfg.HopSize)
	o.peakBass = peak.New(o.cfg.Peak, o.cfg.SampleRateHz, o.cfg.HopSize)
	o.peakMid = peak.New(o.cfg.Peak, o.cfg.SampleRateHz, o.cfg.HopSize)
	o.peakHigh = peak.New(o.cfg.Peak, o.cfg.SampleRateHz, o.cfg.HopSize)

	o.tempoTrk = tempo.New(o.cfg.Tempo, o.cfg.SampleRateHz, o.cfg.HopSize)
	o.polyAnlz = polymetric.New(o.cfg.Polymetric)
	o.particles = particle.New(o.cfg.Particles, seed)

	return nil
}

func (o *Orchestrator) wireParticleObservers() {
	o.obs.OnOnsetBass = o.particles.OnOnsetBass
	o.obs.OnOnsetMid = o.particles.OnOnsetMid
	o.obs.OnOnsetHigh = o.particles.OnOnsetHigh
	o.obs.OnFill = o.particles.OnFill
}

// Observers returns the observer slot set. Callers may overwrite any slot;
// doing so replaces (not chains with) the default particle wiring installed
// by NewOrchestrator — wrap the previous value first if both should run.
func (o *Orchestrator) Observers() *Observers { return &o.obs }

// Reset returns every component to its initial state.
func (o *Orchestrator) Reset() {
	o.odfFn.Reset()
	o.bandFn.Reset()
	o.peakMain.Reset()
	o.peakBass.Reset()
	o.peakMid.Reset()
	o.peakHigh.Reset()
	o.tempoTrk.Reset()
	o.polyAnlz.Reset()
	o.particles.Reset()

	o.frameCount = 0
	o.onsetCount = 0
	o.beatCount = 0
	o.currentODF = 0
	o.lastTempoBPM = 0
	o.lastRenderMs = 0
	o.haveRendered = false
	o.beatSinceRender = false
}

// SetConfig validates and applies a new configuration. When frame_size,
// sample_rate_hz, the ODF kind or its preprocessing settings, or the band
// layout change, the spectral front, onset functions, peak pickers, tempo
// tracker, and polymetric analyzer are rebuilt from their initial state;
// otherwise they are updated in place. The particle engine is always kept,
// and its pool is reallocated only if MaxParticles changed.
func (o *Orchestrator) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Bands = slices.Clone(cfg.Bands)

	needsRebuild := cfg.FrameSize != o.cfg.FrameSize ||
		cfg.SampleRateHz != o.cfg.SampleRateHz ||
		cfg.ODFKind != o.cfg.ODFKind ||
		cfg.SuperFluxMu != o.cfg.SuperFluxMu ||
		cfg.SuperFluxFilterRadius != o.cfg.SuperFluxFilterRadius ||
		cfg.AdaptiveWhitening != o.cfg.AdaptiveWhitening ||
		cfg.WhiteningAlpha != o.cfg.WhiteningAlpha ||
		cfg.LogCompression != o.cfg.LogCompression ||
		!slices.Equal(cfg.Bands, o.cfg.Bands)

	o.cfg = cfg

	if needsRebuild {
		particles := o.particles
		if err := o.buildComponents(0); err != nil {
			return err
		}
		particles.SetConfig(cfg.Particles)
		o.particles = particles
		o.wireParticleObservers()
		return nil
	}

	o.peakMain.SetConfig(cfg.Peak, cfg.SampleRateHz, cfg.HopSize)
	o.peakBass.SetConfig(cfg.Peak, cfg.SampleRateHz, cfg.HopSize)
	o.peakMid.SetConfig(cfg.Peak, cfg.SampleRateHz, cfg.HopSize)
	o.peakHigh.SetConfig(cfg.Peak, cfg.SampleRateHz, cfg.HopSize)
	o.tempoTrk.SetConfig(cfg.Tempo, cfg.SampleRateHz, cfg.HopSize)
	o.polyAnlz.SetConfig(cfg.Polymetric)
	o.particles.SetConfig(cfg.Particles)

	return nil
}

// FrameCount, OnsetCount, and BeatCount return lifetime totals.
func (o *Orchestrator) FrameCount() uint64 { return o.frameCount }
func (o *Orchestrator) OnsetCount() uint64 { return o.onsetCount }
func (o *Orchestrator) BeatCount() uint64  { return o.beatCount }

// Tempo returns the current tempo estimate.
func (o *Orchestrator) Tempo() tempo.Estimate { return o.tempoTrk.Tempo() }

// PhasePrimary, PhaseOverlay, and PhaseSixteenth expose the polymetric
// analyzer's current phases.
func (o *Orchestrator) PhasePrimary() float64   { return o.polyAnlz.PhasePrimary() }
func (o *Orchestrator) PhaseOverlay() float64   { return o.polyAnlz.PhaseOverlay() }
func (o *Orchestrator) PhaseSixteenth() float64 { return o.polyAnlz.PhaseSixteenth() }

// ActiveParticleCount returns the number of live particles.
func (o *Orchestrator) ActiveParticleCount() int { return o.particles.ActiveCount() }

func (o *Orchestrator) timestampMs() float64 {
	return (float64(o.frameCount) * float64(o.cfg.HopSize) * 1000.0) / o.cfg.SampleRateHz
}

// ProcessAudio runs one hop's worth of samples through the onset detection,
// peak picking, tempo tracking, and polymetric analysis stages, invoking
// observer callbacks as events fire. Zero-length input still
// advances frame_count and is otherwise a no-op (: zero samples -> no
// state change beyond bookkeeping).
func (o *Orchestrator) ProcessAudio(samples []float64) {
	if len(samples) == 0 {
		o.frameCount++
		return
	}

	timestampMs := o.timestampMs()
	mag := o.front.Spectrum(samples)

	if o.cfg.ODFKind == ODFEnergy {
		o.currentODF = o.odfFn.ProcessTimeDomain(samples)
	} else {
		o.currentODF = o.odfFn.ProcessSpectrum(mag)
	}
	o.bandFn.ProcessSpectrum(mag)

	if _, ok := o.peakMain.Process(o.currentODF, o.frameCount, timestampMs); ok {
		o.onsetCount++
	}
	o.routeBandOnsets(timestampMs)

	o.tempoTrk.AddNovelty(o.currentODF)
	currentTimeSamples := (timestampMs / 1000.0) * o.cfg.SampleRateHz
	beats := o.tempoTrk.CheckBeat(currentTimeSamples, o.frameCount, timestampMs)
	for _, beat := range beats {
		o.beatCount++
		o.beatSinceRender = true
		o.polyAnlz.OnBeat(beat.BPM, beat.TimestampMs, &o.obs)
		if o.obs.OnBeat != nil {
			o.obs.OnBeat(beat)
		}
		if math.Abs(beat.BPM-o.lastTempoBPM) > 1.0 {
			o.lastTempoBPM = beat.BPM
			if o.obs.OnTempoChange != nil {
				o.obs.OnTempoChange(beat.BPM, beat.Confidence)
			}
		}
	}

	o.polyAnlz.Update(timestampMs, &o.obs)

	o.frameCount++
}

// routeBandOnsets feeds each band's per-band peak picker with this frame's
// sub-novelty and dispatches onset callbacks for whichever bands peaked.
// If more than one band peaks in the same frame, only the one with the
// strongest sub-novelty is dispatched, breaking ties bass -> mid -> high:
// per-band novelty is preferred over the combined ODF for this choice.
func (o *Orchestrator) routeBandOnsets(timestampMs float64) {
	sub := o.bandFn.LastMultiBandOnset()

	bassEvt, bassFired := o.peakBass.Process(sub.Bass, o.frameCount, timestampMs)
	midEvt, midFired := o.peakMid.Process(sub.Mid, o.frameCount, timestampMs)
	highEvt, highFired := o.peakHigh.Process(sub.High, o.frameCount, timestampMs)

	switch {
	case bassFired &&
		(!midFired || bassEvt.Confidence >= midEvt.Confidence) &&
		(!highFired || bassEvt.Confidence >= highEvt.Confidence):
		if o.obs.OnOnsetBass != nil {
			o.obs.OnOnsetBass(bassEvt.Confidence, bassEvt.TimestampMs)
		}
	case midFired && (!highFired || midEvt.Confidence >= highEvt.Confidence):
		if o.obs.OnOnsetMid != nil {
			o.obs.OnOnsetMid(midEvt.Confidence, midEvt.TimestampMs)
		}
	case highFired:
		if o.obs.OnOnsetHigh != nil {
			o.obs.OnOnsetHigh(highEvt.Confidence, highEvt.TimestampMs)
		}
	}
}

// Render advances the particle simulation by the elapsed time since the
// last Render call (clamped to [0, 0.1]s; 1/60s on the first call) and
// draws the result into grid. Before drawing, the background is either
// cleared (if ClearOnBeat is set and a beat fired since the last Render) or
// faded by BackgroundFade/255; particles are additively blended on top of
// whichever the buffer ends up holding. A nil or zero-length grid skips
// both the background step and drawing but still advances physics.
func (o *Orchestrator) Render(grid []particle.Pixel, nowMs float64) {
	var dtSec float64
	if !o.haveRendered {
		dtSec = o.cfg.Particles.TimestepDefault
		o.haveRendered = true
	} else {
		dtSec = (nowMs - o.lastRenderMs) / 1000.0
		if dtSec < 0 {
			dtSec = 0
		}
		if dtSec > 0.1 {
			dtSec = 0.1
		}
	}
	o.lastRenderMs = nowMs

	o.applyBackground(grid)
	o.particles.Update(dtSec)
	o.particles.Render(grid)
}

// applyBackground clears or fades grid in place ahead of the additive
// particle pass, then consumes the pending beat-clear flag.
func (o *Orchestrator) applyBackground(grid []particle.Pixel) {
	if len(grid) == 0 {
		return
	}

	if o.cfg.Particles.ClearOnBeat && o.beatSinceRender {
		for i := range grid {
			grid[i] = particle.Pixel{}
		}
	} else if fade := o.cfg.Particles.BackgroundFade; fade < 255 {
		scale := float64(fade) / 255.0
		for i := range grid {
			grid[i].R = uint8(float64(grid[i].R) * scale)
			grid[i].G = uint8(float64(grid[i].G) * scale)
			grid[i].B = uint8(float64(grid[i].B) * scale)
		}
	}
	o.beatSinceRender = false
}
