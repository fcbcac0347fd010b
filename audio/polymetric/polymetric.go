// Package polymetric tracks a primary 4/4 meter alongside a configurable
// overlay meter (e.g. 7/8 over two bars of 4/4) and derives subdivision and
// fill events from their relative phase.
package polymetric

import (
	"math"

	"github.com/cwbudde/ledbeat/audio"
)

// Analyzer tracks primary/overlay/sixteenth phase and fill state. When
// Config.Enabled is false, OnBeat and Update are no-ops and all outputs stay
// at their reset values.
type Analyzer struct {
	cfg audio.PolymetricConfig

	phasePrimary  float64 // 0-1 within the current beat
	phaseOverlay  float64 // 0-1 within the overlay cycle
	phaseSixteenth float64

	lastBeatTimeMs float64
	beatPeriodMs   float64

	inFill       bool
	fillDensity  float64

	lastPhaseSixteenth float64
}

// New constructs an Analyzer.
func New(cfg audio.PolymetricConfig) *Analyzer {
	a := &Analyzer{cfg: cfg}
	a.Reset()
	return a
}

// SetConfig updates the overlay/swing configuration in place.
func (a *Analyzer) SetConfig(cfg audio.PolymetricConfig) {
	a.cfg = cfg
}

// Reset returns all phases and fill state to zero.
func (a *Analyzer) Reset() {
	a.phasePrimary = 0
	a.phaseOverlay = 0
	a.phaseSixteenth = 0
	a.lastBeatTimeMs = 0
	a.beatPeriodMs = 500 // 120 BPM default
	a.inFill = false
	a.fillDensity = 0
	a.lastPhaseSixteenth = 0
}

// PhasePrimary returns the fraction of the current beat elapsed, [0,1).
func (a *Analyzer) PhasePrimary() float64 { return a.phasePrimary }

// PhaseOverlay returns the current phase within the overlay cycle, [0,1).
func (a *Analyzer) PhaseOverlay() float64 { return a.phaseOverlay }

// PhaseSixteenth returns the current phase within a sixteenth-note
// subdivision, [0,1).
func (a *Analyzer) PhaseSixteenth() float64 { return a.phaseSixteenth }

// InFill reports whether a rhythmic fill is currently active.
func (a *Analyzer) InFill() bool { return a.inFill }

// OnBeat resets the primary phase and advances the overlay phase by
// overlay_numerator / (overlay_bars*4), invoking obs.OnPolymetricBeat if set.
func (a *Analyzer) OnBeat(bpm, timestampMs float64, obs *audio.Observers) {
	if !a.cfg.Enabled {
		return
	}

	if bpm > 0 {
		a.beatPeriodMs = (60.0 * 1000.0) / bpm
	}
	a.lastBeatTimeMs = timestampMs
	a.phasePrimary = 0

	beatsPerOverlayCycle := float64(a.cfg.OverlayBars) * 4.0
	if beatsPerOverlayCycle <= 0 {
		beatsPerOverlayCycle = 1
	}
	overlayIncrement := float64(a.cfg.OverlayNumerator) / beatsPerOverlayCycle

	a.phaseOverlay += overlayIncrement
	if a.phaseOverlay >= 1.0 {
		a.phaseOverlay -= math.Floor(a.phaseOverlay)
	}

	if obs != nil && obs.OnPolymetricBeat != nil {
		obs.OnPolymetricBeat(a.phasePrimary, a.phaseOverlay)
	}
}

// Update recomputes phases for the given timestamp and routes subdivision
// and fill events through obs.
func (a *Analyzer) Update(timestampMs float64, obs *audio.Observers) {
	if !a.cfg.Enabled {
		return
	}

	a.updatePhases(timestampMs)
	a.detectSubdivisions(obs)
	a.detectFills(obs)
}

func (a *Analyzer) updatePhases(timestampMs float64) {
	if a.beatPeriodMs <= 0 {
		return
	}

	timeSinceBeat := timestampMs - a.lastBeatTimeMs
	a.phasePrimary = timeSinceBeat / a.beatPeriodMs
	if a.phasePrimary >= 1.0 {
		a.phasePrimary = 0 // the next OnBeat will re-anchor the phase
	}

	a.phaseSixteenth = a.phasePrimary * 4.0
	a.phaseSixteenth -= math.Floor(a.phaseSixteenth)
}

func (a *Analyzer) detectSubdivisions(obs *audio.Observers) {
	if a.phaseSixteenth < a.lastPhaseSixteenth {
		if obs != nil && obs.OnSubdivision != nil {
			obs.OnSubdivision(audio.SubdivisionEvent{
				Kind:        audio.SubdivisionSixteenth,
				SwingOffset: a.SwingOffset(),
			})
		}
	}
	a.lastPhaseSixteenth = a.phaseSixteenth
}

func (a *Analyzer) detectFills(obs *audio.Observers) {
	phaseDiff := math.Abs(a.phasePrimary - a.phaseOverlay)

	switch {
	case phaseDiff > 0.6 && !a.inFill:
		a.inFill = true
		a.fillDensity = phaseDiff
		if obs != nil && obs.OnFill != nil {
			obs.OnFill(audio.FillEvent{Starting: true, Density: a.fillDensity})
		}
	case phaseDiff < 0.2 && a.inFill:
		a.inFill = false
		a.fillDensity = 0
		if obs != nil && obs.OnFill != nil {
			obs.OnFill(audio.FillEvent{Starting: false, Density: 0})
		}
	}
}

// SwingOffset returns the swing delay to apply at the current sixteenth
// phase: swing_amount on odd sixteenths, 0 on even ones.
func (a *Analyzer) SwingOffset() float64 {
	if a.cfg.SwingAmount <= 0 {
		return 0
	}
	subdivisionIndex := int(a.phasePrimary*4.0) % 2
	if subdivisionIndex == 1 {
		return a.cfg.SwingAmount
	}
	return 0
}
