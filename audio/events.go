package audio

// OnsetEvent marks the perceptual start of a musical event. Produced
// only; never mutated after emission.
type OnsetEvent struct {
	FrameIndex  uint64
	TimestampMs float64
	Confidence  float64
}

// BeatEvent marks a predicted beat.
type BeatEvent struct {
	FrameIndex  uint64
	TimestampMs float64
	BPM         float64
	Confidence  float64
	PhaseInBar  float64 // [0,1)
}

// SubdivisionKind enumerates the finer periodic grid within a beat.
type SubdivisionKind int

const (
	SubdivisionQuarter SubdivisionKind = iota
	SubdivisionEighth
	SubdivisionSixteenth
	SubdivisionTriplet
	SubdivisionQuintuplet
)

// SubdivisionEvent marks a subdivision boundary crossing.
type SubdivisionEvent struct {
	Kind        SubdivisionKind
	SwingOffset float64
}

// FillEvent marks the start or end of a rhythmic fill.
type FillEvent struct {
	Starting bool
	Density  float64 // [0,1]
}

// Observers holds the named, synchronous callback slots exposed by
// Orchestrator. Event kinds are closed: there is no generic event
// bus, only these named slots. Any slot left nil is simply not invoked.
// Observers must not call back into the Orchestrator.
type Observers struct {
	OnOnsetBass      func(confidence float64, timestampMs float64)
	OnOnsetMid       func(confidence float64, timestampMs float64)
	OnOnsetHigh      func(confidence float64, timestampMs float64)
	OnBeat           func(BeatEvent)
	OnTempoChange    func(bpm, confidence float64)
	OnPolymetricBeat func(phasePrimary, phaseOverlay float64)
	OnSubdivision    func(SubdivisionEvent)
	OnFill           func(FillEvent)
}
