// Package peak picks discrete onset events out of a streaming novelty
// function using adaptive thresholds and minimum spacing.
package peak

import "github.com/cwbudde/ledbeat/audio"

// entry is one slot of the NoveltyRing.
type entry struct {
	odf       float64
	frame     uint64
	timestamp float64
}

// Picker detects local peaks in an onset detection function, evaluated at a
// delayed center index so post-window data is available.
type Picker struct {
	policy audio.PeakPolicy

	ring  []entry
	head  int // next write position
	count int

	preMaxFrames, postMaxFrames     int
	preAvgFrames, postAvgFrames     int
	minInterOnsetFrames             int

	lastOnsetFrame uint64
	haveLastOnset  bool
}

// New constructs a Picker. sampleRateHz and hopSize convert the policy's
// millisecond windows to frames.
func New(policy audio.PeakPolicy, sampleRateHz float64, hopSize int) *Picker {
	p := &Picker{policy: policy}
	p.resize(sampleRateHz, hopSize)
	return p
}

func (p *Picker) resize(sampleRateHz float64, hopSize int) {
	framesPerMs := sampleRateHz / (float64(hopSize) * 1000.0)
	p.preMaxFrames = int(p.policy.PreMaxMs * framesPerMs)
	p.postMaxFrames = int(p.policy.PostMaxMs * framesPerMs)
	p.preAvgFrames = int(p.policy.PreAvgMs * framesPerMs)
	p.postAvgFrames = int(p.policy.PostAvgMs * framesPerMs)
	p.minInterOnsetFrames = int(p.policy.MinInterOnsetMs * framesPerMs)

	capacity := p.preMaxFrames + p.postMaxFrames + p.preAvgFrames + p.postAvgFrames + 2
	if capacity < 4 {
		capacity = 4
	}
	p.ring = make([]entry, capacity)
	p.Reset()
}

// SetConfig updates the policy and sample-rate/hop parameters in place and
// resets ring state.
func (p *Picker) SetConfig(policy audio.PeakPolicy, sampleRateHz float64, hopSize int) {
	p.policy = policy
	p.resize(sampleRateHz, hopSize)
}

// Reset clears ring state. After Reset, last_emitted_onset_frame is 0 and
// does not suppress the first onset.
func (p *Picker) Reset() {
	for i := range p.ring {
		p.ring[i] = entry{}
	}
	p.head = 0
	p.count = 0
	p.lastOnsetFrame = 0
	p.haveLastOnset = false
}

func (p *Picker) wrap(idx int) int {
	n := len(p.ring)
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

// Process appends one (odf, frame, timestamp) sample and returns an onset
// event if the delayed center index is a peak under the configured policy.
func (p *Picker) Process(odfValue float64, frameIndex uint64, timestampMs float64) (audio.OnsetEvent, bool) {
	p.ring[p.head] = entry{odf: odfValue, frame: frameIndex, timestamp: timestampMs}
	p.head = p.wrap(p.head + 1)
	if p.count < len(p.ring) {
		p.count++
	}

	if p.count < p.preMaxFrames+p.postMaxFrames+1 {
		return audio.OnsetEvent{}, false
	}

	centerIdx := p.wrap(p.head - p.postMaxFrames - 1)
	center := p.ring[centerIdx]

	var isPeak bool
	switch p.policy.Kind {
	case audio.PeakLocalMax:
		isPeak = p.isLocalMaximum(centerIdx)
	case audio.PeakAdaptiveThreshold:
		mean := p.localMean(centerIdx)
		isPeak = p.isLocalMaximum(centerIdx) && center.odf >= mean+p.policy.ThresholdDelta
	case audio.PeakSuperFluxPeaks:
		mean := p.localMean(centerIdx)
		isPeak = p.isLocalMaximum(centerIdx) &&
			center.odf >= mean+p.policy.ThresholdDelta &&
			p.meetsMinDistance(center.frame)
	}

	if !isPeak {
		return audio.OnsetEvent{}, false
	}

	p.lastOnsetFrame = center.frame
	p.haveLastOnset = true

	return audio.OnsetEvent{
		FrameIndex:  center.frame,
		TimestampMs: center.timestamp,
		Confidence:  center.odf,
	}, true
}

func (p *Picker) isLocalMaximum(centerIdx int) bool {
	centerVal := p.ring[centerIdx].odf

	for i := 1; i <= p.preMaxFrames; i++ {
		if p.ring[p.wrap(centerIdx-i)].odf >= centerVal {
			return false
		}
	}
	for i := 1; i <= p.postMaxFrames; i++ {
		if p.ring[p.wrap(centerIdx+i)].odf > centerVal {
			return false
		}
	}
	return true
}

func (p *Picker) localMean(centerIdx int) float64 {
	sum := 0.0
	n := 0
	for i := 1; i <= p.preAvgFrames; i++ {
		sum += p.ring[p.wrap(centerIdx-i)].odf
		n++
	}
	for i := 1; i <= p.postAvgFrames; i++ {
		sum += p.ring[p.wrap(centerIdx+i)].odf
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (p *Picker) meetsMinDistance(frameIndex uint64) bool {
	if !p.haveLastOnset {
		return true
	}
	return frameIndex-p.lastOnsetFrame >= uint64(p.minInterOnsetFrames)
}
