// Command beatpulse drives the polymetric beat visualizer core with a
// synthetic click track and prints the onset, beat, and polymetric events it
// produces.
//
// Usage:
//
//	beatpulse [flags]
//
// Examples:
//
//	beatpulse -bpm 128 -seconds 8
//	beatpulse -bpm 96 -overlay-num 7 -overlay-bars 2 -polymetric
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/ledbeat/audio"
)

func main() {
	bpm := flag.Float64("bpm", 120, "click track tempo in beats per minute")
	seconds := flag.Float64("seconds", 6, "duration of the synthetic stream in seconds")
	sampleRateHz := flag.Float64("sample-rate", 48000, "sample rate in Hz")
	polymetricOn := flag.Bool("polymetric", false, "enable the polymetric overlay analysis")
	overlayNum := flag.Int("overlay-num", 7, "overlay meter numerator (e.g. 7 for 7/8)")
	overlayBars := flag.Int("overlay-bars", 2, "number of primary 4/4 bars the overlay cycle spans")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: beatpulse [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Streams a synthetic click track through the beat visualizer core\n")
		fmt.Fprintf(os.Stderr, "and prints onset, beat, and polymetric events as they fire.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := audio.DefaultConfig()
	cfg.SampleRateHz = *sampleRateHz
	cfg.Polymetric.Enabled = *polymetricOn
	cfg.Polymetric.OverlayNumerator = *overlayNum
	cfg.Polymetric.OverlayBars = *overlayBars

	orch, err := audio.NewOrchestrator(cfg, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Time [ms]\tEvent\tDetail\n")
	fmt.Fprintf(tw, "---------\t-----\t------\n")

	obs := orch.Observers()
	obs.OnOnsetBass = func(confidence, timestampMs float64) {
		fmt.Fprintf(tw, "%.1f\tonset.bass\tconfidence=%.3f\n", timestampMs, confidence)
	}
	obs.OnBeat = func(beat audio.BeatEvent) {
		fmt.Fprintf(tw, "%.1f\tbeat\tbpm=%.1f confidence=%.2f\n", beat.TimestampMs, beat.BPM, beat.Confidence)
	}
	obs.OnPolymetricBeat = func(phasePrimary, phaseOverlay float64) {
		fmt.Fprintf(tw, "-\tpolymetric.beat\tprimary=%.3f overlay=%.3f\n", phasePrimary, phaseOverlay)
	}
	obs.OnFill = func(ev audio.FillEvent) {
		state := "end"
		if ev.Starting {
			state = "start"
		}
		fmt.Fprintf(tw, "-\tfill.%s\tdensity=%.2f\n", state, ev.Density)
	}

	samples := clickTrack(*bpm, *seconds, cfg.SampleRateHz)
	hop := cfg.HopSize
	for i := 0; i+hop <= len(samples); i += hop {
		orch.ProcessAudio(samples[i : i+hop])
	}

	tw.Flush()
	fmt.Fprintf(os.Stderr, "\nframes=%d onsets=%d beats=%d final_bpm=%.1f\n",
		orch.FrameCount(), orch.OnsetCount(), orch.BeatCount(), orch.Tempo().BPM)
}

// clickTrack synthesizes a short decaying sine burst at every beat of bpm,
// silence in between, sampled at sampleRateHz for the given duration.
func clickTrack(bpm, seconds, sampleRateHz float64) []float64 {
	n := int(seconds * sampleRateHz)
	out := make([]float64, n)

	periodSamples := 60.0 / bpm * sampleRateHz
	burstSamples := int(0.01 * sampleRateHz) // 10ms click
	const clickFreqHz = 1800.0

	for i := 0; i < n; i++ {
		phaseInBeat := math.Mod(float64(i), periodSamples)
		if phaseInBeat < float64(burstSamples) {
			decay := 1.0 - phaseInBeat/float64(burstSamples)
			out[i] = decay * math.Sin(2*math.Pi*clickFreqHz*float64(i)/sampleRateHz)
		}
	}
	return out
}
