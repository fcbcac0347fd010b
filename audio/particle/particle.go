// Package particle implements the audio-reactive particle system that
// renders onset, beat, subdivision, and fill events as moving colored light
// on a 2-D (or optionally 3-D) pixel grid.
package particle

import (
	"math"
	"math/rand/v2"

	"github.com/cwbudde/ledbeat/audio"
)

// Emitter identifies which named emission handler fired.
type Emitter int

const (
	EmitterKick Emitter = iota
	EmitterSnare
	EmitterHat
	EmitterOverlay
)

// particle fields are stored Structure-of-Arrays for cache-friendly
// iteration over the fixed-capacity pool.
type pool struct {
	x, y, z    []float64
	vx, vy, vz []float64
	hue, sat, val []float64
	life, maxLife []float64
}

// Engine owns a fixed-capacity particle pool and the four named emitters.
// All emission and physics calls are allocation-free after New.
type Engine struct {
	cfg audio.ParticlesConfig
	p   pool

	rng *rand.Rand

	kickDuckRemainMs float64
	kickDuckLevel    float64

	noiseTimeMs float64
}

// New constructs an Engine with cfg.MaxParticles slots, all initially dead.
// seed makes emission and noise-field sampling fully deterministic for a
// given (config, seed, input) triple.
func New(cfg audio.ParticlesConfig, seed uint64) *Engine {
	e := &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	e.allocate(cfg.MaxParticles)
	return e
}

func (e *Engine) allocate(n int) {
	e.p = pool{
		x: make([]float64, n), y: make([]float64, n), z: make([]float64, n),
		vx: make([]float64, n), vy: make([]float64, n), vz: make([]float64, n),
		hue: make([]float64, n), sat: make([]float64, n), val: make([]float64, n),
		life: make([]float64, n), maxLife: make([]float64, n),
	}
}

// SetConfig updates the configuration in place, reallocating the particle
// pool only when MaxParticles changed (: set_config avoids needless
// reallocation).
func (e *Engine) SetConfig(cfg audio.ParticlesConfig) {
	needRealloc := cfg.MaxParticles != e.cfg.MaxParticles
	e.cfg = cfg
	if needRealloc {
		e.allocate(cfg.MaxParticles)
	}
}

// SetSeed reseeds the deterministic RNG without otherwise touching state.
func (e *Engine) SetSeed(seed uint64) {
	e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Reset kills all particles and clears the kick-duck envelope and the
// noise-field clock.
func (e *Engine) Reset() {
	for i := range e.p.life {
		e.p.life[i] = 0
	}
	e.kickDuckRemainMs = 0
	e.kickDuckLevel = 0
	e.noiseTimeMs = 0
}

// ActiveCount returns the number of particles with remaining lifetime > 0.
// Always <= MaxParticles.
func (e *Engine) ActiveCount() int {
	n := 0
	for _, life := range e.p.life {
		if life > 0 {
			n++
		}
	}
	return n
}

// MaxParticles returns the pool capacity.
func (e *Engine) MaxParticles() int { return e.cfg.MaxParticles }

// OnOnsetBass emits kick particles scaled by confidence and starts the
// kick-duck brightness envelope.
func (e *Engine) OnOnsetBass(confidence, _ float64) {
	count := int(e.cfg.Kick.EmitRate * confidence)
	e.emit(e.cfg.Kick, count, confidence)

	e.kickDuckRemainMs = e.cfg.KickDuckDurationMs
	e.kickDuckLevel = e.cfg.KickDuckAmount
}

// OnOnsetMid emits snare particles scaled by confidence.
func (e *Engine) OnOnsetMid(confidence, _ float64) {
	count := int(e.cfg.Snare.EmitRate * confidence)
	e.emit(e.cfg.Snare, count, confidence)
}

// OnOnsetHigh emits hi-hat particles scaled by confidence.
func (e *Engine) OnOnsetHigh(confidence, _ float64) {
	count := int(e.cfg.Hat.EmitRate * confidence)
	e.emit(e.cfg.Hat, count, confidence)
}

// OnFill emits overlay particles when a fill starts.
func (e *Engine) OnFill(ev audio.FillEvent) {
	if !ev.Starting {
		return
	}
	count := int(e.cfg.Overlay.EmitRate * ev.Density)
	e.emit(e.cfg.Overlay, count, ev.Density)
}

// emit spawns up to count particles from emitter, scanning for dead slots
// in index order and stopping silently once the pool is full: emission into
// a full pool is a no-op per exhausted particle, not an error. MaxParticles
// == 0 makes this unconditionally a no-op.
func (e *Engine) emit(emitter audio.EmitterConfig, count int, energy float64) {
	for i := 0; i < count; i++ {
		slot := e.findDeadSlot()
		if slot < 0 {
			return
		}
		e.spawn(slot, emitter, energy)
	}
}

func (e *Engine) findDeadSlot() int {
	for i, life := range e.p.life {
		if life <= 0 {
			return i
		}
	}
	return -1
}

func (e *Engine) spawn(slot int, emitter audio.EmitterConfig, energy float64) {
	rand1 := e.rng.Float64()
	rand2 := e.rng.Float64()
	rand3 := e.rng.Float64()
	rand4 := e.rng.Float64()

	e.p.x[slot] = emitter.PosX*float64(e.cfg.GridWidth) + (rand1-0.5)*0.5
	e.p.y[slot] = emitter.PosY*float64(e.cfg.GridHeight) + (rand2-0.5)*0.5
	if e.cfg.Enable3D {
		e.p.z[slot] = emitter.PosZ * 10.0
	} else {
		e.p.z[slot] = 0
	}

	angle := rand3 * emitter.SpreadAngleDeg * (math.Pi / 180.0)
	speed := emitter.VelocityMin + rand4*(emitter.VelocityMax-emitter.VelocityMin)
	speed *= energy

	e.p.vx[slot] = math.Cos(angle) * speed
	e.p.vy[slot] = math.Sin(angle) * speed
	e.p.vz[slot] = (rand1 - 0.5) * speed * 0.5

	hueOffset := (rand2 - 0.5) * emitter.HueVarianceDeg * 2.0
	e.p.hue[slot] = math.Mod(emitter.BaseHue+hueOffset+360, 360)
	e.p.sat[slot] = emitter.BaseSaturation
	e.p.val[slot] = emitter.BaseValue

	lifetime := emitter.LifeMin + rand3*(emitter.LifeMax-emitter.LifeMin)
	e.p.life[slot] = lifetime
	e.p.maxLife[slot] = lifetime
}

// Update advances physics by dtSec: radial gravity, curl-noise flow field,
// velocity decay, position integration with toroidal wrap, lifetime decay
// with fade below 50% life, and kick-duck decay.
func (e *Engine) Update(dtSec float64) {
	e.noiseTimeMs += dtSec * 1000.0

	e.applyForces(dtSec)
	e.updateLifetime(dtSec)
	e.decayKickDuck(dtSec)
}

func (e *Engine) applyForces(dt float64) {
	centerX := float64(e.cfg.GridWidth) * 0.5
	centerY := float64(e.cfg.GridHeight) * 0.5

	for i := range e.p.life {
		if e.p.life[i] <= 0 {
			continue
		}

		if e.cfg.RadialGravity != 0 {
			dx := centerX - e.p.x[i]
			dy := centerY - e.p.y[i]
			dist := math.Hypot(dx, dy)
			if dist > 0.001 {
				force := e.cfg.RadialGravity / dist
				e.p.vx[i] += dx * force * dt
				e.p.vy[i] += dy * force * dt
			}
		}

		if e.cfg.CurlStrength > 0 {
			cx, cy, cz := curlNoise(e.p.x[i], e.p.y[i], e.p.z[i], e.noiseTimeMs)
			e.p.vx[i] += cx * e.cfg.CurlStrength * dt
			e.p.vy[i] += cy * e.cfg.CurlStrength * dt
			if e.cfg.Enable3D {
				e.p.vz[i] += cz * e.cfg.CurlStrength * dt
			}
		}

		e.p.vx[i] *= e.cfg.VelocityDecay
		e.p.vy[i] *= e.cfg.VelocityDecay
		e.p.vz[i] *= e.cfg.VelocityDecay

		e.p.x[i] += e.p.vx[i] * dt
		e.p.y[i] += e.p.vy[i] * dt
		if e.cfg.Enable3D {
			e.p.z[i] += e.p.vz[i] * dt
		}

		e.p.x[i] = wrapCoord(e.p.x[i], float64(e.cfg.GridWidth))
		e.p.y[i] = wrapCoord(e.p.y[i], float64(e.cfg.GridHeight))
	}
}

func wrapCoord(v, extent float64) float64 {
	for v < 0 {
		v += extent
	}
	for v >= extent {
		v -= extent
	}
	return v
}

func (e *Engine) updateLifetime(dt float64) {
	for i := range e.p.life {
		if e.p.life[i] <= 0 {
			continue
		}
		e.p.life[i] -= dt

		if e.p.maxLife[i] > 0 {
			fraction := e.p.life[i] / e.p.maxLife[i]
			if fraction < 0.5 {
				e.p.val[i] *= math.Max(0, fraction*2.0)
			}
		}
	}
}

func (e *Engine) decayKickDuck(dtSec float64) {
	if e.kickDuckRemainMs <= 0 {
		return
	}
	e.kickDuckRemainMs -= dtSec * 1000.0
	if e.kickDuckRemainMs <= 0 {
		e.kickDuckRemainMs = 0
		e.kickDuckLevel = 0
	}
}

// Pixel is one RGB output slot of a render target.
type Pixel struct {
	R, G, B uint8
}

// Render maps live particles onto a row-major width x height pixel grid,
// additively blending HSV->RGB converted color scaled by the kick-duck
// envelope, then applies a simple one-tap bloom pass to pixels above
// BloomThreshold. A nil or zero-length grid is a no-op.
func (e *Engine) Render(grid []Pixel) {
	if len(grid) == 0 {
		return
	}

	width := e.cfg.GridWidth
	height := e.cfg.GridHeight

	for i := range e.p.life {
		if e.p.life[i] <= 0 {
			continue
		}

		px := int(e.p.x[i])
		py := int(e.p.y[i])
		if px < 0 || px >= width || py < 0 || py >= height {
			continue
		}

		idx := py*width + px
		if idx >= len(grid) {
			continue
		}

		r, g, b := hsvToRGB(e.p.hue[i], e.p.sat[i], e.p.val[i])
		if e.kickDuckLevel > 0 {
			scale := 1.0 - e.kickDuckLevel
			r, g, b = r*scale, g*scale, b*scale
		}

		grid[idx] = addPixel(grid[idx], r, g, b)
	}

	if e.cfg.BloomThreshold > 0 {
		applyBloom(grid, e.cfg.BloomThreshold, e.cfg.BloomStrength)
	}
}

func addPixel(p Pixel, r, g, b float64) Pixel {
	return Pixel{
		R: addChannel(p.R, r),
		G: addChannel(p.G, g),
		B: addChannel(p.B, b),
	}
}

func addChannel(c uint8, add float64) uint8 {
	v := float64(c) + add*255.0
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func applyBloom(grid []Pixel, threshold, strength float64) {
	thresh := uint8(math.Min(255, threshold))
	for i, p := range grid {
		maxComponent := p.R
		if p.G > maxComponent {
			maxComponent = p.G
		}
		if p.B > maxComponent {
			maxComponent = p.B
		}
		if maxComponent <= thresh {
			continue
		}

		bloomR := float64(p.R) * strength
		bloomG := float64(p.G) * strength
		bloomB := float64(p.B) * strength

		if i > 0 {
			grid[i-1] = addPixel(grid[i-1], bloomR/255.0, bloomG/255.0, bloomB/255.0)
		}
		if i < len(grid)-1 {
			grid[i+1] = addPixel(grid[i+1], bloomR/255.0, bloomG/255.0, bloomB/255.0)
		}
	}
}
