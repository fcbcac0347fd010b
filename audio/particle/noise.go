package particle

import "math"

// curlNoise returns a divergence-free 2-D/3-D velocity field sampled from a
// smooth value-noise lattice, via finite differences of a vector potential.
// It never allocates.
func curlNoise(x, y, z, timeMs float64) (vx, vy, vz float64) {
	const epsilon = 0.01
	const scale = 0.1 // inverse of original's integer lattice scale

	t := timeMs * 0.001

	n1 := valueNoise3(x*scale, (y+epsilon)*scale, z*scale+t)
	n2 := valueNoise3(x*scale, (y-epsilon)*scale, z*scale+t)
	vx = (n1 - n2) / (2 * epsilon)

	n3 := valueNoise3((x+epsilon)*scale, y*scale, z*scale+t)
	n4 := valueNoise3((x-epsilon)*scale, y*scale, z*scale+t)
	vy = -(n3 - n4) / (2 * epsilon)

	ny1 := valueNoise3((x+epsilon)*scale, y*scale, t+1000)
	ny2 := valueNoise3((x-epsilon)*scale, y*scale, t+1000)
	nx1 := valueNoise3(x*scale, (y+epsilon)*scale, t+2000)
	nx2 := valueNoise3(x*scale, (y-epsilon)*scale, t+2000)
	dNyDx := (ny1 - ny2) / (2 * epsilon)
	dNxDy := (nx1 - nx2) / (2 * epsilon)
	vz = dNyDx - dNxDy

	return vx, vy, vz
}

// valueNoise3 is a deterministic, allocation-free lattice value-noise
// function with trilinear interpolation and smoothstep easing, returning
// values in roughly [-1, 1].
func valueNoise3(x, y, z float64) float64 {
	x0, fx := math.Floor(x), x-math.Floor(x)
	y0, fy := math.Floor(y), y-math.Floor(y)
	z0, fz := math.Floor(z), z-math.Floor(z)

	sx := smoothstep(fx)
	sy := smoothstep(fy)
	sz := smoothstep(fz)

	v000 := latticeHash(x0, y0, z0)
	v100 := latticeHash(x0+1, y0, z0)
	v010 := latticeHash(x0, y0+1, z0)
	v110 := latticeHash(x0+1, y0+1, z0)
	v001 := latticeHash(x0, y0, z0+1)
	v101 := latticeHash(x0+1, y0, z0+1)
	v011 := latticeHash(x0, y0+1, z0+1)
	v111 := latticeHash(x0+1, y0+1, z0+1)

	x00 := lerp(v000, v100, sx)
	x10 := lerp(v010, v110, sx)
	x01 := lerp(v001, v101, sx)
	x11 := lerp(v011, v111, sx)

	y0v := lerp(x00, x10, sy)
	y1v := lerp(x01, x11, sy)

	return lerp(y0v, y1v, sz)
}

func smoothstep(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// latticeHash returns a deterministic pseudo-random value in [-1,1] for an
// integer lattice point, via a fixed-point hash (no shared mutable state,
// safe to call from multiple Engine instances concurrently).
func latticeHash(x, y, z float64) float64 {
	ix := int64(x)*374761393 + int64(y)*668265263 + int64(z)*2147483647
	ix = (ix ^ (ix >> 13)) * 1274126177
	ix ^= ix >> 16
	if ix < 0 {
		ix = -ix
	}
	return (float64(ix%2000001) / 1000000.0) - 1.0
}

// hsvToRGB converts hue in degrees [0,360), saturation/value in [0,1] to
// linear RGB components in [0,1].
func hsvToRGB(hue, sat, val float64) (r, g, b float64) {
	if sat <= 0 {
		return val, val, val
	}

	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	h /= 60.0

	i := int(math.Floor(h))
	f := h - math.Floor(h)
	p := val * (1 - sat)
	q := val * (1 - sat*f)
	t := val * (1 - sat*(1-f))

	switch i % 6 {
	case 0:
		return val, t, p
	case 1:
		return q, val, p
	case 2:
		return p, val, t
	case 3:
		return p, q, val
	case 4:
		return t, p, val
	default:
		return val, p, q
	}
}
