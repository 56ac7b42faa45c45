package fpmatch

import "math"

// sobelGx and sobelGy are the standard 3x3 Sobel kernels.
var (
	sobelGx = [3][3]float32{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelGy = [3][3]float32{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// ComputeOrientation returns the dominant ridge orientation in degrees via
// the Sobel structure tensor, evaluated on the interior of img. The result
// is signed and lives on a 180-degree-periodic axis; callers must not
// normalize it into [0,180).
func ComputeOrientation(img Image) float32 {
	var sxx, syy, sxy float64

	for y := 1; y < ImageHeight-1; y++ {
		for x := 1; x < ImageWidth-1; x++ {
			var gx, gy float32
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := img[(y+ky)*ImageWidth+(x+kx)]
					gx += sobelGx[ky+1][kx+1] * v
					gy += sobelGy[ky+1][kx+1] * v
				}
			}
			sxx += float64(gx) * float64(gx)
			syy += float64(gy) * float64(gy)
			sxy += float64(gx) * float64(gy)
		}
	}

	theta := 0.5 * math.Atan2(2*sxy, sxx-syy)
	return float32(theta * 180 / math.Pi)
}

// OrientationDiff returns the 180-degree-periodic difference between two
// orientations, in [0, 90].
func OrientationDiff(a, b float32) float32 {
	d := a - b
	if d < 0 {
		d = -d
	}
	d = float32(math.Mod(float64(d), 180))
	if d > 90 {
		d = 180 - d
	}
	return d
}
