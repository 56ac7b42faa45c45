package fpmatch

import (
	"math"
	"sync"
)

const (
	qualityMinContrast  = 0.50
	qualityMinVariance  = 0.02
	qualityMinStd       = 0.10
	qualityMinCenterRat = 0.15
	qualityMinGabor     = 0.01
	qualityMinCoherence = 0.0

	gaborNumOrient = 8
	gaborSigma     = 4.0
	gaborWavelen   = 8.0
	gaborKSize     = 17

	coherenceBlockSize = 8
)

// gaborKernel is one oriented 17x17 real Gabor filter, L1-normalized.
type gaborKernel struct {
	taps  [gaborKSize * gaborKSize]float32
	angle float32 // radians
}

var (
	gaborOnce    sync.Once
	gaborKernels [gaborNumOrient]gaborKernel
)

// initGaborKernels builds the fixed bank of 8 oriented Gabor kernels exactly
// once, process-wide; subsequent calls are no-ops. The kernels are immutable
// after the first writer publishes them (Invariant 8, §4.3/§8).
func initGaborKernels() {
	gaborOnce.Do(func() {
		half := gaborKSize / 2
		freq := 1.0 / gaborWavelen
		for o := 0; o < gaborNumOrient; o++ {
			theta := float64(o) * math.Pi / float64(gaborNumOrient)
			var k gaborKernel
			k.angle = float32(theta)
			var sumAbs float64
			for y := -half; y <= half; y++ {
				for x := -half; x <= half; x++ {
					xTheta := float64(x)*math.Cos(theta) + float64(y)*math.Sin(theta)
					yTheta := -float64(x)*math.Sin(theta) + float64(y)*math.Cos(theta)
					gauss := math.Exp(-(xTheta*xTheta + yTheta*yTheta) / (2 * gaborSigma * gaborSigma))
					val := gauss * math.Cos(2*math.Pi*freq*xTheta)
					idx := (y+half)*gaborKSize + (x + half)
					k.taps[idx] = float32(val)
					sumAbs += math.Abs(val)
				}
			}
			sumAbs += 1e-8
			for i := range k.taps {
				k.taps[i] = float32(float64(k.taps[i]) / sumAbs)
			}
			gaborKernels[o] = k
		}
	})
}

// CheckQuality runs the five-criterion gate of §4.3 against a normalized
// image in order, rejecting at the first failing criterion.
func CheckQuality(img Image) (bool, QualityFailure) {
	sorted := sortedCopy(img)

	// 1. Contrast: truncating index into the full sorted copy, not the
	// interpolated percentile used by the decoder.
	n := len(sorted)
	p2 := sorted[int(0.02*float64(n))]
	p98 := sorted[int(0.98*float64(n))]
	if p98-p2 < qualityMinContrast {
		return false, QualityFailContrast
	}

	// 2. Population variance.
	var sum, sumSq float64
	for _, v := range img {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	mean := sum / float64(ImageSize)
	variance := sumSq/float64(ImageSize) - mean*mean
	if variance < qualityMinVariance {
		return false, QualityFailVariance
	}

	// 3. Centered energy and weighted std.
	std, centerRatio := centeredEnergy(img, p2, p98)
	if std < qualityMinStd || centerRatio < qualityMinCenterRat {
		return false, QualityFailCenterStd
	}

	// 4. Gabor ridge strength.
	initGaborKernels()
	gaborMean, orientMap, valid := gaborRidgeStrength(img)
	if gaborMean < qualityMinGabor {
		return false, QualityFailGabor
	}

	// 5. Block-orientation coherence.
	coherence := blockCoherence(orientMap, valid)
	if coherence < qualityMinCoherence {
		return false, QualityFailCoherence
	}

	return true, QualityFailNone
}

// centeredEnergy computes the [p2,p98]-stretched-and-clamped image's
// centered-energy ratio and its Gaussian-weighted standard deviation.
func centeredEnergy(img Image, p2, p98 float32) (std, centerRatio float32) {
	rng := p98 - p2 + 1e-8
	cy := float64(ImageHeight-1) / 2
	cx := float64(ImageWidth-1) / 2
	sigma := math.Min(ImageHeight, ImageWidth) / 3

	var s [ImageSize]float32
	for i, v := range img {
		sv := (v - p2) / rng
		if sv < 0 {
			sv = 0
		} else if sv > 1 {
			sv = 1
		}
		s[i] = sv
	}

	var total, weighted float64
	var sumSW, sumSWSq float64
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			v := float64(s[y*ImageWidth+x])
			total += v * v
			dy := float64(y) - cy
			dx := float64(x) - cx
			w := math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			sw := v * w
			weighted += sw * sw
			sumSW += sw
			sumSWSq += sw * sw
		}
	}

	if total == 0 {
		return 0, 0
	}
	centerRatio = float32(weighted / total)

	n := float64(ImageSize)
	meanSW := sumSW / n
	varSW := sumSWSq/n - meanSW*meanSW
	if varSW < 0 {
		varSW = 0
	}
	std = float32(math.Sqrt(varSW))
	return std, centerRatio
}

// gaborRidgeStrength zero-means/unit-std normalizes img, convolves every
// interior position against the 8 Gabor kernels, and records the per-pixel
// max |response| and its argmax orientation. Border pixels within ksize/2 of
// the edge are left invalid (not convolved).
func gaborRidgeStrength(img Image) (mean float32, orientMap [ImageSize]float32, valid [ImageSize]bool) {
	var sum, sumSq float64
	for _, v := range img {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(ImageSize)
	m := sum / n
	variance := sumSq/n - m*m
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance) + 1e-8

	var norm [ImageSize]float32
	for i, v := range img {
		norm[i] = float32((float64(v) - m) / sd)
	}

	half := gaborKSize / 2
	var total float64
	var count int
	for y := half; y < ImageHeight-half; y++ {
		for x := half; x < ImageWidth-half; x++ {
			var best float32
			var bestAngle float32
			for o := 0; o < gaborNumOrient; o++ {
				resp := convolveAt(norm, gaborKernels[o], x, y)
				abs := resp
				if abs < 0 {
					abs = -abs
				}
				if o == 0 || abs > best {
					best = abs
					bestAngle = gaborKernels[o].angle * 180 / math.Pi
				}
			}
			idx := y*ImageWidth + x
			orientMap[idx] = bestAngle
			valid[idx] = true
			total += float64(best)
			count++
		}
	}
	if count == 0 {
		return 0, orientMap, valid
	}
	return float32(total / float64(count)), orientMap, valid
}

// convolveAt evaluates one Gabor kernel centered at (x,y) in img.
func convolveAt(img [ImageSize]float32, k gaborKernel, x, y int) float32 {
	half := gaborKSize / 2
	var sum float32
	for ky := -half; ky <= half; ky++ {
		for kx := -half; kx <= half; kx++ {
			v := img[(y+ky)*ImageWidth+(x+kx)]
			sum += v * k.taps[(ky+half)*gaborKSize+(kx+half)]
		}
	}
	return sum
}

// blockCoherence averages cos(2*delta-theta) between each 8px block and its
// 4-neighbors, restricted to blocks whose center lies in the Gabor-valid
// interior.
func blockCoherence(orientMap [ImageSize]float32, valid [ImageSize]bool) float32 {
	blocksY := ImageHeight / coherenceBlockSize
	blocksX := ImageWidth / coherenceBlockSize
	if blocksY == 0 || blocksX == 0 {
		return 0
	}

	blockAngle := make([][]float32, blocksY)
	blockValid := make([][]bool, blocksY)
	for by := 0; by < blocksY; by++ {
		blockAngle[by] = make([]float32, blocksX)
		blockValid[by] = make([]bool, blocksX)
		for bx := 0; bx < blocksX; bx++ {
			cy := by*coherenceBlockSize + coherenceBlockSize/2
			cx := bx*coherenceBlockSize + coherenceBlockSize/2
			idx := cy*ImageWidth + cx
			if valid[idx] {
				blockAngle[by][bx] = orientMap[idx]
				blockValid[by][bx] = true
			}
		}
	}

	var sum float64
	var count int
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			if !blockValid[by][bx] {
				continue
			}
			theta := float64(blockAngle[by][bx]) * math.Pi / 180
			neighbors := [][2]int{{by - 1, bx}, {by + 1, bx}, {by, bx - 1}, {by, bx + 1}}
			for _, n := range neighbors {
				ny, nx := n[0], n[1]
				if ny < 0 || ny >= blocksY || nx < 0 || nx >= blocksX {
					continue
				}
				if !blockValid[ny][nx] {
					continue
				}
				nTheta := float64(blockAngle[ny][nx]) * math.Pi / 180
				sum += math.Cos(2 * (theta - nTheta))
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return float32(sum / float64(count))
}
