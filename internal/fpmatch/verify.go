package fpmatch

import (
	"math"

	"github.com/your-org/ft9362/internal/fpmatch/weights"
)

// rotationAngles, shiftOffsets and brightnessDeltas are the exact TTA
// augmentations of §4.6: 4 rotations + 4 shifts + 2 brightness deltas, plus
// an identity vote, for tta_total = 11.
var (
	rotationAngles   = [4]float32{-10, -5, 5, 10}
	shiftOffsets     = [4][2]int{{-2, 0}, {2, 0}, {0, -2}, {0, 2}}
	brightnessDeltas = [2]float32{-0.05, 0.05}
)

// Verify runs the five-stage pipeline of §4.6 against a probe image and a
// set of enrolled templates. It is a pure function of its inputs and always
// returns a fully populated Result, even on rejection.
func Verify(w *weights.Weights, cfg Config, probe Image, templates TemplateSet) Result {
	result := Result{
		BestDistance:    float32(math.Inf(1)),
		BestTemplateIdx: -1,
		TTATotal:        ttaTotal,
	}

	if len(templates) == 0 {
		return result
	}

	probeOrientation := ComputeOrientation(probe)
	result.ProbeOrientation = probeOrientation

	// Stage 1: orientation pre-filter.
	if cfg.UseOrientationCheck {
		minDiff := float32(math.Inf(1))
		for _, t := range templates {
			d := OrientationDiff(probeOrientation, t.Orientation)
			if d < minDiff {
				minDiff = d
			}
		}
		result.MinOrientationDiff = minDiff
		if minDiff > cfg.OrientationThreshold {
			return result
		}
	}

	// Stage 2: nearest-neighbor embedding scan.
	probeEmbedding := Embed(w, probe)
	belowThreshold := 0
	for i, t := range templates {
		d := EmbeddingDistance(probeEmbedding, t.Embedding)
		if d < result.BestDistance {
			result.BestDistance = d
			result.BestTemplateIdx = i
		}
		if d < cfg.NNThreshold {
			belowThreshold++
		}
	}
	result.TemplatesBelowThreshold = belowThreshold
	if result.BestDistance >= cfg.NNThreshold {
		return result
	}

	// Stage 3: quorum.
	if belowThreshold < cfg.MinAgreeingTemplates {
		return result
	}

	// Stage 4: TTA voting.
	if cfg.UseTTA {
		votes := ttaVotes(w, cfg, probe, templates)
		result.TTAVotes = votes
		if float32(votes)/float32(ttaTotal) < cfg.TTAVoteThreshold {
			return result
		}
	} else {
		result.TTAVotes = ttaTotal
	}

	// Stage 5: pixel NCC.
	if cfg.UsePixelCorrelation && result.BestTemplateIdx >= 0 {
		ncc := computeNCC(probe, templates[result.BestTemplateIdx].Image)
		result.BestNCC = ncc
		if ncc < cfg.PixelCorrThreshold {
			return result
		}
	} else {
		result.BestNCC = 1.0
	}

	result.Matched = true
	return result
}

// ttaVotes evaluates the identity probe plus the 10 augmentations, casting a
// vote for each that matches any template below cfg.NNThreshold, with
// early-exit on first matching template per augmentation.
func ttaVotes(w *weights.Weights, cfg Config, probe Image, templates TemplateSet) int {
	votes := 0
	if anyTemplateMatches(w, cfg, probe, templates) {
		votes++
	}
	for _, a := range rotationAngles {
		aug := rotateImage(probe, a)
		if anyTemplateMatches(w, cfg, aug, templates) {
			votes++
		}
	}
	for _, s := range shiftOffsets {
		aug := shiftImage(probe, s[0], s[1])
		if anyTemplateMatches(w, cfg, aug, templates) {
			votes++
		}
	}
	for _, b := range brightnessDeltas {
		aug := adjustBrightness(probe, b)
		if anyTemplateMatches(w, cfg, aug, templates) {
			votes++
		}
	}
	return votes
}

func anyTemplateMatches(w *weights.Weights, cfg Config, img Image, templates TemplateSet) bool {
	emb := Embed(w, img)
	for _, t := range templates {
		if EmbeddingDistance(emb, t.Embedding) < cfg.NNThreshold {
			return true
		}
	}
	return false
}

// rotateImage rotates img by degrees around its center using inverse
// mapping with nearest-neighbor sampling, clamping out-of-bounds source
// coordinates to the nearest edge.
func rotateImage(img Image, degrees float32) Image {
	theta := float64(degrees) * math.Pi / 180
	cosT, sinT := math.Cos(theta), math.Sin(theta)
	cy := float64(ImageHeight-1) / 2
	cx := float64(ImageWidth-1) / 2

	var out Image
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			dy := float64(y) - cy
			dx := float64(x) - cx
			sx := dx*cosT + dy*sinT + cx
			sy := -dx*sinT + dy*cosT + cy

			ix := int(sx + 0.5)
			iy := int(sy + 0.5)
			if ix < 0 || ix >= ImageWidth || iy < 0 || iy >= ImageHeight {
				ix = clampInt(ix, 0, ImageWidth-1)
				iy = clampInt(iy, 0, ImageHeight-1)
			}
			out[y*ImageWidth+x] = img[iy*ImageWidth+ix]
		}
	}
	return out
}

// shiftImage translates img by (dx,dy) pixels with clamp-to-edge sampling.
func shiftImage(img Image, dx, dy int) Image {
	var out Image
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			sx := clampInt(x-dx, 0, ImageWidth-1)
			sy := clampInt(y-dy, 0, ImageHeight-1)
			out[y*ImageWidth+x] = img[sy*ImageWidth+sx]
		}
	}
	return out
}

// adjustBrightness adds delta to every pixel and clamps to [0,1].
func adjustBrightness(img Image, delta float32) Image {
	var out Image
	for i, v := range img {
		v += delta
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// computeNCC returns the normalized cross-correlation between two images:
// mean-subtract, divide by std (epsilon 1e-8 before sqrt), dot the
// deviations and normalize by N*std1*std2.
func computeNCC(a, b Image) float32 {
	var sumA, sumB float64
	for i := range a {
		sumA += float64(a[i])
		sumB += float64(b[i])
	}
	n := float64(ImageSize)
	meanA := sumA / n
	meanB := sumB / n

	var varA, varB float64
	for i := range a {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		varA += da * da
		varB += db * db
	}
	stdA := math.Sqrt(varA/n + 1e-8)
	stdB := math.Sqrt(varB/n + 1e-8)

	var corr float64
	for i := range a {
		d1 := float64(a[i]) - meanA
		d2 := float64(b[i]) - meanB
		corr += d1 * d2
	}
	return float32(corr / (n * stdA * stdB))
}
