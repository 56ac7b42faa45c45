package fpmatch

import "sort"

// DecodeRaw extracts the 3040-sample image window from a raw USB frame,
// median-filters it, percentile-stretches it and inverts it to a normalized
// image in [0,1]. It never rejects; the caller must ensure frame is at least
// MinRawFrameBytes long (a precondition, not a runtime check).
func DecodeRaw(frame []byte) Image {
	raw := extractSamples(frame)
	filtered := medianFilter3x3(raw)
	return percentileStretchInvert(filtered)
}

// extractSamples reads the ImageSize little-endian int16 samples starting at
// rawHeader + rawImageOffsetSamples*2, as plain floats.
func extractSamples(frame []byte) [ImageSize]float32 {
	var out [ImageSize]float32
	base := rawHeader + rawImageOffsetSamples*2
	for i := 0; i < ImageSize; i++ {
		lo := frame[base+i*2]
		hi := frame[base+i*2+1]
		v := int16(uint16(lo) | uint16(hi)<<8)
		out[i] = float32(v)
	}
	return out
}

// medianFilter3x3 applies a clamp-to-edge centered 9-tap median filter. At
// the border, the window shrinks to the in-bounds subset and the median is
// taken over that smaller window (not a clamped-coordinate 3x3 window).
func medianFilter3x3(img [ImageSize]float32) [ImageSize]float32 {
	var out [ImageSize]float32
	window := make([]float32, 0, 9)
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= ImageHeight {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= ImageWidth {
						continue
					}
					window = append(window, img[ny*ImageWidth+nx])
				}
			}
			out[y*ImageWidth+x] = medianOf(window)
		}
	}
	return out
}

// medianOf returns the middle element of an odd- or even-length slice by
// sorting a copy; for an even-length window the upper-middle element (index
// len/2) is used, matching an insertion-sort-to-middle-index selection.
func medianOf(vals []float32) float32 {
	sorted := make([]float32, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}

// percentile computes the p-th percentile (0..100) of vals by linear
// interpolation between order statistics: idx = p*(n-1)/100.
func percentile(sorted []float32, p float64) float32 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1) / 100
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := float32(idx - float64(lo))
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func sortedCopy(img [ImageSize]float32) []float32 {
	s := make([]float32, ImageSize)
	copy(s, img[:])
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

// percentileStretchInvert stretches the filtered image to [0,1] using its
// 5th/95th percentiles, then inverts so ridges (originally low raw value)
// map near 1.
func percentileStretchInvert(filtered [ImageSize]float32) Image {
	sorted := sortedCopy(filtered)
	p5 := percentile(sorted, 5)
	p95 := percentile(sorted, 95)
	rng := p95 - p5 + 1e-8

	var out Image
	for i, v := range filtered {
		s := (v - p5) / rng
		if s < 0 {
			s = 0
		} else if s > 1 {
			s = 1
		}
		out[i] = 1 - s
	}
	return out
}
