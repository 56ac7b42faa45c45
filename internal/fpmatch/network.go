package fpmatch

import (
	"math"

	"github.com/your-org/ft9362/internal/fpmatch/weights"
)

// featureMap is a C x H x W activation tensor stored row-major per channel.
type featureMap struct {
	c, h, w int
	data    []float32
}

func newFeatureMap(c, h, w int) featureMap {
	return featureMap{c: c, h: h, w: w, data: make([]float32, c*h*w)}
}

func (f featureMap) at(ch, y, x int) float32 {
	return f.data[(ch*f.h+y)*f.w+x]
}

func (f featureMap) set(ch, y, x int, v float32) {
	f.data[(ch*f.h+y)*f.w+x] = v
}

// Embed runs the fixed 4-conv + 2-FC network of §4.4 on a normalized image
// and returns its L2-normalized 64-D embedding. The forward pass is pure
// single-precision arithmetic with no nondeterministic reductions, so it is
// bit-identical across runs on a given target.
func Embed(w *weights.Weights, img Image) Embedding {
	in := featureMap{c: 1, h: ImageHeight, w: ImageWidth, data: img[:]}

	x1 := convBNReLUPool(in, w.Conv1)  // 16x38x20
	x2 := convBNReLUPool(x1, w.Conv2)  // 32x19x10
	x3 := convBNReLUPool(x2, w.Conv3)  // 64x9x5
	x4 := convBNReLUPool(x3, w.Conv4)  // 128x4x2

	flat := x4.data // already row-major C,H,W = 1024 elements

	h1 := fcReLU(flat, w.FC1)
	h2 := fc(h1, w.FC2)

	return l2Normalize(h2)
}

// convBNReLUPool applies a 3x3 stride-1 pad-1 convolution, ReLU, then a 2x2
// stride-2 max pool. Pool output size uses truncating integer division of
// the pre-pool dimension, so an odd trailing row or column is dropped (this
// happens at Conv3, 19x10 -> 9x5, and Conv4, 9x5 -> 4x2).
func convBNReLUPool(in featureMap, w weights.Conv) featureMap {
	conv := newFeatureMap(w.OutC, in.h, in.w)
	for oc := 0; oc < w.OutC; oc++ {
		bias := w.B[oc]
		for y := 0; y < in.h; y++ {
			for x := 0; x < in.w; x++ {
				sum := bias
				for ic := 0; ic < w.InC; ic++ {
					for ky := -1; ky <= 1; ky++ {
						sy := y + ky
						if sy < 0 || sy >= in.h {
							continue
						}
						for kx := -1; kx <= 1; kx++ {
							sx := x + kx
							if sx < 0 || sx >= in.w {
								continue
							}
							sum += in.at(ic, sy, sx) * w.W[oc][ic][ky+1][kx+1]
						}
					}
				}
				if sum < 0 {
					sum = 0
				}
				conv.set(oc, y, x, sum)
			}
		}
	}

	outH := conv.h / 2
	outW := conv.w / 2
	pooled := newFeatureMap(w.OutC, outH, outW)
	for oc := 0; oc < w.OutC; oc++ {
		for y := 0; y < outH; y++ {
			for x := 0; x < outW; x++ {
				a := conv.at(oc, 2*y, 2*x)
				b := conv.at(oc, 2*y, 2*x+1)
				c := conv.at(oc, 2*y+1, 2*x)
				d := conv.at(oc, 2*y+1, 2*x+1)
				m := a
				if b > m {
					m = b
				}
				if c > m {
					m = c
				}
				if d > m {
					m = d
				}
				pooled.set(oc, y, x, m)
			}
		}
	}
	return pooled
}

func fcReLU(in []float32, f weights.FC) []float32 {
	out := fc(in, f)
	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}
	return out
}

func fc(in []float32, f weights.FC) []float32 {
	out := make([]float32, f.Out)
	for o := 0; o < f.Out; o++ {
		sum := f.B[o]
		row := f.W[o]
		for i := 0; i < f.In; i++ {
			sum += in[i] * row[i]
		}
		out[o] = sum
	}
	return out
}

// l2Normalize divides v by its L2 norm, with epsilon 1e-8 inside the sqrt.
func l2Normalize(v []float32) Embedding {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sumSq + 1e-8))
	var out Embedding
	for i := range out {
		out[i] = v[i] / norm
	}
	return out
}

// EmbeddingDistance is the plain Euclidean distance between two embeddings.
func EmbeddingDistance(a, b Embedding) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
