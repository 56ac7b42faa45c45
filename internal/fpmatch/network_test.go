package fpmatch

import (
	"math"
	"math/rand"
	"testing"

	"github.com/your-org/ft9362/internal/fpmatch/weights"
)

func randomWeights(seed int64) *weights.Weights {
	r := rand.New(rand.NewSource(seed))
	w := weights.Zero()
	fill := func(s []float32) {
		for i := range s {
			s[i] = float32(r.NormFloat64() * 0.1)
		}
	}
	for _, c := range []*weights.Conv{&w.Conv1, &w.Conv2, &w.Conv3, &w.Conv4} {
		for oc := range c.W {
			for ic := range c.W[oc] {
				for ky := 0; ky < 3; ky++ {
					fill(c.W[oc][ic][ky][:])
				}
			}
		}
		fill(c.B)
	}
	for _, f := range []*weights.FC{&w.FC1, &w.FC2} {
		for o := range f.W {
			fill(f.W[o])
		}
		fill(f.B)
	}
	return w
}

func randomImage(seed int64) Image {
	r := rand.New(rand.NewSource(seed))
	var img Image
	for i := range img {
		img[i] = float32(r.Float64())
	}
	return img
}

func TestEmbedIsL2Normalized(t *testing.T) {
	w := randomWeights(1)
	img := randomImage(2)
	emb := Embed(w, img)
	var sumSq float64
	for _, v := range emb {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm < 1-1e-3 || norm > 1+1e-3 {
		t.Fatalf("L2 norm = %v, want ~1", norm)
	}
}

func TestEmbedIsDeterministic(t *testing.T) {
	w := randomWeights(3)
	img := randomImage(4)
	a := Embed(w, img)
	b := Embed(w, img)
	if a != b {
		t.Fatal("Embed is not deterministic across repeated calls")
	}
}

func TestEmbeddingDistanceBoundsAndSelf(t *testing.T) {
	w := randomWeights(5)
	img := randomImage(6)
	emb := Embed(w, img)
	if d := EmbeddingDistance(emb, emb); d != 0 {
		t.Fatalf("self-distance = %v, want 0", d)
	}
	other := Embed(w, randomImage(7))
	d := EmbeddingDistance(emb, other)
	if d < 0 || d > 2+1e-3 {
		t.Fatalf("distance = %v, want in [0,2]", d)
	}
}

func TestEmbedZeroWeightsProducesFiniteEmbedding(t *testing.T) {
	w := weights.Zero()
	img := randomImage(8)
	emb := Embed(w, img)
	for _, v := range emb {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("embedding contains non-finite value %v", v)
		}
	}
}
