package fpmatch

import (
	"math"
	"testing"

	"github.com/your-org/ft9362/internal/fpmatch/weights"
)

// zeroEmbeddingWeights produces the zero embedding for every input image
// (every weight is zero, so every convolution and FC layer collapses to its
// zero bias regardless of img), which makes embedding distance between any
// two images exactly 0 — useful for exercising verifier stage ordering
// without depending on a trained network.
func zeroEmbeddingWeights() *weights.Weights {
	return weights.Zero()
}

func TestVerifyEmptyTemplateSet(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()
	probe := randomImage(100)

	result := Verify(w, cfg, probe, nil)

	if result.Matched {
		t.Fatal("expected no match on empty template set")
	}
	if !math.IsInf(float64(result.BestDistance), 1) {
		t.Fatalf("best_distance = %v, want +Inf", result.BestDistance)
	}
	if result.BestTemplateIdx != -1 {
		t.Fatalf("best_template_idx = %v, want -1", result.BestTemplateIdx)
	}
	if result.TTATotal != 11 {
		t.Fatalf("tta_total = %v, want 11", result.TTATotal)
	}
}

func TestVerifyOrientationGateRejects(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()

	enrolled := ridgeLikeImage(1) // near-vertical ridges, orientation ~0
	tpl := Template{
		Embedding:   Embed(w, enrolled),
		Image:       enrolled,
		Orientation: 0,
	}

	// Construct a probe whose computed orientation is far from 0 by using
	// horizontal stripes (~90 degrees away on the 180-periodic axis).
	var probe Image
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			v := float32(0)
			if (y/3)%2 == 0 {
				v = 1
			}
			probe[y*ImageWidth+x] = v
		}
	}

	result := Verify(w, cfg, probe, TemplateSet{tpl})
	if result.Matched {
		t.Fatal("expected orientation pre-filter to reject")
	}
	if result.MinOrientationDiff <= cfg.OrientationThreshold {
		t.Fatalf("min_orientation_diff = %v, want > %v", result.MinOrientationDiff, cfg.OrientationThreshold)
	}
}

func TestVerifyQuorumReject(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()
	cfg.UseOrientationCheck = false
	cfg.MinAgreeingTemplates = 3

	probe := randomImage(9)
	templates := TemplateSet{
		{Embedding: Embed(w, randomImage(10))},
		{Embedding: Embed(w, randomImage(11))},
	}

	result := Verify(w, cfg, probe, templates)
	if result.Matched {
		t.Fatal("expected quorum rejection with only 2 templates and quorum 3")
	}
	if result.TemplatesBelowThreshold != 2 {
		t.Fatalf("templates_below_threshold = %v, want 2", result.TemplatesBelowThreshold)
	}
	if result.BestDistance >= cfg.NNThreshold {
		t.Fatalf("best_distance = %v, want < %v (stage 2 should have passed)", result.BestDistance, cfg.NNThreshold)
	}
}

func TestVerifyNNRejectReportsZeroBelowThreshold(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()
	cfg.UseOrientationCheck = false
	cfg.NNThreshold = -1 // unreachable: every distance is >= 0

	probe := randomImage(12)
	templates := TemplateSet{{Embedding: Embed(w, randomImage(13))}}

	result := Verify(w, cfg, probe, templates)
	if result.Matched {
		t.Fatal("expected NN-scan rejection")
	}
	if result.TemplatesBelowThreshold != 0 {
		t.Fatalf("templates_below_threshold = %v, want 0", result.TemplatesBelowThreshold)
	}
}

func TestVerifyDisabledTogglesSkipStages(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()
	cfg.UseOrientationCheck = false
	cfg.UseTTA = false
	cfg.UsePixelCorrelation = false
	cfg.MinAgreeingTemplates = 1

	probe := randomImage(14)
	var probeImg Image
	copy(probeImg[:], probe[:])
	tpl := Template{Embedding: Embed(w, randomImage(14)), Image: probeImg}

	result := Verify(w, cfg, probe, TemplateSet{tpl})
	if !result.Matched {
		t.Fatalf("expected match with all optional stages disabled, got %+v", result)
	}
	if result.TTAVotes != result.TTATotal {
		t.Fatalf("tta_votes = %v, want %v when TTA disabled", result.TTAVotes, result.TTATotal)
	}
	if result.BestNCC != 1.0 {
		t.Fatalf("best_ncc = %v, want 1.0 when pixel correlation disabled", result.BestNCC)
	}
}

func TestVerifyDeterministic(t *testing.T) {
	w := zeroEmbeddingWeights()
	cfg := DefaultConfig()
	probe := randomImage(15)
	templates := TemplateSet{
		{Embedding: Embed(w, randomImage(16)), Orientation: 0},
		{Embedding: Embed(w, randomImage(17)), Orientation: 0},
	}

	a := Verify(w, cfg, probe, templates)
	b := Verify(w, cfg, probe, templates)
	if a != b {
		t.Fatalf("Verify is not deterministic: %+v vs %+v", a, b)
	}
}

func TestRotateShiftBrightnessStayInRange(t *testing.T) {
	img := ridgeLikeImage(20)
	rot := rotateImage(img, 10)
	shift := shiftImage(img, 2, 0)
	bright := adjustBrightness(img, 0.05)
	for name, out := range map[string]Image{"rotate": rot, "shift": shift, "bright": bright} {
		for i, v := range out {
			if v < 0 || v > 1 {
				t.Fatalf("%s pixel %d out of range: %v", name, i, v)
			}
		}
	}
}

func TestComputeNCCSelfIsOne(t *testing.T) {
	img := ridgeLikeImage(21)
	ncc := computeNCC(img, img)
	if ncc < 0.99 || ncc > 1.01 {
		t.Fatalf("self-NCC = %v, want ~1.0", ncc)
	}
}
