package fpmatch

import (
	"math/rand"
	"testing"
)

func TestCheckQualityRejectsConstantImage(t *testing.T) {
	var img Image
	for i := range img {
		img[i] = 0.5
	}
	ok, fail := CheckQuality(img)
	if ok {
		t.Fatal("constant image should fail quality gate")
	}
	if fail != QualityFailContrast && fail != QualityFailVariance {
		t.Fatalf("expected contrast or variance rejection, got %v", fail)
	}
}

func TestCheckQualityRejectsZeroImage(t *testing.T) {
	var img Image
	ok, fail := CheckQuality(img)
	if ok {
		t.Fatal("all-zero image should fail quality gate")
	}
	if fail != QualityFailContrast && fail != QualityFailVariance {
		t.Fatalf("expected contrast or variance rejection, got %v", fail)
	}
}

func ridgeLikeImage(seed int64) Image {
	r := rand.New(rand.NewSource(seed))
	var img Image
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			base := float32(0)
			if (x/3)%2 == 0 {
				base = 1
			}
			noise := float32(r.Float64()*0.08 - 0.04)
			v := base + noise
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img[y*ImageWidth+x] = v
		}
	}
	return img
}

func TestGaborInitIsIdempotent(t *testing.T) {
	img := ridgeLikeImage(42)
	initGaborKernels()
	first := gaborKernels
	for i := 0; i < 4; i++ {
		initGaborKernels()
	}
	if gaborKernels != first {
		t.Fatal("gabor kernels changed after repeated init")
	}
	_, _ = CheckQuality(img)
	if gaborKernels != first {
		t.Fatal("gabor kernels mutated by CheckQuality")
	}
}

func TestCheckQualityConcurrentInitIsConsistent(t *testing.T) {
	img := ridgeLikeImage(7)
	done := make(chan QualityFailure, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, fail := CheckQuality(img)
			done <- fail
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		if got := <-done; got != first {
			t.Fatalf("concurrent CheckQuality disagreed: %v vs %v", got, first)
		}
	}
}
