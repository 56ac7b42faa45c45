package fpmatch

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func makeRawFrame(seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	frame := make([]byte, MinRawFrameBytes)
	base := rawHeader + rawImageOffsetSamples*2
	for i := 0; i < ImageSize; i++ {
		v := int16(r.Intn(4096) - 2048)
		binary.LittleEndian.PutUint16(frame[base+i*2:], uint16(v))
	}
	return frame
}

func TestDecodeRawProducesImageInRange(t *testing.T) {
	frame := makeRawFrame(1)
	img := DecodeRaw(frame)
	for i, v := range img {
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d out of [0,1]: %v", i, v)
		}
	}
}

func TestDecodeRawConstantInputStretchesWithoutNaN(t *testing.T) {
	frame := make([]byte, MinRawFrameBytes)
	img := DecodeRaw(frame)
	for i, v := range img {
		if v != v { // NaN check
			t.Fatalf("pixel %d is NaN", i)
		}
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d out of [0,1]: %v", i, v)
		}
	}
}

func TestMedianFilterClampsBorderWindow(t *testing.T) {
	var img [ImageSize]float32
	img[0] = 100
	out := medianFilter3x3(img)
	if out[0] == 100 {
		t.Fatalf("corner pixel should be smoothed by its 2x2 window, got %v", out[0])
	}
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float32{0, 10, 20, 30, 40}
	got := percentile(sorted, 50)
	if got != 20 {
		t.Fatalf("median of 5 elems = %v, want 20", got)
	}
	got = percentile(sorted, 25)
	if got != 10 {
		t.Fatalf("p25 = %v, want 10", got)
	}
}
