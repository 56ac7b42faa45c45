package fpmatch

import "testing"

func TestOrientationDiffPeriodicity(t *testing.T) {
	cases := []struct{ a, b float32 }{
		{10, 10 + 180},
		{-20, -20 - 360},
		{5, 5 + 180*3},
	}
	for _, c := range cases {
		d := OrientationDiff(c.a, c.b)
		if d > 1e-3 {
			t.Fatalf("OrientationDiff(%v,%v) = %v, want ~0", c.a, c.b, d)
		}
	}
}

func TestOrientationDiffRange(t *testing.T) {
	for a := float32(-200); a <= 200; a += 17 {
		for b := float32(-200); b <= 200; b += 23 {
			d := OrientationDiff(a, b)
			if d < 0 || d > 90 {
				t.Fatalf("OrientationDiff(%v,%v) = %v out of [0,90]", a, b, d)
			}
		}
	}
}

func TestComputeOrientationOnRidgePattern(t *testing.T) {
	// Vertical stripes -> strong horizontal gradient -> orientation near 0.
	var img Image
	for y := 0; y < ImageHeight; y++ {
		for x := 0; x < ImageWidth; x++ {
			v := float32(0)
			if (x/3)%2 == 0 {
				v = 1
			}
			img[y*ImageWidth+x] = v
		}
	}
	theta := ComputeOrientation(img)
	diff := OrientationDiff(theta, 0)
	if diff > 20 {
		t.Fatalf("expected orientation near 0 for vertical stripes, got %v (diff %v)", theta, diff)
	}
}
