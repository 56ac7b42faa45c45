package fpmatch

import (
	"testing"

	"github.com/your-org/ft9362/internal/fpmatch/weights"
)

func TestBuildTemplateRejectsLowQualityImage(t *testing.T) {
	w := weights.Zero()
	var flat Image
	for i := range flat {
		flat[i] = 0.5
	}
	_, ok, fail := BuildTemplate(w, flat)
	if ok {
		t.Fatal("expected rejection for flat image")
	}
	if fail == QualityFailNone {
		t.Fatal("expected a populated failure reason")
	}
}

func TestBuildTemplatePopulatesAllFields(t *testing.T) {
	w := weights.Zero()
	img := ridgeLikeImage(99)
	tpl, ok, fail := BuildTemplate(w, img)
	if !ok {
		t.Fatalf("expected acceptance, got failure %v", fail)
	}
	if tpl.Image != img {
		t.Fatal("template image should equal input image")
	}
	if tpl.Embedding != Embed(w, img) {
		t.Fatal("template embedding should equal Embed(image)")
	}
	if tpl.Orientation != ComputeOrientation(img) {
		t.Fatal("template orientation should equal ComputeOrientation(image)")
	}
}
