package fpmatch

import "github.com/your-org/ft9362/internal/fpmatch/weights"

// BuildTemplate bundles embedding + image + orientation into a template,
// iff the quality gate accepts img. If the gate rejects, ok is false and no
// template is returned.
func BuildTemplate(w *weights.Weights, img Image) (tpl Template, ok bool, fail QualityFailure) {
	accepted, failure := CheckQuality(img)
	if !accepted {
		return Template{}, false, failure
	}
	tpl = Template{
		Embedding:   Embed(w, img),
		Image:       img,
		Orientation: ComputeOrientation(img),
	}
	return tpl, true, QualityFailNone
}
