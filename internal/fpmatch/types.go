// Package fpmatch implements the FT9362 fingerprint matching core: raw frame
// decoding, quality gating, embedding extraction and multi-stage verification
// for a single capacitive sensor frame.
package fpmatch

import "errors"

const (
	// ImageHeight and ImageWidth are the fixed normalized-image dimensions
	// the sensor produces and every downstream stage assumes.
	ImageHeight = 76
	ImageWidth  = 40
	ImageSize   = ImageHeight * ImageWidth // 3040

	// EmbeddingDim is the fixed output width of the embedding network.
	EmbeddingDim = 64

	// EnrollStages is the number of accepted captures an enrollment
	// session collects before a finger's template set is complete.
	EnrollStages = 15

	// rawHeader is the byte offset into a raw sensor frame before the
	// calibration/image payload begins.
	rawHeader = 6
	// rawImageOffsetSamples skips the leading calibration samples; only
	// the ImageSize samples starting here are image data.
	rawImageOffsetSamples = ImageSize
	// MinRawFrameBytes is the minimum byte length decode_raw requires.
	MinRawFrameBytes = rawHeader + (rawImageOffsetSamples+ImageSize)*2
)

// Image is a normalized 76x40 fingerprint frame, row-major, values in [0,1].
type Image [ImageSize]float32

// Embedding is an L2-normalized 64-dimensional biometric signature.
type Embedding [EmbeddingDim]float32

// Template bundles everything the verifier needs about one accepted capture.
type Template struct {
	Embedding   Embedding
	Image       Image
	Orientation float32 // degrees, signed, 180-periodic
}

// TemplateSet is an ordered, insertion-order sequence of templates captured
// for one enrolled finger.
type TemplateSet []Template

// Config holds the verifier's thresholds and feature toggles. The zero value
// is NOT valid; use DefaultConfig.
type Config struct {
	NNThreshold           float32
	OrientationThreshold  float32
	PixelCorrThreshold    float32
	TTAVoteThreshold      float32
	MinAgreeingTemplates  int
	UseOrientationCheck   bool
	UseTTA                bool
	UsePixelCorrelation   bool
}

// DefaultConfig returns the verifier configuration the source system ships
// with: all three feature toggles on.
func DefaultConfig() Config {
	return Config{
		NNThreshold:          0.20,
		OrientationThreshold: 35,
		PixelCorrThreshold:   0.01,
		TTAVoteThreshold:     0.75,
		MinAgreeingTemplates: 3,
		UseOrientationCheck:  true,
		UseTTA:               true,
		UsePixelCorrelation:  true,
	}
}

// ttaTotal is fixed regardless of which augmentations actually run: an
// identity vote plus four rotations, four shifts and two brightness
// offsets (1+4+4+2=11).
const ttaTotal = 11

// Result is the fully populated outcome of Verify, even on rejection.
type Result struct {
	Matched                 bool
	BestDistance            float32
	BestTemplateIdx         int
	TemplatesBelowThreshold int
	TTAVotes                int
	TTATotal                int
	BestNCC                 float32
	ProbeOrientation        float32
	MinOrientationDiff      float32
}

// Error taxonomy. All are local, non-retriable within the core; it never
// panics on valid-shape input.
var (
	ErrQualityRejected  = errors.New("fpmatch: image rejected by quality gate")
	ErrEmptyTemplateSet = errors.New("fpmatch: verify called with empty template set")
	ErrNullInput        = errors.New("fpmatch: nil input")
	ErrCodecShortBuffer = errors.New("fpmatch: buffer shorter than required")
	ErrCodecBadMagic    = errors.New("fpmatch: bad magic")
	ErrCodecBadVersion  = errors.New("fpmatch: unsupported version")
	ErrCodecSizeMismatch = errors.New("fpmatch: template_size mismatch")
)

// QualityFailure names which of the five quality criteria rejected an image,
// for logging; it is not part of the core's error taxonomy proper.
type QualityFailure string

const (
	QualityFailNone        QualityFailure = ""
	QualityFailContrast    QualityFailure = "contrast"
	QualityFailVariance    QualityFailure = "variance"
	QualityFailCenterStd   QualityFailure = "center_std"
	QualityFailGabor       QualityFailure = "gabor"
	QualityFailCoherence   QualityFailure = "coherence"
)
