// Package capture implements the enroll/verify/identify session state
// machines that sit between the USB transport (out of scope per spec.md §6)
// and fpmatch. It reproduces the driver's enroll/verify action model
// (original_source/driver/focaltech-0752.c) as addressable, concurrency-safe
// sessions instead of a single-device callback chain.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/your-org/ft9362/internal/config"
	"github.com/your-org/ft9362/internal/fpmatch"
	"github.com/your-org/ft9362/internal/fpmatch/weights"
	"github.com/your-org/ft9362/internal/observability"
)

// ConfigFromYAML converts the YAML-configurable surface (float64, so it
// unmarshals cleanly regardless of how the value was written) into the
// fpmatch.Config the verifier actually takes.
func ConfigFromYAML(m config.MatcherConfig) fpmatch.Config {
	return fpmatch.Config{
		NNThreshold:          float32(m.NNThreshold),
		OrientationThreshold: float32(m.OrientationThreshold),
		PixelCorrThreshold:   float32(m.PixelCorrThreshold),
		TTAVoteThreshold:     float32(m.TTAVoteThreshold),
		MinAgreeingTemplates: m.MinAgreeingTemplates,
		UseOrientationCheck:  m.Bool(m.UseOrientationCheck),
		UseTTA:               m.Bool(m.UseTTA),
		UsePixelCorrelation:  m.Bool(m.UsePixelCorrelation),
	}
}

// Matcher bundles the loaded network weights and verifier configuration
// every session needs; it is built once at service start and shared
// read-only across sessions (same ownership rule as §3's weights blob).
type Matcher struct {
	Weights *weights.Weights
	Config  fpmatch.Config
}

// EnrollSession accumulates accepted captures until EnrollStages templates
// have been collected (NR_ENROLL_STAGES=15 in the driver), then exposes the
// finished template set. Quality-rejected frames don't count against the
// stage count; the caller simply submits another capture.
type EnrollSession struct {
	mu           sync.Mutex
	matcher      *Matcher
	stagesTotal  int
	templates    fpmatch.TemplateSet
	lastRejected fpmatch.QualityFailure
}

func NewEnrollSession(m *Matcher, stagesTotal int) *EnrollSession {
	if stagesTotal <= 0 {
		stagesTotal = fpmatch.EnrollStages
	}
	return &EnrollSession{matcher: m, stagesTotal: stagesTotal}
}

// Feed submits one normalized capture. done is true once stagesTotal
// templates have been accepted; the session must not be fed further after
// that. ok is false when this particular capture was quality-rejected (the
// session keeps accepting further captures in that case).
func (s *EnrollSession) Feed(img fpmatch.Image) (ok, done bool, fail fpmatch.QualityFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, accepted, failure := fpmatch.BuildTemplate(s.matcher.Weights, img)
	if !accepted {
		s.lastRejected = failure
		observability.QualityRejections.WithLabelValues(string(failure)).Inc()
		return false, false, failure
	}

	s.templates = append(s.templates, tpl)
	slog.Debug("enroll capture accepted", "stage", len(s.templates), "of", s.stagesTotal)
	return true, len(s.templates) >= s.stagesTotal, fpmatch.QualityFailNone
}

// StagesDone reports how many templates have been accepted so far.
func (s *EnrollSession) StagesDone() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.templates)
}

// Finish returns the completed template set. It errors if the session has
// not yet reached stagesTotal accepted captures.
func (s *EnrollSession) Finish() (fpmatch.TemplateSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.templates) < s.stagesTotal {
		return nil, fmt.Errorf("capture: enrollment incomplete: %d/%d stages", len(s.templates), s.stagesTotal)
	}
	out := make(fpmatch.TemplateSet, len(s.templates))
	copy(out, s.templates)
	return out, nil
}

// VerifyOne runs a single probe capture against one finger's template set,
// the daemon's `dev_verify` equivalent.
func VerifyOne(ctx context.Context, m *Matcher, probe fpmatch.Image, templates fpmatch.TemplateSet) (fpmatch.Result, error) {
	if len(templates) == 0 {
		return fpmatch.Result{}, fpmatch.ErrEmptyTemplateSet
	}
	result := fpmatch.Verify(m.Weights, m.Config, probe, templates)
	outcome := "rejected"
	if result.Matched {
		outcome = "matched"
	}
	observability.VerifyOutcomes.WithLabelValues(outcome).Inc()
	return result, nil
}

// IdentifyCandidate is one finger's template set considered by Identify, in
// the priority order the caller wants them evaluated (e.g. nearest-first
// from a pgvector ANN shortlist).
type IdentifyCandidate struct {
	FingerID  string
	Templates fpmatch.TemplateSet
}

// Identify runs VerifyOne across candidates in order and returns the first
// match, the daemon's `dev_identify`-equivalent loop
// (original_source/driver/focaltech-0752.c). It does not evaluate
// candidates after the first match.
func Identify(ctx context.Context, m *Matcher, probe fpmatch.Image, candidates []IdentifyCandidate) (fingerID string, result fpmatch.Result, found bool) {
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return "", fpmatch.Result{}, false
		default:
		}
		r, err := VerifyOne(ctx, m, probe, c.Templates)
		if err != nil {
			continue
		}
		if r.Matched {
			return c.FingerID, r, true
		}
	}
	return "", fpmatch.Result{}, false
}
