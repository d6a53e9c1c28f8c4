package parlay

import (
	"math"
	"sort"
	"strings"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

const minMarginal = 1e-12

// FusionEngine fuses evidence sources into one posterior with sequential Bayesian updates,
// adjusts it for game context and derives the accept/flag threshold.
type FusionEngine struct {
	cfg  config.ConfidenceConfig
	rank map[string]int
}

func NewFusionEngine(cfg config.ConfidenceConfig) *FusionEngine {
	rank := make(map[string]int, len(cfg.SourceOrder))
	for i, t := range cfg.SourceOrder {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := rank[t]; !dup {
			rank[t] = i
		}
	}
	return &FusionEngine{cfg: cfg, rank: rank}
}

// Assess runs the fusion for one request.
func (e *FusionEngine) Assess(sources []models.EvidenceSource, gc models.GameContext) ConfidenceAssessment {
	ordered := e.order(sources)

	posterior := clamp(e.cfg.InitialPosterior, 0, 1)
	trace := make([]TraceStep, 0, len(ordered))
	var relSum float64
	for _, s := range ordered {
		conf, rel := sanitize(s.RawConfidence, 0.5), sanitize(s.Reliability, 0)
		relSum += rel

		adjusted := rel*conf + (1-rel)*e.prior(s.SourceType)
		likelihood := sigmoid(e.cfg.LikelihoodSteepness * (adjusted - 0.5))
		unnormalized := likelihood * posterior
		marginal := math.Max(unnormalized+(1-likelihood)*(1-posterior), minMarginal)
		next := clamp(unnormalized/marginal, 0, 1)

		trace = append(trace, TraceStep{
			SourceType:      s.SourceType,
			Adjusted:        adjusted,
			Likelihood:      likelihood,
			PosteriorBefore: posterior,
			PosteriorAfter:  next,
		})
		posterior = next
	}

	a := ConfidenceAssessment{
		FusedConfidence: posterior,
		Trace:           trace,
	}
	if len(ordered) == 0 {
		a.Notes = append(a.Notes, NoteInsufficientEvidence)
	} else {
		a.AverageReliability = relSum / float64(len(ordered))
	}

	a.PosteriorConfidence = clamp(posterior+e.contextAdjustment(gc), 0, 1)
	a.DynamicThreshold = e.threshold(len(ordered), a.AverageReliability, gc)
	a.ShouldFlag = a.PosteriorConfidence < a.DynamicThreshold
	return a
}

// order sorts by the configured source order; unknown types keep input order at the end.
func (e *FusionEngine) order(sources []models.EvidenceSource) []models.EvidenceSource {
	out := append([]models.EvidenceSource(nil), sources...)
	unknown := len(e.rank)
	rankOf := func(t string) int {
		if r, ok := e.rank[strings.ToLower(strings.TrimSpace(t))]; ok {
			return r
		}
		return unknown
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rankOf(out[i].SourceType) < rankOf(out[j].SourceType)
	})
	return out
}

func (e *FusionEngine) prior(sourceType string) float64 {
	if p, ok := e.cfg.Priors[strings.ToLower(strings.TrimSpace(sourceType))]; ok {
		return clamp(p, 0, 1)
	}
	return clamp(e.cfg.DefaultPrior, 0, 1)
}

func (e *FusionEngine) contextAdjustment(gc models.GameContext) float64 {
	var adj float64
	if gc.Preseason {
		adj += e.cfg.PreseasonAdjustment
	}
	if gc.Playoff {
		adj += e.cfg.PlayoffAdjustment
	}
	if gc.BackToBack {
		adj += e.cfg.BackToBackAdjustment
	}
	if gc.NationalBroadcast {
		adj += e.cfg.NationalBroadcastAdjustment
	}
	return adj
}

// threshold: base, +span when reliability is 0, -span when it is 1, then season shifts.
func (e *FusionEngine) threshold(n int, avgReliability float64, gc models.GameContext) float64 {
	t := e.cfg.BaseThreshold
	if n > 0 {
		t += (0.5 - avgReliability) * 2 * e.cfg.ReliabilityThresholdSpan
	}
	if gc.Preseason {
		t += e.cfg.PreseasonThresholdShift
	}
	if gc.Playoff {
		t += e.cfg.PlayoffThresholdShift
	}
	t = clamp(t, e.cfg.MinThreshold, e.cfg.MaxThreshold)
	return clamp(t, config.ThresholdFloor, config.ThresholdCeiling)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sanitize clamps v to [0,1]; NaN becomes def.
func sanitize(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return clamp(v, 0, 1)
}
