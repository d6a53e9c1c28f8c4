package parlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/metrics"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

// SnapshotSource supplies a fresh market snapshot. Implementations must be safe for concurrent use.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error)
}

// ReportNotifier receives finished reports. Calls must not block.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, r Report) error
}

// Pipeline runs compatibility, market availability and confidence fusion for a request.
// It is safe for concurrent use.
type Pipeline struct {
	compat *CompatibilityValidator
	market *MarketValidator
	fusion *FusionEngine

	source           SnapshotSource
	fetchTimeout     time.Duration
	batchConcurrency int
	notifier         ReportNotifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier attaches a notifier for finished reports.
func WithNotifier(n ReportNotifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithFetchTimeout bounds each snapshot fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.fetchTimeout = d }
}

func NewPipeline(cfg config.EngineConfig, table *rules.Table, source SnapshotSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		compat:           NewCompatibilityValidator(table, cfg),
		market:           NewMarketValidator(cfg),
		fusion:           NewFusionEngine(cfg.Confidence),
		source:           source,
		batchConcurrency: cfg.BatchConcurrency,
	}
	if p.batchConcurrency <= 0 {
		p.batchConcurrency = 1
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rules returns the rule table in use.
func (p *Pipeline) Rules() *rules.Table {
	return p.compat.Table()
}

type snapshotFunc func(ctx context.Context) (*models.MarketSnapshot, error)

// Validate runs one request, fetching a fresh snapshot if the legs are compatible.
func (p *Pipeline) Validate(ctx context.Context, req Request) Report {
	return p.run(ctx, req, p.fetchSnapshot)
}

// ValidateWithSnapshot runs one request against an already fetched snapshot.
func (p *Pipeline) ValidateWithSnapshot(ctx context.Context, snap *models.MarketSnapshot, req Request) Report {
	return p.run(ctx, req, func(context.Context) (*models.MarketSnapshot, error) { return snap, nil })
}

// ValidateBatch validates candidates concurrently against one shared snapshot.
// The snapshot is fetched at most once and only if some candidate needs it.
// Reports are returned in input order.
func (p *Pipeline) ValidateBatch(ctx context.Context, reqs []Request) []Report {
	reports := make([]Report, len(reqs))
	if len(reqs) == 0 {
		return reports
	}

	shared := sync.OnceValues(func() (*models.MarketSnapshot, error) {
		return p.fetchSnapshot(ctx)
	})
	snap := func(context.Context) (*models.MarketSnapshot, error) { return shared() }

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchConcurrency)
	for i := range reqs {
		g.Go(func() error {
			reports[i] = p.run(gctx, reqs[i], snap)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Parlay batch validated", "count", len(reqs))
	return reports
}

func (p *Pipeline) run(ctx context.Context, req Request, snapshot snapshotFunc) Report {
	report := p.evaluate(ctx, req, snapshot)

	metrics.ReportsTotal.WithLabelValues(string(report.Status)).Inc()
	for _, v := range report.Compatibility.Violations {
		metrics.ViolationsTotal.WithLabelValues(string(v.Severity), v.RuleType).Inc()
	}
	slog.Info("Parlay validated",
		"session", report.SessionID,
		"status", report.Status,
		"legs", len(req.Legs),
		"sportsbook", req.SportsbookID,
		"tax", report.CorrelationTaxMultiplier)

	if p.notifier != nil {
		if err := p.notifier.NotifyReport(ctx, report); err != nil {
			slog.Warn("Failed to queue report notification", "session", report.SessionID, "error", err)
		}
	}
	return report
}

func (p *Pipeline) evaluate(ctx context.Context, req Request, snapshot snapshotFunc) Report {
	compat := p.compat.Validate(req.Legs, req.SportsbookID)
	report := Report{
		SessionID:                uuid.NewString(),
		Compatibility:            compat,
		CorrelationTaxMultiplier: compat.CorrelationTaxMultiplier,
	}

	if !compat.IsValid {
		report.Status = StatusRejectedIncompatible
		report.Reason = "incompatible legs: " + strings.Join(compat.BlockingRules(), ", ")
		return report
	}

	snap, err := snapshot(ctx)
	if err != nil {
		report.Status = StatusMarketUnavailable
		report.Reason = err.Error()
		return report
	}
	if snap != nil {
		report.SnapshotFetchedAt = snap.FetchedAt
	}

	outcome := p.market.Validate(req.Legs, snap, req.MinLegs)
	report.MarketOutcome = &outcome
	if !outcome.Success {
		report.Status = StatusInsufficientLegs
		report.Reason = outcome.Reason
		if !strings.HasPrefix(report.Reason, ReasonInsufficientLegs) {
			report.Reason = ReasonInsufficientLegs + ": " + report.Reason
		}
		return report
	}
	report.EffectiveOdds = outcome.TotalOdds / compat.CorrelationTaxMultiplier

	assessment := p.fusion.Assess(req.Evidence, req.Context)
	report.Confidence = &assessment
	report.IsValid = true
	if assessment.ShouldFlag {
		report.Status = StatusFlagged
		report.Reason = fmt.Sprintf("confidence %.3f below threshold %.3f", assessment.PosteriorConfidence, assessment.DynamicThreshold)
	} else {
		report.Status = StatusAccepted
	}
	return report
}

// fetchSnapshot calls the source once, bounded by the fetch timeout. No retries.
func (p *Pipeline) fetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	if p.source == nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, ErrNoSnapshotSource)
	}
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := fetchRecovered(ctx, p.source)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	metrics.SnapshotFetchSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Error("Failed to fetch market snapshot", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

// fetchRecovered turns a panicking source into an error so it ends the session
// instead of the process (batch fetches run outside net/http's recovery).
func fetchRecovered(ctx context.Context, src SnapshotSource) (snap *models.MarketSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap, err = nil, fmt.Errorf("source panicked: %v", r)
		}
	}()
	return src.FetchSnapshot(ctx)
}
