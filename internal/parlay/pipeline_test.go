package parlay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

type fakeSource struct {
	snap  *models.MarketSnapshot
	err   error
	block bool
	panic bool
	calls atomic.Int32
}

func (f *fakeSource) FetchSnapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	f.calls.Add(1)
	if f.panic {
		var offers map[string]int
		offers["G1"]++
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.snap, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []Report
}

func (n *recordingNotifier) NotifyReport(_ context.Context, r Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return nil
}

func compatibleRequest() Request {
	return Request{
		Legs: []models.ParlayLeg{
			mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
			mkLineLeg("G1", "totals", "Over", "draftkings", 1.95, 220.5),
		},
		SportsbookID: "draftkings",
		Evidence: []models.EvidenceSource{
			{SourceType: models.SourceSharpSignal, RawConfidence: 0.9, Reliability: 0.9},
		},
	}
}

func incompatibleRequest() Request {
	return Request{
		Legs: []models.ParlayLeg{
			mkLeg("G1", "h2h", "Lakers", "draftkings", 1.85),
			mkLeg("G1", "h2h", "Celtics", "draftkings", 2.0),
		},
		SportsbookID: "draftkings",
	}
}

func newTestPipeline(src SnapshotSource, opts ...Option) *Pipeline {
	return NewPipeline(testEngineConfig(), rules.Default(), src, opts...)
}

func TestPipeline_Accepted(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	r := newTestPipeline(src).Validate(context.Background(), compatibleRequest())

	assert.Equal(t, StatusAccepted, r.Status)
	assert.True(t, r.IsValid)
	assert.NotEmpty(t, r.SessionID)
	require.NotNil(t, r.MarketOutcome)
	require.NotNil(t, r.Confidence)
	assert.InDelta(t, 3.6075, r.MarketOutcome.TotalOdds, 1e-9)
	assert.InDelta(t, 3.6075, r.EffectiveOdds, 1e-9) // no soft correlations
	assert.Equal(t, testNow, r.SnapshotFetchedAt)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestPipeline_EffectiveOddsIncludesTax(t *testing.T) {
	req := Request{
		Legs: []models.ParlayLeg{
			mkLineLeg("G1", "player_points", "LeBron James Over", "fanduel", 1.8, 25.5),
			mkLeg("G1", "h2h", "Lakers", "fanduel", 1.87),
		},
		SportsbookID: "fanduel",
		Evidence:     []models.EvidenceSource{{SourceType: models.SourceSharpSignal, RawConfidence: 1, Reliability: 1}},
	}
	r := newTestPipeline(&fakeSource{snap: testSnapshot()}).Validate(context.Background(), req)

	require.Equal(t, StatusAccepted, r.Status)
	assert.InDelta(t, 1.16, r.CorrelationTaxMultiplier, 1e-12)
	assert.InDelta(t, 1.8*1.87/1.16, r.EffectiveOdds, 1e-9)
}

func TestPipeline_Flagged(t *testing.T) {
	req := compatibleRequest()
	req.Evidence = nil
	r := newTestPipeline(&fakeSource{snap: testSnapshot()}).Validate(context.Background(), req)

	assert.Equal(t, StatusFlagged, r.Status)
	assert.True(t, r.IsValid)
	require.NotNil(t, r.Confidence)
	assert.True(t, r.Confidence.ShouldFlag)
	assert.Contains(t, r.Reason, "below threshold")
}

func TestPipeline_RejectedSkipsFetch(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	r := newTestPipeline(src).Validate(context.Background(), incompatibleRequest())

	assert.Equal(t, StatusRejectedIncompatible, r.Status)
	assert.False(t, r.IsValid)
	assert.Contains(t, r.Reason, "opposing_moneylines")
	assert.Nil(t, r.MarketOutcome)
	assert.Nil(t, r.Confidence)
	assert.Zero(t, src.calls.Load())
}

func TestPipeline_MarketUnavailable(t *testing.T) {
	tests := []struct {
		name string
		src  SnapshotSource
		opts []Option
	}{
		{"source error", &fakeSource{err: errors.New("feed down")}, nil},
		{"timeout", &fakeSource{block: true}, []Option{WithFetchTimeout(20 * time.Millisecond)}},
		{"no source", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestPipeline(tt.src, tt.opts...).Validate(context.Background(), compatibleRequest())
			assert.Equal(t, StatusMarketUnavailable, r.Status)
			assert.False(t, r.IsValid)
			assert.Contains(t, r.Reason, ErrSnapshotUnavailable.Error())
			assert.Nil(t, r.MarketOutcome)
		})
	}
}

func TestPipeline_FetchErrorsWrapSentinels(t *testing.T) {
	p := newTestPipeline(nil)
	_, err := p.fetchSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	assert.ErrorIs(t, err, ErrNoSnapshotSource)

	p = newTestPipeline(&fakeSource{block: true}, WithFetchTimeout(10*time.Millisecond))
	_, err = p.fetchSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeline_SourcePanicIsMarketUnavailable(t *testing.T) {
	src := &fakeSource{panic: true}
	p := newTestPipeline(src)

	var r Report
	require.NotPanics(t, func() { r = p.Validate(context.Background(), compatibleRequest()) })
	assert.Equal(t, StatusMarketUnavailable, r.Status)
	assert.False(t, r.IsValid)
	assert.Contains(t, r.Reason, ErrSnapshotUnavailable.Error())
	assert.Contains(t, r.Reason, "source panicked")
	assert.Nil(t, r.MarketOutcome)

	var reports []Report
	require.NotPanics(t, func() {
		reports = p.ValidateBatch(context.Background(), []Request{compatibleRequest(), incompatibleRequest(), compatibleRequest()})
	})
	require.Len(t, reports, 3)
	assert.Equal(t, StatusMarketUnavailable, reports[0].Status)
	assert.Equal(t, StatusRejectedIncompatible, reports[1].Status)
	assert.Equal(t, StatusMarketUnavailable, reports[2].Status)
	assert.Equal(t, int32(2), src.calls.Load(), "one fetch per Validate and one per batch")
}

func TestPipeline_CallerMinLegs(t *testing.T) {
	p := newTestPipeline(&fakeSource{snap: testSnapshot()})

	req := compatibleRequest()
	req.MinLegs = 3
	r := p.Validate(context.Background(), req)
	assert.Equal(t, StatusInsufficientLegs, r.Status)
	assert.False(t, r.IsValid)
	assert.Contains(t, r.Reason, ReasonInsufficientLegs)
	assert.Nil(t, r.Confidence)

	// One tradeable leg is enough when the caller says so.
	req = compatibleRequest()
	req.Legs[1] = mkLeg("G9", "h2h", "Knicks", "draftkings", 2.1)
	req.MinLegs = 1
	r = p.Validate(context.Background(), req)
	assert.Equal(t, StatusAccepted, r.Status)
	require.NotNil(t, r.MarketOutcome)
	assert.Len(t, r.MarketOutcome.ValidLegs, 1)
	assert.InDelta(t, 1.85, r.MarketOutcome.TotalOdds, 1e-9)
}

func TestPipeline_InsufficientLegs(t *testing.T) {
	req := compatibleRequest()
	req.Legs[1] = mkLeg("G9", "h2h", "Knicks", "draftkings", 2.1)
	r := newTestPipeline(&fakeSource{snap: testSnapshot()}).Validate(context.Background(), req)

	assert.Equal(t, StatusInsufficientLegs, r.Status)
	assert.Contains(t, r.Reason, ReasonInsufficientLegs)
	require.NotNil(t, r.MarketOutcome)
	assert.Len(t, r.MarketOutcome.ValidLegs, 1)
	assert.Nil(t, r.Confidence)
}

func TestPipeline_EmptySnapshot(t *testing.T) {
	p := newTestPipeline(nil)
	r := p.ValidateWithSnapshot(context.Background(), &models.MarketSnapshot{}, compatibleRequest())

	assert.Equal(t, StatusInsufficientLegs, r.Status)
	require.NotNil(t, r.MarketOutcome)
	assert.Empty(t, r.MarketOutcome.ValidLegs)
	assert.Equal(t, ReasonNoGames, r.MarketOutcome.Reason)
	assert.Contains(t, r.Reason, ReasonNoGames)
}

func TestPipeline_FreshSessionPerCall(t *testing.T) {
	p := newTestPipeline(&fakeSource{snap: testSnapshot()})
	a := p.Validate(context.Background(), compatibleRequest())
	b := p.Validate(context.Background(), compatibleRequest())
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestPipeline_ValidateBatch(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	p := newTestPipeline(src)

	reqs := []Request{compatibleRequest(), incompatibleRequest(), compatibleRequest()}
	reqs[2].Evidence = nil

	reports := p.ValidateBatch(context.Background(), reqs)
	require.Len(t, reports, 3)
	assert.Equal(t, StatusAccepted, reports[0].Status)
	assert.Equal(t, StatusRejectedIncompatible, reports[1].Status)
	assert.Equal(t, StatusFlagged, reports[2].Status)
	assert.Equal(t, int32(1), src.calls.Load(), "one fetch per batch")

	ids := map[string]bool{}
	for _, r := range reports {
		ids[r.SessionID] = true
	}
	assert.Len(t, ids, 3)
}

func TestPipeline_ValidateBatchWithoutCompatibleCandidates(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	reports := newTestPipeline(src).ValidateBatch(context.Background(), []Request{incompatibleRequest(), incompatibleRequest()})
	require.Len(t, reports, 2)
	assert.Zero(t, src.calls.Load())

	assert.Empty(t, newTestPipeline(src).ValidateBatch(context.Background(), nil))
}

func TestPipeline_ValidateBatchSharedFetchFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("feed down")}
	reports := newTestPipeline(src).ValidateBatch(context.Background(), []Request{compatibleRequest(), compatibleRequest(), incompatibleRequest()})
	assert.Equal(t, StatusMarketUnavailable, reports[0].Status)
	assert.Equal(t, StatusMarketUnavailable, reports[1].Status)
	assert.Equal(t, StatusRejectedIncompatible, reports[2].Status)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestPipeline_NotifiesEveryReport(t *testing.T) {
	n := &recordingNotifier{}
	p := newTestPipeline(&fakeSource{snap: testSnapshot()}, WithNotifier(n))
	p.Validate(context.Background(), compatibleRequest())
	p.Validate(context.Background(), incompatibleRequest())

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.reports, 2)
	assert.Equal(t, StatusRejectedIncompatible, n.reports[1].Status)
}
