package usecase

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/routing"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testContext(d *hooks.Dispatcher) *Context {
	return New("de-aging pipeline", routing.DefaultTable(dimension.SchemaV2), d,
		WithPhase("pre-production"),
		WithClock(func() time.Time { return t0 }),
	)
}

func TestFlagRiskRoutesAutomatically(t *testing.T) {
	ctx := testContext(nil)
	f := ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "likeness rights unresolved", "")
	if f.Reviewer != "VP Legal / Business Affairs" {
		t.Fatalf("expected routed reviewer, got %q", f.Reviewer)
	}
}

func TestFlagRiskExplicitReviewerWins(t *testing.T) {
	ctx := testContext(nil)
	f := ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "likeness rights unresolved", "Outside Counsel")
	if f.Reviewer != "Outside Counsel" {
		t.Fatalf("expected explicit reviewer, got %q", f.Reviewer)
	}
}

func TestFlagRiskUnroutedCustomDimension(t *testing.T) {
	ctx := testContext(nil)
	custom := dimension.Dimension{Key: "CHAIN_OF_TITLE", Label: "Chain of Title"}
	f := ctx.FlagRisk(custom, risk.LevelMedium, "missing assignment docs", "")
	if f.Reviewer != "" {
		t.Fatalf("unrouted pair must stay unassigned, got %q", f.Reviewer)
	}
}

func TestFlagRiskEmitsFlagAdded(t *testing.T) {
	d := hooks.NewDispatcher(nil)
	var got []hooks.Event
	d.Subscribe(hooks.EventFlagAdded, hooks.HookFunc(func(e hooks.Event) error {
		got = append(got, e)
		return nil
	}))
	ctx := testContext(d)

	ctx.FlagRisk(dimension.Safety, risk.LevelMedium, "unsafe prompt handling", "")

	if len(got) != 1 {
		t.Fatalf("expected one flag_added event, got %d", len(got))
	}
	if got[0].UseCase != "de-aging pipeline" || got[0].FlagIndex != 0 || got[0].Flag == nil {
		t.Fatalf("unexpected event payload %+v", got[0])
	}
}

func TestBlockingAndPendingQueries(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "rights unresolved", "")
	ctx.FlagRisk(dimension.Quality, risk.LevelLow, "minor artifacting", "")
	ctx.FlagRisk(dimension.Safety, risk.LevelMedium, "prompt injection surface", "")

	if !ctx.IsBlocked() {
		t.Fatal("HIGH open flag must block")
	}
	if len(ctx.Blockers()) != 1 {
		t.Fatalf("expected 1 blocker, got %d", len(ctx.Blockers()))
	}
	// HIGH and MEDIUM are open, so both await review
	if len(ctx.PendingReviews()) != 2 {
		t.Fatalf("expected 2 pending reviews, got %d", len(ctx.PendingReviews()))
	}

	if err := ctx.Resolve(0, "rights cleared"); err != nil {
		t.Fatal(err)
	}
	if ctx.IsBlocked() {
		t.Fatal("resolving the blocker must unblock the use case")
	}
}

func TestAcceptedHighRiskDoesNotBlock(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.Security, risk.LevelHigh, "endpoint exposure", "")
	if err := ctx.AcceptRisk(0, "compensating controls in place"); err != nil {
		t.Fatal(err)
	}
	if ctx.IsBlocked() {
		t.Fatal("accepted risk must not block")
	}
}

func TestGateVetoLeavesFlagUntouched(t *testing.T) {
	d := hooks.NewDispatcher(nil)
	gate, err := hooks.NewComplianceGate("policy")
	if err != nil {
		t.Fatal(err)
	}
	if err := gate.AddCriterion("critical_accept_needs_note",
		`event != "flag_accepted" || level != "CRITICAL" || note != ""`); err != nil {
		t.Fatal(err)
	}
	d.SubscribeGate(hooks.EventFlagAccepted, gate)

	notified := 0
	d.Subscribe(hooks.EventFlagAccepted, hooks.HookFunc(func(hooks.Event) error {
		notified++
		return nil
	}))

	ctx := testContext(d)
	ctx.FlagRisk(dimension.Security, risk.LevelCritical, "exposed inference endpoint", "")

	err = ctx.AcceptRisk(0, "")
	var veto *hooks.VetoError
	if !errors.As(err, &veto) {
		t.Fatalf("expected VetoError, got %v", err)
	}
	f, _ := ctx.Flag(0)
	if f.Status != risk.StatusOpen {
		t.Fatalf("vetoed mutation changed status to %s", f.Status)
	}
	if notified != 0 {
		t.Fatal("notify hooks must not fire for a vetoed mutation")
	}

	if err := ctx.AcceptRisk(0, "board sign-off attached"); err != nil {
		t.Fatal(err)
	}
	if notified != 1 {
		t.Fatal("committed mutation must notify")
	}
}

func TestTransitionBadIndex(t *testing.T) {
	ctx := testContext(nil)
	if err := ctx.Resolve(0, "nope"); err == nil {
		t.Fatal("expected error for missing flag index")
	}
	if _, err := ctx.Flag(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
}

func TestReviewersNeededDedupes(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "rights A", "")
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "rights B", "")
	ctx.FlagRisk(dimension.Safety, risk.LevelMedium, "prompt surface", "")
	custom := dimension.Dimension{Key: "CHAIN_OF_TITLE", Label: "Chain of Title"}
	ctx.FlagRisk(custom, risk.LevelHigh, "unassigned blocker", "")

	got := ctx.ReviewersNeeded()
	want := []string{"VP Legal / Business Affairs", "Safety Review Board"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRiskScoreCoversFlaggedDimensionsOnly(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.LegalIP, risk.LevelMedium, "rights review", "")
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "rights blocker", "")
	ctx.FlagRisk(dimension.Quality, risk.LevelLow, "minor artifacting", "")

	scores := ctx.RiskScore()
	if len(scores) != 2 {
		t.Fatalf("expected scores for 2 flagged dimensions, got %v", scores)
	}
	if scores["LEGAL_IP"] != int(risk.LevelHigh) {
		t.Fatalf("expected max unsettled level 3, got %d", scores["LEGAL_IP"])
	}
	if scores["QUALITY"] != int(risk.LevelLow) {
		t.Fatalf("expected 1, got %d", scores["QUALITY"])
	}

	if err := ctx.Resolve(1, "cleared"); err != nil {
		t.Fatal(err)
	}
	if got := ctx.RiskScore()["LEGAL_IP"]; got != int(risk.LevelMedium) {
		t.Fatalf("settled flag still counted: %d", got)
	}
}

func TestRiskScoreAllSettledIsZeroNotAbsent(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.Safety, risk.LevelHigh, "unsafe output", "")
	if err := ctx.Resolve(0, "filter added"); err != nil {
		t.Fatal(err)
	}
	scores := ctx.RiskScore()
	v, ok := scores["SAFETY"]
	if !ok {
		t.Fatal("settled dimension must still appear with score 0")
	}
	if v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
}

func TestCompositeScore(t *testing.T) {
	ctx := testContext(nil)
	if ctx.CompositeScore() != 0 {
		t.Fatal("no flags means zero composite")
	}

	ctx.FlagRisk(dimension.LegalIP, risk.LevelCritical, "rights blocker", "")
	ctx.FlagRisk(dimension.Quality, risk.LevelMedium, "artifacting", "")
	// (4 + 2) / (4 * 2)
	if got := ctx.CompositeScore(); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", got)
	}

	custom := dimension.Dimension{Key: "VENDOR_RISK", Label: "Vendor Risk"}
	ctx.FlagRisk(custom, risk.LevelNone, "tracked for visibility", "")
	// denominator scales with the flagged dimension count
	if got := ctx.CompositeScore(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 with 3 dimensions, got %f", got)
	}
}

func TestMaxRiskLevel(t *testing.T) {
	ctx := testContext(nil)
	if ctx.MaxRiskLevel() != risk.LevelNone {
		t.Fatal("empty context has no risk")
	}
	ctx.FlagRisk(dimension.Quality, risk.LevelMedium, "artifacting", "")
	ctx.FlagRisk(dimension.Safety, risk.LevelHigh, "unsafe output", "")
	if ctx.MaxRiskLevel() != risk.LevelHigh {
		t.Fatalf("expected HIGH, got %s", ctx.MaxRiskLevel())
	}
	if err := ctx.AcceptRisk(1, "accepted"); err != nil {
		t.Fatal(err)
	}
	if ctx.MaxRiskLevel() != risk.LevelMedium {
		t.Fatalf("expected MEDIUM after settling HIGH, got %s", ctx.MaxRiskLevel())
	}
}

func TestFlagQueries(t *testing.T) {
	ctx := testContext(nil)
	ctx.FlagRisk(dimension.LegalIP, risk.LevelHigh, "a", "")
	ctx.FlagRisk(dimension.LegalIP, risk.LevelLow, "b", "")
	ctx.FlagRisk(dimension.Safety, risk.LevelHigh, "c", "")
	if err := ctx.BeginReview(0); err != nil {
		t.Fatal(err)
	}

	if got := ctx.FlagsByDimension(dimension.LegalIP); len(got) != 2 {
		t.Fatalf("expected 2 LEGAL_IP flags, got %d", len(got))
	}
	if got := ctx.FlagsByLevel(risk.LevelHigh); len(got) != 2 {
		t.Fatalf("expected 2 HIGH flags, got %d", len(got))
	}
	if got := ctx.FlagsByStatus(risk.StatusInReview); len(got) != 1 || got[0].Description != "a" {
		t.Fatalf("unexpected IN_REVIEW query result %v", got)
	}

	dims := ctx.Dimensions()
	if len(dims) != 2 || dims[0] != dimension.LegalIP || dims[1] != dimension.Safety {
		t.Fatalf("expected first-flagged order, got %v", dims)
	}
}
