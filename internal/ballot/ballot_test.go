package ballot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ballotwatch/ballotwatch/internal/ballot"
	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
	"github.com/ballotwatch/ballotwatch/pkg/electionapi"
)

func newTestWorkflow(t *testing.T, api electionapi.Client, ended func() bool) *ballot.Workflow {
	t.Helper()
	log := logger.NewWithWriter(io.Discard, slog.LevelError)
	return ballot.New(log, api, "e-1", electionapi.DefaultMockCandidates(), ended)
}

// advanceToConfirming walks a fresh workflow to the Confirming phase
func advanceToConfirming(t *testing.T, w *ballot.Workflow, candidateKey string) {
	t.Helper()
	if err := w.Select(candidateKey); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if err := w.OpenConfirm(); err != nil {
		t.Fatalf("OpenConfirm failed: %v", err)
	}
}

// TestSelect_ApprovedCandidate tests the Idle to Selected transition
func TestSelect_ApprovedCandidate(t *testing.T) {
	w := newTestWorkflow(t, electionapi.NewMockClient(), nil)

	if err := w.Select("0xa11ce"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if w.Phase() != ballot.PhaseSelected {
		t.Errorf("expected phase selected, got %s", w.Phase())
	}
	if w.Selected() == nil || w.Selected().CandidateKey != "0xa11ce" {
		t.Error("expected selected candidate to be recorded")
	}
}

// TestSelect_UnknownCandidateLeavesPhaseIdle tests that an off-list key
// is rejected without a phase change
func TestSelect_UnknownCandidateLeavesPhaseIdle(t *testing.T) {
	w := newTestWorkflow(t, electionapi.NewMockClient(), nil)

	err := w.Select("0xdead")
	if err == nil {
		t.Fatal("expected an error for an unapproved candidate")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.ErrValidation {
		t.Errorf("expected a validation error, got %v", err)
	}
	if w.Phase() != ballot.PhaseIdle {
		t.Errorf("expected phase to stay idle, got %s", w.Phase())
	}
	if w.Selected() != nil {
		t.Error("expected no selection to be recorded")
	}
}

// TestSelect_RejectedAfterElectionEnds tests that a closed election
// refuses new selections
func TestSelect_RejectedAfterElectionEnds(t *testing.T) {
	w := newTestWorkflow(t, electionapi.NewMockClient(), func() bool { return true })

	err := w.Select("0xa11ce")
	if err == nil {
		t.Fatal("expected an error selecting after the election ended")
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.ErrBusiness {
		t.Errorf("expected a business error, got %v", err)
	}
	if w.Phase() != ballot.PhaseIdle {
		t.Errorf("expected phase to stay idle, got %s", w.Phase())
	}
}

// TestConfirm_RequiresConfirmingPhase tests that submission cannot skip
// the confirmation step
func TestConfirm_RequiresConfirmingPhase(t *testing.T) {
	api := electionapi.NewMockClient()
	w := newTestWorkflow(t, api, nil)

	if err := w.Select("0xa11ce"); err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected an error submitting from the selected phase")
	}
	if api.CastCalls() != 0 {
		t.Errorf("expected no outbound submission, got %d", api.CastCalls())
	}
	if w.Phase() != ballot.PhaseSelected {
		t.Errorf("expected phase to stay selected, got %s", w.Phase())
	}
}

// TestCancel_ReturnsToSelected tests the Confirming to Selected transition
func TestCancel_ReturnsToSelected(t *testing.T) {
	w := newTestWorkflow(t, electionapi.NewMockClient(), nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if w.Phase() != ballot.PhaseSelected {
		t.Errorf("expected phase selected after cancel, got %s", w.Phase())
	}
	if w.Selected() == nil {
		t.Error("expected selection to survive a cancel")
	}
}

// TestConfirm_Success tests the full happy path to Committed
func TestConfirm_Success(t *testing.T) {
	api := electionapi.NewMockClient()
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xb0b")

	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if w.Phase() != ballot.PhaseCommitted {
		t.Errorf("expected phase committed, got %s", w.Phase())
	}
	if w.Selected() != nil {
		t.Error("expected selection to be cleared after commit")
	}
	if votes := api.CastVotes(); len(votes) != 1 || votes[0] != "0xb0b" {
		t.Errorf("expected one submission for 0xb0b, got %v", votes)
	}
}

// TestConfirm_CommittedIsTerminal tests that no further selection is
// possible after a committed vote
func TestConfirm_CommittedIsTerminal(t *testing.T) {
	api := electionapi.NewMockClient()
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if err := w.Select("0xb0b"); err == nil {
		t.Error("expected selection to be refused after commit")
	}
	if w.Phase() != ballot.PhaseCommitted {
		t.Errorf("expected phase to stay committed, got %s", w.Phase())
	}
}

// TestConfirm_SingleInFlightSubmission tests that concurrent confirm
// calls produce exactly one outbound request
func TestConfirm_SingleInFlightSubmission(t *testing.T) {
	gate := make(chan struct{})
	api := electionapi.NewMockClient(electionapi.WithCastGate(gate))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Confirm(context.Background())
	}()

	// Wait for the first submission to be in flight
	for api.CastCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Re-entrant confirms while the first is pending must be dropped
	if err := w.Confirm(context.Background()); err != nil {
		t.Errorf("expected in-flight confirm to be a no-op, got %v", err)
	}
	if err := w.Confirm(context.Background()); err != nil {
		t.Errorf("expected in-flight confirm to be a no-op, got %v", err)
	}

	close(gate)
	wg.Wait()

	if api.CastCalls() != 1 {
		t.Errorf("expected exactly one submission, got %d", api.CastCalls())
	}
	if w.Phase() != ballot.PhaseCommitted {
		t.Errorf("expected phase committed, got %s", w.Phase())
	}
}

// TestConfirm_AlreadyVotedIsTerminal tests classification of the
// already-voted rejection and that it blocks retry
func TestConfirm_AlreadyVotedIsTerminal(t *testing.T) {
	api := electionapi.NewMockClient(electionapi.WithCastVoteError(&electionapi.APIError{
		Status:  409,
		Code:    electionapi.CodeAlreadyVoted,
		Message: "You have already voted in this election",
	}))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to fail")
	}
	if w.Phase() != ballot.PhaseFailed {
		t.Fatalf("expected phase failed, got %s", w.Phase())
	}

	failure := w.Failure()
	if failure == nil {
		t.Fatal("expected a retained failure")
	}
	if failure.Class != ballot.FailureAlreadyVoted {
		t.Errorf("expected class already_voted, got %s", failure.Class)
	}
	if failure.Message != "You have already voted in this election" {
		t.Errorf("expected the rejection message verbatim, got %q", failure.Message)
	}

	if err := w.Retry(); err == nil {
		t.Error("expected retry to be refused for a terminal failure")
	}
	if w.Phase() != ballot.PhaseFailed {
		t.Errorf("expected phase to stay failed, got %s", w.Phase())
	}
}

// TestConfirm_ElectionClosedIsTerminal tests the closed-election rejection
func TestConfirm_ElectionClosedIsTerminal(t *testing.T) {
	api := electionapi.NewMockClient(electionapi.WithCastVoteError(&electionapi.APIError{
		Status:  409,
		Code:    electionapi.CodeElectionClosed,
		Message: "Voting for this election has closed",
	}))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to fail")
	}
	if failure := w.Failure(); failure == nil || failure.Class != ballot.FailureElectionClosed {
		t.Errorf("expected class election_closed, got %+v", failure)
	}
	if err := w.Retry(); err == nil {
		t.Error("expected retry to be refused for a terminal failure")
	}
}

// TestConfirm_ValidationFailureAllowsRetry tests that a validation
// rejection returns to Idle on retry
func TestConfirm_ValidationFailureAllowsRetry(t *testing.T) {
	api := electionapi.NewMockClient(electionapi.WithCastVoteError(&electionapi.APIError{
		Status:  400,
		Code:    electionapi.CodeValidation,
		Message: "Invalid candidate key",
	}))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to fail")
	}
	if failure := w.Failure(); failure == nil || failure.Class != ballot.FailureValidation {
		t.Fatalf("expected class validation, got %+v", failure)
	}

	if err := w.Retry(); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if w.Phase() != ballot.PhaseIdle {
		t.Errorf("expected phase idle after retry, got %s", w.Phase())
	}
	if w.Selected() != nil {
		t.Error("expected selection to be cleared on retry")
	}
	if w.Failure() != nil {
		t.Error("expected failure to be cleared on retry")
	}
}

// TestConfirm_UnstructuredErrorFallsBackToMessage tests classification of
// a plain error by its message
func TestConfirm_UnstructuredErrorFallsBackToMessage(t *testing.T) {
	api := electionapi.NewMockClient(electionapi.WithCastVoteError(
		apperrors.Transientf("request failed: already voted"),
	))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to fail")
	}
	if failure := w.Failure(); failure == nil || failure.Class != ballot.FailureAlreadyVoted {
		t.Errorf("expected class already_voted from message match, got %+v", failure)
	}
}

// TestConfirm_UnknownErrorClass tests that unrecognized errors classify
// as unknown and refuse retry
func TestConfirm_UnknownErrorClass(t *testing.T) {
	api := electionapi.NewMockClient(electionapi.WithCastVoteError(
		apperrors.Transientf("connection reset by peer"),
	))
	w := newTestWorkflow(t, api, nil)
	advanceToConfirming(t, w, "0xa11ce")

	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to fail")
	}
	if failure := w.Failure(); failure == nil || failure.Class != ballot.FailureUnknown {
		t.Errorf("expected class unknown, got %+v", failure)
	}
	if err := w.Retry(); err == nil {
		t.Error("expected retry to be refused for an unknown failure")
	}
}

// TestConfirm_RejectedAfterElectionEnds tests that the workflow refuses
// to submit once the window closes, even from Confirming
func TestConfirm_RejectedAfterElectionEnds(t *testing.T) {
	ended := false
	api := electionapi.NewMockClient()
	w := newTestWorkflow(t, api, func() bool { return ended })
	advanceToConfirming(t, w, "0xa11ce")

	ended = true
	if err := w.Confirm(context.Background()); err == nil {
		t.Fatal("expected the submission to be refused")
	}
	if api.CastCalls() != 0 {
		t.Errorf("expected no outbound submission, got %d", api.CastCalls())
	}
	if failure := w.Failure(); failure == nil || failure.Class != ballot.FailureElectionClosed {
		t.Errorf("expected class election_closed, got %+v", failure)
	}
}

// TestSetApproved_ReplacesList tests selection against a refreshed list
func TestSetApproved_ReplacesList(t *testing.T) {
	w := newTestWorkflow(t, electionapi.NewMockClient(), nil)

	w.SetApproved([]models.CandidateOption{
		{CandidateKey: "0xfeed", DisplayName: "Dana Wu"},
	})

	if err := w.Select("0xa11ce"); err == nil {
		t.Error("expected the old key to be rejected after refresh")
	}
	if err := w.Select("0xfeed"); err != nil {
		t.Errorf("expected the new key to be accepted, got %v", err)
	}
}
