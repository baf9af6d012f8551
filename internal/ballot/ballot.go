// Package ballot implements the client-side vote workflow: selection,
// mandatory confirmation, a single guarded submission, and classified
// failure handling.
package ballot

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/ballotwatch/ballotwatch/internal/errors"
	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/models"
	"github.com/ballotwatch/ballotwatch/pkg/electionapi"
)

// Phase is the current step of the vote workflow
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSelected   Phase = "selected"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseCommitted  Phase = "committed"
	PhaseFailed     Phase = "failed"
)

// FailureClass classifies a rejected submission
type FailureClass string

const (
	FailureAlreadyVoted   FailureClass = "already_voted"
	FailureElectionClosed FailureClass = "election_closed"
	FailureValidation     FailureClass = "validation"
	FailureUnknown        FailureClass = "unknown"
)

// Retryable reports whether the failure allows another attempt in this
// session. Already-voted and closed-election rejections are final.
func (c FailureClass) Retryable() bool {
	return c == FailureValidation
}

// Failure is the retained outcome of a failed submission
type Failure struct {
	Class   FailureClass
	Message string
}

// Workflow drives one voter's ballot for one election. The Submitting
// phase doubles as the in-flight guard: while a submission is pending,
// further confirm calls are dropped.
type Workflow struct {
	log        logger.Logger
	api        electionapi.Client
	electionID string
	ended      func() bool

	mu         sync.Mutex
	approved   []models.CandidateOption
	selected   *models.CandidateOption
	phase      Phase
	failure    *Failure
}

// New creates a workflow for the given election. The ended func reports
// whether the election window has closed; it gates new selections and
// submissions.
func New(log logger.Logger, api electionapi.Client, electionID string, approved []models.CandidateOption, ended func() bool) *Workflow {
	if ended == nil {
		ended = func() bool { return false }
	}
	return &Workflow{
		log:        log,
		api:        api,
		electionID: electionID,
		ended:      ended,
		approved:   approved,
		phase:      PhaseIdle,
	}
}

// Phase returns the current workflow phase
func (w *Workflow) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Selected returns the currently selected candidate, or nil
func (w *Workflow) Selected() *models.CandidateOption {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

// Failure returns the retained failure after a rejected submission, or nil
func (w *Workflow) Failure() *Failure {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// SetApproved replaces the approved candidate list (after a re-fetch)
func (w *Workflow) SetApproved(approved []models.CandidateOption) {
	w.mu.Lock()
	w.approved = approved
	w.mu.Unlock()
}

// Select moves Idle to Selected. The candidate key must appear in the
// approved list and the election must still be open; otherwise the phase
// is left untouched.
func (w *Workflow) Select(candidateKey string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseIdle {
		return apperrors.Validationf("cannot select a candidate while %s", w.phase)
	}
	if w.ended() {
		return apperrors.Business("the election has ended")
	}

	for i := range w.approved {
		if w.approved[i].CandidateKey == candidateKey {
			candidate := w.approved[i]
			w.selected = &candidate
			w.phase = PhaseSelected
			w.log.Debug("candidate selected", "candidateKey", candidateKey)
			return nil
		}
	}
	return apperrors.Validationf("candidate %s is not on the approved list", candidateKey)
}

// OpenConfirm moves Selected to Confirming. Submission is only possible
// from Confirming, so a stray confirm call can never skip this step.
func (w *Workflow) OpenConfirm() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseSelected {
		return apperrors.Validationf("cannot open confirmation while %s", w.phase)
	}
	w.phase = PhaseConfirming
	return nil
}

// Cancel moves Confirming back to Selected
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseConfirming {
		return apperrors.Validationf("cannot cancel while %s", w.phase)
	}
	w.phase = PhaseSelected
	return nil
}

// Confirm submits the vote. Exactly one request leaves per transition
// into Submitting; a confirm call that arrives while a submission is in
// flight is dropped.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	if w.phase == PhaseSubmitting {
		w.mu.Unlock()
		w.log.Debug("submission already in flight, dropping confirm")
		return nil
	}
	if w.phase != PhaseConfirming {
		w.mu.Unlock()
		return apperrors.Validationf("cannot submit while %s", w.phase)
	}
	if w.selected == nil {
		w.mu.Unlock()
		return apperrors.Validation("no candidate selected")
	}
	if w.ended() {
		w.phase = PhaseFailed
		w.failure = &Failure{Class: FailureElectionClosed, Message: "the election has ended"}
		w.mu.Unlock()
		return apperrors.Business("the election has ended")
	}
	candidateKey := w.selected.CandidateKey
	w.phase = PhaseSubmitting
	w.mu.Unlock()

	requestID := uuid.NewString()
	w.log.Info("submitting vote", "candidateKey", candidateKey, "requestId", requestID)

	result, err := w.api.CastVote(ctx, w.electionID, candidateKey, requestID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.failure = classify(err)
		w.phase = PhaseFailed
		w.log.Warn("vote rejected", "class", w.failure.Class, "message", w.failure.Message)
		return err
	}

	w.phase = PhaseCommitted
	w.selected = nil
	w.failure = nil
	w.log.Info("vote committed", "status", result.Status)
	return nil
}

// Retry moves Failed back to Idle for another attempt. Terminal failure
// classes refuse the retry.
func (w *Workflow) Retry() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseFailed {
		return apperrors.Validationf("cannot retry while %s", w.phase)
	}
	if w.failure != nil && !w.failure.Class.Retryable() {
		return apperrors.Businessf("cannot retry: %s", w.failure.Message)
	}
	w.phase = PhaseIdle
	w.selected = nil
	w.failure = nil
	return nil
}

// classify maps a submission error to a failure class. Structured API
// errors are matched by code; unstructured ones fall back to message
// matching.
func classify(err error) *Failure {
	var apiErr *electionapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case electionapi.CodeAlreadyVoted:
			return &Failure{Class: FailureAlreadyVoted, Message: apiErr.Message}
		case electionapi.CodeElectionClosed:
			return &Failure{Class: FailureElectionClosed, Message: apiErr.Message}
		case electionapi.CodeValidation, electionapi.CodeBadRequest:
			return &Failure{Class: FailureValidation, Message: apiErr.Message}
		}
		return classifyMessage(apiErr.Message)
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) *Failure {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already voted"):
		return &Failure{Class: FailureAlreadyVoted, Message: msg}
	case strings.Contains(lower, "closed"), strings.Contains(lower, "ended"):
		return &Failure{Class: FailureElectionClosed, Message: msg}
	default:
		return &Failure{Class: FailureUnknown, Message: msg}
	}
}
