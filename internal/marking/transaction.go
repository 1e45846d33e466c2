// Package marking runs the capture → verify → commit pipeline that records a
// student's presence for one subject.
package marking

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"classboard/internal/clock"
	"classboard/internal/faceclient"
	"classboard/internal/gate"
)

// Outcome is the terminal state of one marking attempt. The four variants
// stay distinct all the way to the caller; an identity mismatch and a
// transport failure warrant different user messaging.
type Outcome string

const (
	OutcomeMarked           Outcome = "verified_marked"
	OutcomeVerifiedOnly     Outcome = "verified_only"
	OutcomeIdentityMismatch Outcome = "identity_mismatch"
	OutcomeTransportError   Outcome = "transport_error"
)

// CaptureFunc produces the capture payload (an uploaded image URL or data
// URL). It runs only after the gate allows marking; a capture error aborts
// the attempt with no side effects.
type CaptureFunc func(ctx context.Context) (string, error)

// Verifier is the slice of the face service the transaction needs.
type Verifier interface {
	VerifyIdentity(ctx context.Context, studentID, image string) (*faceclient.VerifyResult, error)
	MarkAttendance(ctx context.Context, studentID, image, subjectID string) (*faceclient.MarkResult, error)
}

// Invalidator drops the cached attendance snapshot after a successful mark.
type Invalidator interface {
	Invalidate(ctx context.Context, studentID, date string) error
}

// PreconditionError reports that the gate rejected the attempt before any
// capture or network call happened.
type PreconditionError struct {
	Window gate.Window
}

func (e *PreconditionError) Error() string {
	return "marking not allowed: " + e.Window.Reason
}

// Result is what one attempt resolved to.
type Result struct {
	Outcome Outcome
	Message string
}

// Transaction orchestrates marking attempts. It holds no per-attempt state;
// the UI serializes attempts per subject by disabling the trigger while one
// is pending. There is no automatic retry.
type Transaction struct {
	face  Verifier
	cache Invalidator
	table []gate.Period
	now   clock.NowFunc
	log   *logrus.Logger
}

// New builds a transaction over the face service, the attendance cache, and
// the gate's bell table.
func New(face Verifier, cache Invalidator, table []gate.Period, now clock.NowFunc, log *logrus.Logger) *Transaction {
	if now == nil {
		now = clock.System()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transaction{face: face, cache: cache, table: table, now: now, log: log}
}

// Mark runs one sequential attempt. subjectID may be empty for an
// identity-check-only run. The returned error is non-nil only when the
// attempt never reached the face service (gate denial or capture failure);
// once verification has started, the Outcome tells the story and the
// attempt runs to completion.
func (t *Transaction) Mark(ctx context.Context, studentID, subjectID string, capture CaptureFunc) (Result, error) {
	window := gate.Evaluate(t.now(), t.table)
	if !window.Allowed {
		return Result{}, &PreconditionError{Window: window}
	}

	image, err := capture(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("capture failed: %w", err)
	}

	verified, err := t.face.VerifyIdentity(ctx, studentID, image)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, Message: err.Error()}, nil
	}
	if !verified.Matched {
		msg := verified.Message
		if msg == "" {
			msg = "face does not match the signed-in student"
		}
		return Result{Outcome: OutcomeIdentityMismatch, Message: msg}, nil
	}

	if subjectID == "" {
		return Result{Outcome: OutcomeVerifiedOnly, Message: verified.Message}, nil
	}

	marked, err := t.face.MarkAttendance(ctx, studentID, image, subjectID)
	if err != nil {
		return Result{Outcome: OutcomeTransportError, Message: err.Error()}, nil
	}
	if !marked.Success {
		return Result{Outcome: OutcomeTransportError, Message: marked.Message}, nil
	}

	// The engine only learns about the new record through the provider, so
	// dropping the snapshot is what makes the next pass pick it up.
	if t.cache != nil {
		date := t.now().Format("2006-01-02")
		if err := t.cache.Invalidate(ctx, studentID, date); err != nil {
			t.log.Warnf("attendance cache invalidation failed for %s/%s: %v", studentID, date, err)
		}
	}

	return Result{Outcome: OutcomeMarked, Message: marked.Message}, nil
}
