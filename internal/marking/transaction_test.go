package marking

import (
	"context"
	"errors"
	"testing"
	"time"

	"classboard/internal/faceclient"
	"classboard/internal/gate"
)

type fakeFace struct {
	verifyMatched bool
	verifyErr     error
	markSuccess   bool
	markErr       error

	verifyCalls int
	markCalls   int
}

func (f *fakeFace) VerifyIdentity(ctx context.Context, studentID, image string) (*faceclient.VerifyResult, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &faceclient.VerifyResult{Matched: f.verifyMatched}, nil
}

func (f *fakeFace) MarkAttendance(ctx context.Context, studentID, image, subjectID string) (*faceclient.MarkResult, error) {
	f.markCalls++
	if f.markErr != nil {
		return nil, f.markErr
	}
	return &faceclient.MarkResult{Success: f.markSuccess, AttendanceMarked: f.markSuccess}, nil
}

type fakeCache struct {
	invalidations []string
	err           error
}

func (f *fakeCache) Invalidate(ctx context.Context, studentID, date string) error {
	f.invalidations = append(f.invalidations, studentID+"/"+date)
	return f.err
}

var classTable = []gate.Period{
	{Name: "Period 1", Start: 9 * 60, End: 10 * 60},
}

func fixedNow(hour, min int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 16, hour, min, 0, 0, time.UTC)
	}
}

func capture(image string) CaptureFunc {
	return func(context.Context) (string, error) { return image, nil }
}

func TestMark_OutsideWindow_RejectedBeforeCapture(t *testing.T) {
	face := &fakeFace{}
	captureCalled := false

	tx := New(face, &fakeCache{}, classTable, fixedNow(8, 0), nil)
	_, err := tx.Mark(context.Background(), "stu-1", "101", func(context.Context) (string, error) {
		captureCalled = true
		return "img", nil
	})

	var denied *PreconditionError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PreconditionError, got %v", err)
	}
	if denied.Window.Allowed {
		t.Error("denied window must report allowed=false")
	}
	if denied.Window.UntilNext == nil || *denied.Window.UntilNext != time.Hour {
		t.Errorf("expected 1h until next window, got %v", denied.Window.UntilNext)
	}
	if captureCalled {
		t.Error("capture must not run when the gate denies")
	}
	if face.verifyCalls != 0 || face.markCalls != 0 {
		t.Error("no network call may happen on a denied attempt")
	}
}

func TestMark_CaptureFailure_AbortsWithNoSideEffects(t *testing.T) {
	face := &fakeFace{verifyMatched: true, markSuccess: true}
	cache := &fakeCache{}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	_, err := tx.Mark(context.Background(), "stu-1", "101", func(context.Context) (string, error) {
		return "", errors.New("user dismissed the camera")
	})

	if err == nil {
		t.Fatal("expected an error from a failed capture")
	}
	if face.verifyCalls != 0 {
		t.Error("verification must not run after a failed capture")
	}
	if len(cache.invalidations) != 0 {
		t.Error("no cache invalidation may happen on an aborted attempt")
	}
}

func TestMark_VerifyTransportFailure_IsTransportError(t *testing.T) {
	face := &fakeFace{verifyErr: errors.New("connection refused")}

	tx := New(face, &fakeCache{}, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "101", capture("img"))

	if err != nil {
		t.Fatalf("transport failures resolve to an outcome, not an error: %v", err)
	}
	if res.Outcome != OutcomeTransportError {
		t.Errorf("expected transport_error, got %s", res.Outcome)
	}
	if face.markCalls != 0 {
		t.Error("mark must not run when verification failed to complete")
	}
}

func TestMark_IdentityMismatch_StopsBeforeMark(t *testing.T) {
	face := &fakeFace{verifyMatched: false}
	cache := &fakeCache{}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "101", capture("img"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeIdentityMismatch {
		t.Errorf("expected identity_mismatch, got %s", res.Outcome)
	}
	if face.markCalls != 0 {
		t.Error("a mismatched identity must not produce an attendance side effect")
	}
	if len(cache.invalidations) != 0 {
		t.Error("mismatch must not invalidate the cache")
	}
}

func TestMark_Success_InvalidatesCache(t *testing.T) {
	face := &fakeFace{verifyMatched: true, markSuccess: true}
	cache := &fakeCache{}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "101", capture("img"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeMarked {
		t.Fatalf("expected verified_marked, got %s", res.Outcome)
	}
	if len(cache.invalidations) != 1 || cache.invalidations[0] != "stu-1/2026-03-16" {
		t.Errorf("expected one invalidation for stu-1/2026-03-16, got %v", cache.invalidations)
	}
}

func TestMark_NoSubject_IsVerifiedOnly(t *testing.T) {
	face := &fakeFace{verifyMatched: true}
	cache := &fakeCache{}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "", capture("img"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeVerifiedOnly {
		t.Errorf("expected verified_only, got %s", res.Outcome)
	}
	if face.markCalls != 0 {
		t.Error("identity-check-only runs must not call mark")
	}
	if len(cache.invalidations) != 0 {
		t.Error("identity-check-only runs must not invalidate the cache")
	}
}

func TestMark_BackendRejection_IsTransportError(t *testing.T) {
	face := &fakeFace{verifyMatched: true, markSuccess: false}
	cache := &fakeCache{}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "101", capture("img"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeTransportError {
		t.Errorf("expected transport_error for a rejected mark, got %s", res.Outcome)
	}
	if len(cache.invalidations) != 0 {
		t.Error("a failed mark must not invalidate the cache")
	}
}

func TestMark_InvalidationFailure_DoesNotChangeOutcome(t *testing.T) {
	face := &fakeFace{verifyMatched: true, markSuccess: true}
	cache := &fakeCache{err: errors.New("redis down")}

	tx := New(face, cache, classTable, fixedNow(9, 30), nil)
	res, err := tx.Mark(context.Background(), "stu-1", "101", capture("img"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeMarked {
		t.Errorf("mark already happened; outcome must stay verified_marked, got %s", res.Outcome)
	}
}
