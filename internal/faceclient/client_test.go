package faceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyIdentity_DecodesMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-identity" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["student_id"] != "stu-1" || body["image"] == "" {
			t.Errorf("unexpected request body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matched":false,"message":"face does not match"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	res, err := client.VerifyIdentity(context.Background(), "stu-1", "https://cdn/img.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Matched {
		t.Error("expected matched=false")
	}
	if res.Message != "face does not match" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestVerifyIdentity_RequiresImage(t *testing.T) {
	client := New("http://unused", false)
	if _, err := client.VerifyIdentity(context.Background(), "stu-1", ""); err == nil {
		t.Error("expected an error for an empty image")
	}
}

func TestMarkAttendance_DecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mark-attendance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["subject_id"] != "101" {
			t.Errorf("unexpected subject_id %q", body["subject_id"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"attendance_marked":true,"message":"ok"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	res, err := client.MarkAttendance(context.Background(), "stu-1", "https://cdn/img.jpg", "101")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || !res.AttendanceMarked {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestMarkAttendance_ServerError_IsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "face service exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	if _, err := client.MarkAttendance(context.Background(), "stu-1", "img", "101"); err == nil {
		t.Error("expected an error from a 502 response")
	}
}

func TestSkipMode_AlwaysVerifies(t *testing.T) {
	client := New("http://unused", true)

	verify, err := client.VerifyIdentity(context.Background(), "stu-1", "")
	if err != nil || !verify.Matched {
		t.Fatalf("skip mode must verify, got %+v %v", verify, err)
	}
	mark, err := client.MarkAttendance(context.Background(), "stu-1", "", "101")
	if err != nil || !mark.Success {
		t.Fatalf("skip mode must mark, got %+v %v", mark, err)
	}
}
