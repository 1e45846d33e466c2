package campus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTodaySchedule_DecodesPeriods(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedule/today" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"schedule":[
			{"subject_id":"101","subject_name":"Mathematics","subject_code":"MATH101","start_time":"09:00","end_time":"09:50"},
			{"subject_id":"102","subject_name":"Physics","subject_code":"PHY102","start_time":"10:00","end_time":"10:50"}
		]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	periods, err := client.TodaySchedule(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	if periods[0].SubjectCode != "MATH101" || periods[0].StartTime != "09:00" {
		t.Errorf("unexpected first period %+v", periods[0])
	}
}

func TestAttendanceForDate_SendsQueryAndDecodesNullableKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("date") != "2026-03-16" || q.Get("studentId") != "stu-1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[
			{"id":"r1","subject_id":"101","status":"present","date":"2026-03-16"},
			{"id":"r2","subject_name":"Physics","status":"absent","date":"2026-03-16"}
		]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	records, err := client.AttendanceForDate(context.Background(), "stu-1", "2026-03-16")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SubjectID == nil || *records[0].SubjectID != "101" {
		t.Errorf("expected subject_id 101, got %+v", records[0])
	}
	if records[1].SubjectID != nil {
		t.Error("missing subject_id must decode as nil")
	}
	if records[1].SubjectName == nil || *records[1].SubjectName != "Physics" {
		t.Errorf("expected subject_name Physics, got %+v", records[1])
	}
}

func TestClient_BackendError_IsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, false)
	if _, err := client.TodaySchedule(context.Background()); err == nil {
		t.Error("expected an error from a 500 response")
	}
	if _, err := client.AttendanceForDate(context.Background(), "stu-1", "2026-03-16"); err == nil {
		t.Error("expected an error from a 500 response")
	}
}

func TestClient_SkipMode_ServesCannedData(t *testing.T) {
	client := New("http://unused", true)

	periods, err := client.TodaySchedule(context.Background())
	if err != nil || len(periods) == 0 {
		t.Fatalf("skip mode must serve a schedule, got %v %v", periods, err)
	}
	records, err := client.AttendanceForDate(context.Background(), "stu-1", "2026-03-16")
	if err != nil || records == nil {
		t.Fatalf("skip mode must serve an empty record set, got %v %v", records, err)
	}
}
