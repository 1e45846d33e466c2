// Package campus talks to the institution backend that owns the daily
// timetable and the attendance records. The dashboard only reads these; the
// write path for attendance goes through the face service.
package campus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Period is one subject's scheduled slot for today. Times are "HH:MM".
type Period struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	SubjectCode string `json:"subject_code"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// Record is one attendance row for a student. The backend attaches whichever
// subject keys it has; any of them may be missing.
type Record struct {
	ID          string  `json:"id"`
	SubjectID   *string `json:"subject_id,omitempty"`
	SubjectCode *string `json:"subject_code,omitempty"`
	SubjectName *string `json:"subject_name,omitempty"`
	Status      string  `json:"status"`
	Date        string  `json:"date"`
}

// ScheduleProvider returns today's ordered class slots.
type ScheduleProvider interface {
	TodaySchedule(ctx context.Context) ([]Period, error)
}

// RecordProvider returns a student's attendance records for one date.
type RecordProvider interface {
	AttendanceForDate(ctx context.Context, studentID, date string) ([]Record, error)
}

// Client calls the campus REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set it serves canned data for development.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// TodaySchedule fetches today's class slots in schedule order.
func (c *Client) TodaySchedule(ctx context.Context) ([]Period, error) {
	if c.Skip {
		return []Period{
			{SubjectID: "101", SubjectName: "Mathematics", SubjectCode: "MATH101", StartTime: "09:00", EndTime: "09:50"},
			{SubjectID: "102", SubjectName: "Physics", SubjectCode: "PHY102", StartTime: "10:00", EndTime: "10:50"},
			{SubjectID: "103", SubjectName: "Chemistry", SubjectCode: "CHEM103", StartTime: "11:00", EndTime: "11:50"},
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/schedule/today", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("campus api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("campus api error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Schedule []Period `json:"schedule"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode schedule: %w", err)
	}
	return out.Schedule, nil
}

// AttendanceForDate fetches the student's records for the given date
// (YYYY-MM-DD).
func (c *Client) AttendanceForDate(ctx context.Context, studentID, date string) ([]Record, error) {
	if c.Skip {
		return []Record{}, nil
	}

	endpoint := fmt.Sprintf("%s/attendance?date=%s&studentId=%s",
		c.BaseURL, url.QueryEscape(date), url.QueryEscape(studentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("campus api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("campus api error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Records []Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode attendance: %w", err)
	}
	return out.Records, nil
}

// Health checks if the campus API is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("campus api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("campus api unhealthy: %s", resp.Status)
	}
	return nil
}
