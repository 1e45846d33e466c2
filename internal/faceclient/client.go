// Package faceclient calls the face recognition service that owns identity
// verification and the authoritative attendance commit. The embedding and
// matching algorithms live behind this boundary.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VerifyResult is the outcome of a 1:1 identity check.
type VerifyResult struct {
	Matched bool
	Message string
}

// MarkResult is the outcome of an attendance commit.
type MarkResult struct {
	Success          bool
	AttendanceMarked bool
	Message          string
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, calls return mock successes so the
// rest of the system can run without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// VerifyIdentity checks that the captured face belongs to the given student.
func (c *Client) VerifyIdentity(ctx context.Context, studentID, image string) (*VerifyResult, error) {
	if c.Skip {
		return &VerifyResult{Matched: true, Message: "verified (mock)"}, nil
	}
	if image == "" {
		return nil, fmt.Errorf("image required")
	}

	body, _ := json.Marshal(map[string]string{
		"student_id": studentID,
		"image":      image,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/verify-identity", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matched bool   `json:"matched"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &VerifyResult{Matched: out.Matched, Message: out.Message}, nil
}

// MarkAttendance commits the student's presence for a subject. The backend is
// the sole authority on duplicate marks; no local deduplication happens here.
func (c *Client) MarkAttendance(ctx context.Context, studentID, image, subjectID string) (*MarkResult, error) {
	if c.Skip {
		return &MarkResult{Success: true, AttendanceMarked: true, Message: "attendance marked (mock)"}, nil
	}
	if image == "" {
		return nil, fmt.Errorf("image required")
	}

	body, _ := json.Marshal(map[string]string{
		"student_id": studentID,
		"image":      image,
		"subject_id": subjectID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/mark-attendance", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Success          bool   `json:"success"`
		AttendanceMarked bool   `json:"attendance_marked"`
		Message          string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &MarkResult{
		Success:          out.Success,
		AttendanceMarked: out.AttendanceMarked,
		Message:          out.Message,
	}, nil
}

// Health checks if the face service is available.
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
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
