package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// Client is the HTTP API client. All calls go through the versioned REST
// surface; validation that can fail locally fails before any request is
// made.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for a server base URL such as
// "http://localhost:8090".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Job is the polled view of a staging job.
type Job struct {
	ID               string  `json:"id"`
	ImageID          string  `json:"image_id"`
	Status           string  `json:"status"`
	ProgressPercent  float64 `json:"progress_percent"`
	CurrentStep      string  `json:"current_step"`
	ErrorMessage     string  `json:"error_message"`
	ResultURL        string  `json:"result_url"`
	StylePreset      string  `json:"style_preset"`
	RoomType         string  `json:"room_type"`
	OriginalImageURL string  `json:"original_image_url"`
}

// JobRequest is a staging submission. RoomType may be left empty for
// images inside a room; the room's own type is used then.
type JobRequest struct {
	RoomType string
	Options  staging.Options
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return &staging.SubmissionError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &staging.SubmissionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &staging.SubmissionError{Op: op, Err: err}
	}

	if resp.StatusCode >= 400 {
		return c.decodeError(op, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &staging.SubmissionError{Op: op, Err: fmt.Errorf("invalid response body: %w", err)}
		}
	}
	return nil
}

// decodeError maps HTTP rejections back onto the error taxonomy so
// callers handle server-side and client-side failures uniformly.
func (c *Client) decodeError(op string, status int, body []byte) error {
	var ae apiError
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error != "" {
		message = ae.Error
	}

	switch status {
	case http.StatusNotFound:
		return &staging.NotFoundError{Resource: op, ID: message}
	case http.StatusBadRequest:
		return &staging.ValidationError{Reason: message}
	case http.StatusConflict:
		return &staging.PreconditionError{Reason: message}
	default:
		return &staging.SubmissionError{Op: op, Err: fmt.Errorf("server returned %d: %s", status, message)}
	}
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return &staging.SubmissionError{Op: op, Err: err}
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(data), "application/json", out)
}

// CreateProperty creates a property.
func (c *Client) CreateProperty(ctx context.Context, name, address string) (*models.Property, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &staging.ValidationError{Field: "name", Reason: "name must not be empty"}
	}
	var property models.Property
	err := c.postJSON(ctx, "create property", "/api/v1/properties",
		map[string]string{"name": name, "address": address}, &property)
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// ListProperties fetches all properties.
func (c *Client) ListProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := c.do(ctx, "list properties", http.MethodGet, "/api/v1/properties", nil, "", &properties)
	return properties, err
}

// GetProperty fetches one property with its rooms and images.
func (c *Client) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	var property models.Property
	if err := c.do(ctx, "get property", http.MethodGet, "/api/v1/properties/"+id, nil, "", &property); err != nil {
		return nil, err
	}
	return &property, nil
}

// CreateRoom adds a room to a property. roomType may be an enumerated id
// or a free-form label.
func (c *Client) CreateRoom(ctx context.Context, propertyID, name, roomType string) (*models.Room, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &staging.ValidationError{Field: "name", Reason: "name must not be empty"}
	}
	var room models.Room
	err := c.postJSON(ctx, "create room", "/api/v1/properties/"+propertyID+"/rooms",
		map[string]string{"name": name, "room_type": roomType}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoom fetches a room with its images and their latest outcomes.
func (c *Client) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := c.do(ctx, "get room", http.MethodGet, "/api/v1/rooms/"+id, nil, "", &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteRoom deletes an empty room. A room that still holds images is
// rejected server-side with a PreconditionError.
func (c *Client) DeleteRoom(ctx context.Context, id string) error {
	return c.do(ctx, "delete room", http.MethodDelete, "/api/v1/rooms/"+id, nil, "", nil)
}

// UploadImage uploads an image file. roomID may be empty for the ad-hoc
// single-shot flow.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte, roomID string) (*models.Image, error) {
	if len(data) == 0 {
		return nil, &staging.ValidationError{Field: "file", Reason: "file must not be empty"}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, &staging.SubmissionError{Op: "upload image", Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &staging.SubmissionError{Op: "upload image", Err: err}
	}
	if roomID != "" {
		if err := mw.WriteField("room_id", roomID); err != nil {
			return nil, &staging.SubmissionError{Op: "upload image", Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &staging.SubmissionError{Op: "upload image", Err: err}
	}

	var image models.Image
	if err := c.do(ctx, "upload image", http.MethodPost, "/api/v1/images/upload", &buf, mw.FormDataContentType(), &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// GetImage fetches an image with its latest staging outcome.
func (c *Client) GetImage(ctx context.Context, id string) (*models.Image, error) {
	var image models.Image
	if err := c.do(ctx, "get image", http.MethodGet, "/api/v1/images/"+id, nil, "", &image); err != nil {
		return nil, err
	}
	return &image, nil
}

// DeleteImage deletes an image and its jobs.
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	return c.do(ctx, "delete image", http.MethodDelete, "/api/v1/images/"+id, nil, "", nil)
}

// CreateJob validates the submission locally, then creates a staging
// job. room may be nil for images outside any room; when it is present
// the locked-field rules for secondary angles are enforced here, before
// any network traffic.
func (c *Client) CreateJob(ctx context.Context, room *models.Room, image *models.Image, req JobRequest) (*Job, error) {
	if image == nil {
		return nil, &staging.ValidationError{Field: "image_id", Reason: "image is required"}
	}

	roomType := req.RoomType
	if roomType == "" && room != nil {
		roomType = room.RoomType
	}

	effective, err := staging.Resolve(room, image, roomType, req.Options)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"image_id":          image.ID,
		"room_type":         roomType,
		"style_preset":      effective.StylePreset,
		"fix_white_balance": effective.FixWhiteBalance,
		"wall_decorations":  effective.WallDecorations,
		"include_tv":        effective.IncludeTV,
	}

	var job Job
	if err := c.postJSON(ctx, "create job", "/api/v1/jobs", payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, "get job", http.MethodGet, "/api/v1/jobs/"+id, nil, "", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches all jobs, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var envelope struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, "list jobs", http.MethodGet, "/api/v1/jobs", nil, "", &envelope); err != nil {
		return nil, err
	}
	return envelope.Jobs, nil
}

// DeleteJob deletes a job record.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, "delete job", http.MethodDelete, "/api/v1/jobs/"+id, nil, "", nil)
}
