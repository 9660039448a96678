// Package gateway is the typed client for the course-authoring backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AccessTokenHeader carries the static API access token on every request.
const AccessTokenHeader = "X-Access-Token"

// ChatIDHeader carries the server correlation id of a generation.
const ChatIDHeader = "x-chat-id"

// maxErrorBody bounds how much of a failed response is kept for messages.
const maxErrorBody = 64 * 1024

// Client handles communication with the backend gateway
type Client struct {
	baseURL         string
	accessToken     string
	httpClient      *http.Client
	streamingClient *http.Client
}

// NewClient creates a new gateway client. The timeout applies to plain
// JSON calls; streamed generations are bounded by their context only.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamingClient: &http.Client{},
	}
}

// Stop asks the backend to halt the generation identified by chatID.
func (c *Client) Stop(ctx context.Context, chatID string) error {
	path := "/llama/stop?chat_id=" + url.QueryEscape(chatID)
	var resp StopResponse
	if err := c.do(ctx, "stop generation", http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "stopped" {
		return fmt.Errorf("%w: status %q", ErrNotStopped, resp.Status)
	}
	return nil
}

// FetchUserLogs returns the server-recorded exchanges for a user.
func (c *Client) FetchUserLogs(ctx context.Context, req UserLogRequest) ([]LogEntry, error) {
	var resp dataEnvelope[[]LogEntry]
	if err := c.do(ctx, "fetch user logs", http.MethodPost, "/user/userlogs", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateCourse stores the outline payload of a course.
func (c *Client) CreateCourse(ctx context.Context, rec CourseRecord) (json.RawMessage, error) {
	var resp dataEnvelope[json.RawMessage]
	if err := c.do(ctx, "create course", http.MethodPost, "/course/create", rec, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CourseDetail fetches the stored outline of one course. The backend wraps
// the record in a list; an empty list yields a zero record and false.
func (c *Client) CourseDetail(ctx context.Context, key CourseKey) (CourseRecord, bool, error) {
	var resp dataEnvelope[[]CourseRecord]
	if err := c.do(ctx, "course detail", http.MethodPost, "/course/detail", key, &resp); err != nil {
		return CourseRecord{}, false, err
	}
	if len(resp.Data) == 0 {
		return CourseRecord{}, false, nil
	}
	return resp.Data[0], true, nil
}

// ListCourses returns every course owned by userID.
func (c *Client) ListCourses(ctx context.Context, userID int64) ([]CourseRecord, error) {
	body := struct {
		UserID int64 `json:"userid"`
	}{userID}
	var resp dataEnvelope[[]CourseRecord]
	if err := c.do(ctx, "list courses", http.MethodPost, "/course/list", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DocumentPreview returns the assembled HTML preview of a course.
func (c *Client) DocumentPreview(ctx context.Context, req PreviewRequest) (string, error) {
	var resp struct {
		HTML string `json:"html"`
	}
	if err := c.do(ctx, "document preview", http.MethodPost, "/course/document-preview", req, &resp); err != nil {
		return "", err
	}
	return resp.HTML, nil
}

// Prompts returns stored prompt templates for an outline type.
func (c *Client) Prompts(ctx context.Context, req PromptRequest) ([]Prompt, error) {
	var resp dataEnvelope[[]Prompt]
	if err := c.do(ctx, "fetch prompts", http.MethodPost, "/gpt/prompts", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SlugDetail resolves a normalised slug.
func (c *Client) SlugDetail(ctx context.Context, slug string) (json.RawMessage, error) {
	body := struct {
		Slug string `json:"slug"`
	}{slug}
	var resp json.RawMessage
	if err := c.do(ctx, "slug detail", http.MethodPost, "/user/slugdetail", body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateUser registers a user record with the backend.
func (c *Client) CreateUser(ctx context.Context, req UserRequest) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, "create user", http.MethodPost, "/user/create", req, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

// UpdateUserStatus changes the status flag of a user record.
func (c *Client) UpdateUserStatus(ctx context.Context, id int64, status int) (Ack, error) {
	body := struct {
		Status int `json:"status"`
	}{status}
	var ack Ack
	path := fmt.Sprintf("/user/update/%d", id)
	if err := c.do(ctx, "update user", http.MethodPut, path, body, &ack); err != nil {
		return Ack{}, err
	}
	return ack, nil
}

// do executes a JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	c.setHeaders(httpReq, "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set(AccessTokenHeader, c.accessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
}

// checkStatus maps non-2xx responses to a TransportError carrying the
// server's message when one can be recovered.
func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	return strings.TrimSpace(string(body))
}
