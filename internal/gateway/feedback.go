package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
)

// SubmitFeedback posts the feedback form as multipart/form-data.
func (c *Client) SubmitFeedback(ctx context.Context, form FeedbackForm) (Ack, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fields := []struct{ name, value string }{
		{"user_id", form.UserID},
		{"name", form.Name},
		{"email", form.Email},
		{"rating", strconv.Itoa(form.Rating)},
		{"comments", form.Comments},
		{"created_date", form.CreatedDate},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return Ack{}, fmt.Errorf("feedback: write field %s: %w", f.name, err)
		}
	}

	if att := form.Attachment; att != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachment"; filename=%q`, att.Name))
		header.Set("Content-Type", att.ContentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return Ack{}, fmt.Errorf("feedback: create attachment part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return Ack{}, fmt.Errorf("feedback: write attachment: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Ack{}, fmt.Errorf("feedback: close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text/create_sys_feedback", &body)
	if err != nil {
		return Ack{}, fmt.Errorf("feedback: failed to create request: %w", err)
	}
	c.setHeaders(httpReq, writer.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Ack{}, &TransportError{Op: "submit feedback", Err: err}
	}
	defer resp.Body.Close()

	if err := checkStatus("submit feedback", resp); err != nil {
		return Ack{}, err
	}
	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, &TransportError{Op: "submit feedback", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return ack, nil
}
