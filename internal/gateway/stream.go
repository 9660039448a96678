package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// chunkBufferSize is the largest chunk handed to OnChunk in one call.
const chunkBufferSize = 32 * 1024

// StreamCallbacks receive the progress of a streamed generation
type StreamCallbacks struct {
	OnChatID func(string) // Called once the x-chat-id header is known
	OnChunk  func(string) // Called for every decoded chunk, in arrival order
}

// Generate posts a generation request and streams the plain-text response.
// The returned text is the concatenation of every chunk passed to OnChunk.
func (c *Client) Generate(ctx context.Context, req GenerateRequest, callbacks StreamCallbacks) (string, error) {
	if len(req.FilePaths) == 0 {
		req.FilePaths = []string{""}
	}
	if req.ActionType == "" {
		req.ActionType = "titledata"
	}
	if req.QueryType == "" {
		req.QueryType = "false"
	}

	// Marshal request to JSON
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("generate: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/llama/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("generate: failed to create request: %w", err)
	}
	c.setHeaders(httpReq, "application/json")

	// Execute request with streaming client (no timeout)
	resp, err := c.streamingClient.Do(httpReq)
	if err != nil {
		return "", &TransportError{Op: "generate", Err: err}
	}
	defer resp.Body.Close()

	if chatID := resp.Header.Get(ChatIDHeader); chatID != "" && callbacks.OnChatID != nil {
		callbacks.OnChatID(chatID)
	}

	if err := checkStatus("generate", resp); err != nil {
		return "", err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return "", &TransportError{Op: "generate", Err: ErrNoBody}
	}

	text, err := ReadChunks(resp.Body, callbacks.OnChunk)
	if err != nil {
		return text, &TransportError{Op: "generate", Err: fmt.Errorf("failed to stream response: %w", err)}
	}
	return text, nil
}

// ReadChunks decodes body as UTF-8 and hands every decoded chunk to onChunk.
// A multi-byte character split across transport reads is held back until it
// is complete; ill-formed bytes decode to U+FFFD.
func ReadChunks(body io.Reader, onChunk func(string)) (string, error) {
	reader := transform.NewReader(body, unicode.UTF8.NewDecoder())
	buf := make([]byte, chunkBufferSize)
	var full strings.Builder

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			full.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), err
		}
	}
}
