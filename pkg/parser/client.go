package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"syllabus-calendar-be/internal/entity"

	"github.com/google/uuid"
)

// Client talks to the remote structured-parsing service that turns extracted
// syllabus text into draft calendar events. Every call carries a generated
// request id, which is echoed in all errors for server-side log correlation.
type Client struct {
	BaseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8800"
	}
	return &Client{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type parseRequest struct {
	Text      string `json:"text"`
	RequestId string `json:"request_id"`
}

// DraftEvent is the wire schema of a single parsed event.
type DraftEvent struct {
	Title      string     `json:"title"`
	CourseCode string     `json:"course_code"`
	Type       string     `json:"type"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end,omitempty"`
	AllDay     bool       `json:"all_day"`
	Location   string     `json:"location,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Recurrence string     `json:"recurrence,omitempty"`
	Confidence float64    `json:"confidence"`
}

type parseResponse struct {
	Events      []DraftEvent    `json:"events"`
	Diagnostics json.RawMessage `json:"diagnostics,omitempty"`
}

// Result is the outcome of one successful parse call.
type Result struct {
	Drafts      []DraftEvent
	Diagnostics json.RawMessage
	RequestId   string
}

// Parse sends the extracted text to the parsing backend. Errors are always
// *entity.ImportError: transport failures and timeouts map to network, non-2xx
// to server, undecodable bodies to invalid-response.
func (c *Client) Parse(ctx context.Context, text string) (*Result, error) {
	requestId := uuid.NewString()

	reqBody := parseRequest{
		Text:      text,
		RequestId: requestId,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, entity.NewImportError(entity.ErrorCategoryUnknown, err.Error(), requestId)
	}

	endpoint := fmt.Sprintf("%s/v1/parse", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, entity.NewImportError(entity.ErrorCategoryUnknown, err.Error(), requestId)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestId)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, entity.ClassifyImportError(err, requestId)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entity.ClassifyImportError(err, requestId)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, entity.NewImportError(
			entity.ErrorCategoryServer,
			fmt.Sprintf("parsing service returned status %d", resp.StatusCode),
			requestId,
		)
	}

	var parsed parseResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, entity.NewImportError(
			entity.ErrorCategoryInvalidResponse,
			"undecodable parse response: "+err.Error(),
			requestId,
		)
	}

	if parsed.Events == nil {
		return nil, entity.NewImportError(
			entity.ErrorCategoryInvalidResponse,
			"parse response missing events field",
			requestId,
		)
	}

	return &Result{
		Drafts:      parsed.Events,
		Diagnostics: parsed.Diagnostics,
		RequestId:   requestId,
	}, nil
}
