package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"syllabus-calendar-be/internal/entity"
	"syllabus-calendar-be/pkg/store"

	"github.com/google/uuid"
)

// OCRClient extracts text through a remote OCR service over HTTP. Used for
// scanned syllabi where pdftotext yields nothing.
type OCRClient struct {
	BaseURL    string
	httpClient *http.Client
}

func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if baseURL == "" {
		baseURL = "http://localhost:8900"
	}
	return &OCRClient{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ocrRequest struct {
	Document string `json:"document"` // base64
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

func (c *OCRClient) Extract(ctx context.Context, doc store.DocumentRef) (string, error) {
	requestId := uuid.NewString()

	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", entity.NewImportError(
			entity.ErrorCategoryValidation,
			"document could not be read: "+err.Error(),
			requestId,
		)
	}

	reqBody := ocrRequest{
		Document: base64.StdEncoding.EncodeToString(raw),
		MimeType: doc.MimeType,
		Name:     doc.Name,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", entity.NewImportError(entity.ErrorCategoryUnknown, err.Error(), requestId)
	}

	endpoint := fmt.Sprintf("%s/v1/ocr", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", entity.NewImportError(entity.ErrorCategoryUnknown, err.Error(), requestId)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestId)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", entity.ClassifyImportError(err, requestId)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", entity.ClassifyImportError(err, requestId)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", entity.NewImportError(
			entity.ErrorCategoryServer,
			fmt.Sprintf("ocr service returned status %d", resp.StatusCode),
			requestId,
		)
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(bodyBytes, &ocrResp); err != nil {
		return "", entity.NewImportError(
			entity.ErrorCategoryInvalidResponse,
			"undecodable ocr response: "+err.Error(),
			requestId,
		)
	}

	if strings.TrimSpace(ocrResp.Text) == "" {
		return "", entity.NewImportError(
			entity.ErrorCategoryValidation,
			"no extractable text in document",
			requestId,
		)
	}

	return ocrResp.Text, nil
}
