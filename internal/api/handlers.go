// handlers.go - Bill extraction HTTP handler and error mapping

package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bosocmputer/bill_extract_gemini/internal/common"
	"github.com/bosocmputer/bill_extract_gemini/internal/document"
	"github.com/gin-gonic/gin"
)

var (
	ErrNoInput       = errors.New("either 'file' or 'document' must be provided")
	ErrBothInputs    = errors.New("provide either 'file' or 'document', not both")
	ErrInvalidUpload = errors.New("invalid upload")
	ErrMissingAPIKey = errors.New("google api key not configured")
)

// ExtractBillRequest is the JSON form of the request.
type ExtractBillRequest struct {
	Document string `json:"document"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

// Handler serves the extraction endpoint.
type Handler struct {
	Fetcher        document.Fetcher
	Pipeline       *Pipeline
	APIKey         func() string
	MaxUploadBytes int64
}

// extractInput is the caller's choice of input mode.
type extractInput struct {
	file        *multipart.FileHeader
	documentURL string
}

// ExtractBillData handles POST /extract-bill-data.
func (h *Handler) ExtractBillData(c *gin.Context) {
	reqCtx := common.NewRequestContext(c.GetString(requestIDKey))

	// Step 1: Validate the input mode
	input, err := h.bindInput(c)
	if err != nil {
		h.fail(c, reqCtx, err)
		return
	}

	// Step 2: Resolve the model credential
	apiKey := h.APIKey()
	if apiKey == "" {
		h.fail(c, reqCtx, ErrMissingAPIKey)
		return
	}

	// Step 3: Acquire the document
	reqCtx.StartStep("acquire_document")
	var doc document.Document
	if input.file != nil {
		doc, err = h.readUpload(input.file)
	} else {
		reqCtx.LogInfo("📥 Downloading %s", input.documentURL)
		doc, err = document.FromURL(c.Request.Context(), h.Fetcher, input.documentURL)
	}
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		h.fail(c, reqCtx, err)
		return
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("✓ Document acquired: %d bytes", len(doc.Data))

	// Step 4: Rasterize, extract and aggregate
	response, err := h.Pipeline.Run(c.Request.Context(), doc, apiKey, reqCtx)
	if err != nil {
		h.fail(c, reqCtx, err)
		return
	}

	reqCtx.LogInfo("✅ %d page(s), %d item(s)", len(response.Data.PagewiseLineItems), response.Data.TotalItemCount)
	reqCtx.GetSummary()

	c.JSON(http.StatusOK, response)
}

// bindInput reads either the JSON body or the multipart form and enforces
// that exactly one of file / document is present.
func (h *Handler) bindInput(c *gin.Context) (extractInput, error) {
	var input extractInput

	if c.ContentType() == gin.MIMEJSON {
		var req ExtractBillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return input, fmt.Errorf("%w: invalid JSON body: %v", ErrInvalidUpload, err)
		}
		input.documentURL = strings.TrimSpace(req.Document)
	} else {
		if h.MaxUploadBytes > 0 {
			// room for multipart framing and the other form fields
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)
		}

		file, err := c.FormFile("file")
		switch {
		case err == nil:
			input.file = file
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		default:
			return input, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
		input.documentURL = strings.TrimSpace(c.PostForm("document"))
	}

	switch {
	case input.file == nil && input.documentURL == "":
		return input, ErrNoInput
	case input.file != nil && input.documentURL != "":
		return input, ErrBothInputs
	}
	return input, nil
}

func (h *Handler) readUpload(fileHeader *multipart.FileHeader) (document.Document, error) {
	if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
		return document.Document{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidUpload, fileHeader.Filename, fileHeader.Size, h.MaxUploadBytes)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if len(data) == 0 {
		return document.Document{}, fmt.Errorf("%w: %s is empty", ErrInvalidUpload, fileHeader.Filename)
	}

	return document.FromUpload(data, fileHeader.Filename), nil
}

// statusForError maps a pipeline error onto the status code and detail string.
// Caller input and transport failures are 400; everything else is 500.
func statusForError(err error) (int, string) {
	var downloadErr *document.DownloadError
	switch {
	case errors.As(err, &downloadErr):
		return http.StatusBadRequest, "Failed to download document: " + downloadErr.Error()
	case errors.Is(err, ErrNoInput), errors.Is(err, ErrBothInputs), errors.Is(err, ErrInvalidUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrMissingAPIKey):
		return http.StatusInternalServerError, "Google API key not configured"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (h *Handler) fail(c *gin.Context, reqCtx *common.RequestContext, err error) {
	status, detail := statusForError(err)
	if status >= http.StatusInternalServerError {
		reqCtx.LogError("%s", detail)
	} else {
		reqCtx.LogWarning("%s", detail)
	}
	c.JSON(status, ErrorResponse{Detail: detail, RequestID: reqCtx.RequestID})
}
