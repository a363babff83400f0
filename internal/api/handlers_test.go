package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bosocmputer/bill_extract_gemini/internal/ai"
	"github.com/bosocmputer/bill_extract_gemini/internal/common"
	"github.com/bosocmputer/bill_extract_gemini/internal/document"
	"github.com/bosocmputer/bill_extract_gemini/internal/processor"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const pageReply = `{"page_type":"Bill Detail","bill_items":[{"item_name":"Consultation","item_amount":500,"item_rate":500,"item_quantity":1},{"item_name":"X-Ray","item_amount":1200,"item_rate":1200,"item_quantity":1}]}`

type fakeRasterizer struct {
	pages [][]byte
	err   error
	calls int
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	f.calls++
	return f.pages, f.err
}

type fakeExtractor struct {
	reply  string
	usage  *common.TokenUsage
	failOn int
	seen   []processor.PageImage
	closed bool
}

func (f *fakeExtractor) ExtractPage(ctx context.Context, page processor.PageImage, reqCtx *common.RequestContext) (*ai.PageLineItems, *common.TokenUsage, error) {
	f.seen = append(f.seen, page)
	if page.Number == f.failOn {
		return nil, f.usage, fmt.Errorf("page %d: %w", page.Number, ai.CategorizeGeminiError(errors.New("Quota exceeded")))
	}
	items, err := ai.ParsePageResponse(f.reply, page.Number)
	if err != nil {
		return nil, f.usage, fmt.Errorf("page %d: %w", page.Number, err)
	}
	return items, f.usage, nil
}

func (f *fakeExtractor) GetProviderName() string { return "fake" }

func (f *fakeExtractor) Close() error {
	f.closed = true
	return nil
}

type testEnv struct {
	router       *gin.Engine
	rasterizer   *fakeRasterizer
	extractor    *fakeExtractor
	factoryCalls int
	apiKey       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		rasterizer: &fakeRasterizer{},
		extractor:  &fakeExtractor{reply: pageReply},
		apiKey:     "test-key",
	}

	h := &Handler{
		Fetcher: document.NewHTTPFetcher(5*time.Second, 1<<20),
		Pipeline: &Pipeline{
			Rasterizer: env.rasterizer,
			NewExtractor: func(ctx context.Context, apiKey string) (ai.PageExtractor, error) {
				env.factoryCalls++
				assert.Equal(t, "test-key", apiKey)
				return env.extractor, nil
			},
		},
		APIKey:         func() string { return env.apiKey },
		MaxUploadBytes: 1 << 20,
	}
	env.router = NewRouter(h, "*")
	return env
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder) ai.ExtractBillResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ai.ExtractBillResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestExtractBillData_SinglePNGUpload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartRequest(t, "/extract-bill-data", "receipt.png", testPNG(t), nil))

	resp := decodeSuccess(t, w)
	assert.True(t, resp.IsSuccess)
	require.Len(t, resp.Data.PagewiseLineItems, 1)
	assert.Equal(t, "1", resp.Data.PagewiseLineItems[0].PageNo)
	assert.Equal(t, 2, resp.Data.TotalItemCount)

	assert.Equal(t, 0, env.rasterizer.calls, "images are not rasterized")
	require.Len(t, env.extractor.seen, 1)
	assert.Equal(t, "image/png", env.extractor.seen[0].MIMEType)
	assert.True(t, env.extractor.closed)
}

func TestExtractBillData_ThreePagePDF(t *testing.T) {
	env := newTestEnv(t)
	env.rasterizer.pages = [][]byte{testPNG(t), testPNG(t), testPNG(t)}
	env.extractor.usage = &common.TokenUsage{TotalTokens: 150, InputTokens: 100, OutputTokens: 40}

	w := env.do(multipartRequest(t, "/extract-bill-data", "scan.bin", []byte("%PDF-1.7 test"), nil))

	resp := decodeSuccess(t, w)
	require.Len(t, resp.Data.PagewiseLineItems, 3)
	for i, page := range resp.Data.PagewiseLineItems {
		assert.Equal(t, fmt.Sprint(i+1), page.PageNo)
	}
	assert.Equal(t, 6, resp.Data.TotalItemCount)
	// totals are summed as reported, never recomputed
	assert.Equal(t, common.TokenUsage{TotalTokens: 450, InputTokens: 300, OutputTokens: 120}, resp.TokenUsage)

	assert.Equal(t, 1, env.rasterizer.calls)
	require.Len(t, env.extractor.seen, 3)
	for i, page := range env.extractor.seen {
		assert.Equal(t, i+1, page.Number, "pages are extracted in order")
	}
}

func TestExtractBillData_PDFByHint(t *testing.T) {
	env := newTestEnv(t)
	env.rasterizer.pages = [][]byte{testPNG(t)}

	w := env.do(multipartRequest(t, "/extract-bill-data", "BILL.PDF", []byte("not really a pdf"), nil))

	decodeSuccess(t, w)
	assert.Equal(t, 1, env.rasterizer.calls)
}

func TestExtractBillData_URLNotFound(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	w := env.do(multipartRequest(t, "/extract-bill-data", "", nil, map[string]string{"document": srv.URL + "/bill.pdf"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errResp := decodeError(t, w)
	assert.Contains(t, errResp.Detail, "Failed to download document")
	assert.Contains(t, errResp.Detail, "404")

	assert.Equal(t, 0, env.factoryCalls, "no model call on transport failure")
	assert.Empty(t, env.extractor.seen)
}

func TestExtractBillData_URLViaJSONBody(t *testing.T) {
	env := newTestEnv(t)
	env.rasterizer.pages = [][]byte{testPNG(t), testPNG(t)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 remote"))
	}))
	defer srv.Close()

	w := env.do(jsonRequest("/api/v1/extract-bill-data", `{"document": "`+srv.URL+`/bill"}`))

	resp := decodeSuccess(t, w)
	assert.Len(t, resp.Data.PagewiseLineItems, 2)
	assert.Equal(t, 1, env.rasterizer.calls)
}

func TestExtractBillData_NoInput(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"empty multipart", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/extract-bill-data", "", nil, nil)
		}},
		{"blank document field", func(t *testing.T) *http.Request {
			return multipartRequest(t, "/extract-bill-data", "", nil, map[string]string{"document": "   "})
		}},
		{"empty json", func(t *testing.T) *http.Request {
			return jsonRequest("/extract-bill-data", `{}`)
		}},
		{"no body", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/extract-bill-data", nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			w := env.do(tt.req(t))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			errResp := decodeError(t, w)
			assert.Contains(t, errResp.Detail, "file")
			assert.Contains(t, errResp.Detail, "document")
			assert.Equal(t, 0, env.factoryCalls)
		})
	}
}

func TestExtractBillData_BothInputs(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(multipartRequest(t, "/extract-bill-data", "a.png", testPNG(t), map[string]string{"document": "https://example.com/a.png"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrBothInputs.Error(), decodeError(t, w).Detail)
}

func TestExtractBillData_FencedReplyMatchesUnfenced(t *testing.T) {
	plainEnv := newTestEnv(t)
	plain := decodeSuccess(t, plainEnv.do(multipartRequest(t, "/extract-bill-data", "a.png", testPNG(t), nil)))

	fencedEnv := newTestEnv(t)
	fencedEnv.extractor.reply = "```json\n" + pageReply + "\n```"
	fenced := decodeSuccess(t, fencedEnv.do(multipartRequest(t, "/extract-bill-data", "a.png", testPNG(t), nil)))

	assert.Equal(t, plain.Data, fenced.Data)
}

func TestExtractBillData_MissingAPIKey(t *testing.T) {
	env := newTestEnv(t)
	env.apiKey = ""

	w := env.do(multipartRequest(t, "/extract-bill-data", "bill.pdf", []byte("%PDF-1.4"), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Google API key not configured", decodeError(t, w).Detail)
	assert.Equal(t, 0, env.rasterizer.calls)
}

func TestExtractBillData_RasterizationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.rasterizer.err = errors.New("cannot open document")

	w := env.do(multipartRequest(t, "/extract-bill-data", "broken.pdf", []byte("%PDF-garbage"), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "cannot open document")
	assert.Equal(t, 0, env.factoryCalls)
}

func TestExtractBillData_PageFailureAbortsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.rasterizer.pages = [][]byte{testPNG(t), testPNG(t), testPNG(t)}
	env.extractor.failOn = 2

	w := env.do(multipartRequest(t, "/extract-bill-data", "bill.pdf", []byte("%PDF-1.4"), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "quota_exceeded")
	assert.Len(t, env.extractor.seen, 2, "no page after the failing one is sent")
	assert.True(t, env.extractor.closed)
}

func TestExtractBillData_UnparseableReply(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.reply = `{"bill_items":[{"item_name":"Dressing"}]}`

	w := env.do(multipartRequest(t, "/extract-bill-data", "a.png", testPNG(t), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "item_amount is required")
}

func TestExtractBillData_NonFiniteAmountFailsRequest(t *testing.T) {
	for _, value := range []string{"NaN", "Infinity", "inf"} {
		t.Run(value, func(t *testing.T) {
			env := newTestEnv(t)
			env.extractor.reply = `{"bill_items":[{"item_name":"X","item_amount":"` + value + `"}]}`

			w := env.do(multipartRequest(t, "/extract-bill-data", "a.png", testPNG(t), nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			errResp := decodeError(t, w)
			assert.Contains(t, errResp.Detail, "must be a finite number")
			assert.NotEmpty(t, errResp.RequestID)
		})
	}
}

func TestExtractBillData_InvalidUploads(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(multipartRequest(t, "/extract-bill-data", "empty.png", []byte{}, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Detail, "empty")
	})

	t.Run("too large", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(multipartRequest(t, "/extract-bill-data", "big.png", bytes.Repeat([]byte("x"), 3<<20), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, env.factoryCalls)
	})

	t.Run("malformed json", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(jsonRequest("/extract-bill-data", `{"document":`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExtractBillData_RequestIDEcho(t *testing.T) {
	env := newTestEnv(t)
	req := jsonRequest("/extract-bill-data", `{}`)
	req.Header.Set("X-Request-ID", "req-123")

	w := env.do(req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", decodeError(t, w).RequestID)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"download", fmt.Errorf("acquire: %w", &document.DownloadError{URL: "http://x", StatusCode: 503}), http.StatusBadRequest, "Failed to download document: HTTP 503 from http://x"},
		{"no input", ErrNoInput, http.StatusBadRequest, ErrNoInput.Error()},
		{"missing key", ErrMissingAPIKey, http.StatusInternalServerError, "Google API key not configured"},
		{"wrapped missing key", fmt.Errorf("resolve credential: %w", ErrMissingAPIKey), http.StatusInternalServerError, "Google API key not configured"},
		{"no pages", processor.ErrNoPages, http.StatusInternalServerError, "PDF has no pages"},
		{"model", ai.CategorizeGeminiError(errors.New("boom")), http.StatusInternalServerError, "[unknown] boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := statusForError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.detail, detail)
		})
	}
}
