// pages.go - Format sniffing and page sequence construction

package processor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bosocmputer/bill_extract_gemini/internal/document"
	"github.com/gabriel-vasile/mimetype"
)

var pdfSignature = []byte("%PDF")

// PageImage is one rendered page, numbered from 1 in source order.
type PageImage struct {
	Number   int
	Data     []byte
	MIMEType string
}

// IsPDF reports whether data should be rendered as a PDF. Either signal is enough:
// the %PDF magic bytes, or a name hint ending in .pdf (any case).
func IsPDF(data []byte, hint string) bool {
	if bytes.HasPrefix(data, pdfSignature) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(hint)), ".pdf")
}

// ToPages classifies doc and returns its ordered, non-empty page sequence.
// Non-PDF input becomes a single page and is not validated here.
func ToPages(ctx context.Context, doc document.Document, rasterizer Rasterizer) ([]PageImage, error) {
	if !IsPDF(doc.Data, doc.Hint) {
		if len(doc.Data) == 0 {
			return nil, fmt.Errorf("document is empty")
		}
		return []PageImage{{
			Number:   1,
			Data:     doc.Data,
			MIMEType: DetectMIMEType(doc.Data),
		}}, nil
	}

	rendered, err := rasterizer.Rasterize(ctx, doc.Data)
	if err != nil {
		return nil, err
	}
	if len(rendered) == 0 {
		return nil, ErrNoPages
	}

	pages := make([]PageImage, len(rendered))
	for i, data := range rendered {
		pages[i] = PageImage{
			Number:   i + 1,
			Data:     data,
			MIMEType: DetectMIMEType(data),
		}
	}
	return pages, nil
}

// DetectMIMEType sniffs the content type of an encoded page, without parameters.
func DetectMIMEType(data []byte) string {
	mtype, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mtype)
}
