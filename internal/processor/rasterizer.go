// rasterizer.go - PDF page rendering via MuPDF

package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer renders every page of a PDF to an encoded image, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// ErrNoPages is returned for a PDF that opens but contains no pages.
var ErrNoPages = errors.New("PDF has no pages")

// RenderDPI renders pages at 2x linear scale of the 72 dpi PDF user space.
const RenderDPI = 144.0

// FitzRasterizer implements Rasterizer using go-fitz. Pages are encoded as PNG at RenderDPI.
type FitzRasterizer struct{}

// NewFitzRasterizer creates a rasterizer.
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Rasterize opens pdf from memory and renders each page. Any failure aborts the whole document.
func (r *FitzRasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = doc.Close() }()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, ErrNoPages
	}

	pages := make([][]byte, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		png, err := doc.ImagePNG(pageNum, RenderDPI)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum+1, err)
		}
		pages = append(pages, png)
	}

	return pages, nil
}
