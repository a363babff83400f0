// imageprocessor.go - Optional page preprocessing for better recognition accuracy

package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// PreprocessPage decodes an encoded page, downsizes it so the longest side is at most
// maxDimension, applies light enhancement and re-encodes it as PNG.
func PreprocessPage(data []byte, maxDimension int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = resizeToFit(img, maxDimension)
	img = applyLightEnhancement(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), nil
}

// PreprocessPages runs PreprocessPage over every page. A page that cannot be
// processed keeps its original bytes; failures are returned for logging only.
func PreprocessPages(pages []PageImage, maxDimension int) []error {
	var failures []error
	for i := range pages {
		processed, err := PreprocessPage(pages[i].Data, maxDimension)
		if err != nil {
			failures = append(failures, fmt.Errorf("page %d: %w", pages[i].Number, err))
			continue
		}
		pages[i].Data = processed
		pages[i].MIMEType = "image/png"
	}
	return failures
}

func resizeToFit(img image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return img
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width > maxDimension || height > maxDimension {
		if width > height {
			return imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		}
		return imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
	}
	return img
}

// applyLightEnhancement sharpens and lifts contrast without grayscale, so colour stamps stay readable.
func applyLightEnhancement(img image.Image) image.Image {
	result := imaging.Sharpen(img, 1.0)
	result = imaging.AdjustContrast(result, 15)
	return result
}
