package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"mime"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// pdfToImage renders the first page of a PDF (e.g. a product sheet)
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF photos
func decodeImage(data []byte, mediaType string) (image.Image, error) {
	// iPhones upload HEIC, which the standard image package can't read
	if isHEICFormat(data) || isHEICMediaType(mediaType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format %q (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", mediaType, err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMediaType(mediaType string) bool {
	return strings.Contains(mediaType, "heic") || strings.Contains(mediaType, "heif")
}

// mediaType lowercases a Content-Type header and drops its parameters
func mediaType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		return parsed
	}
	return contentType
}

// toPNG normalises a downloaded image to PNG so every provider receives the
// same format. PNG data is passed through untouched.
func toPNG(data []byte, contentType string) ([]byte, error) {
	mt := mediaType(contentType)
	if mt == "image/png" && !isHEICFormat(data) {
		return data, nil
	}

	var (
		img image.Image
		err error
	)
	if mt == "application/pdf" {
		img, err = pdfToImage(data)
	} else {
		img, err = decodeImage(data, mt)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
