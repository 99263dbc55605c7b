package scanning

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultFetchTimeout bounds how long an image download may take
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMaxImageSize is the largest image the fetcher accepts (20MB)
	DefaultMaxImageSize = 20 << 20
)

// Fetcher downloads the image behind an image reference for providers that
// need the bytes instead of a URL.
type Fetcher struct {
	client  *resty.Client
	maxSize int64
}

// NewFetcher creates a Fetcher with default timeout and size limit
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  resty.New().SetTimeout(DefaultFetchTimeout),
		maxSize: DefaultMaxImageSize,
	}
}

// WithMaxSize sets a custom maximum image size
func (f *Fetcher) WithMaxSize(maxSize int64) *Fetcher {
	f.maxSize = maxSize
	return f
}

// Fetch downloads imageURL and returns its data and content type
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("downloading image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, "", fmt.Errorf("downloading image: status %d", res.StatusCode())
	}

	// Use LimitReader to enforce size limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, "", fmt.Errorf("image too large: exceeds limit of %d bytes", f.maxSize)
	}

	contentType := res.Header().Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}
