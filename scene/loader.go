package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const maxAssetBytes = 10 << 20

var ErrAssetTooLarge = errors.New("asset exceeds the maximum size")

// ImageLoader fetches and decodes an asset image.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// ByteCache keeps raw asset bytes so reopened designs skip the fetch.
type ByteCache interface {
	GetAssetBytes(ctx context.Context, url string) ([]byte, error)
	SetAssetBytes(ctx context.Context, url string, data []byte) error
}

// HTTPLoader loads asset images over HTTP. Relative urls are resolved
// against BaseURL.
type HTTPLoader struct {
	BaseURL string
	Client  *http.Client
	Cache   ByteCache
}

func NewHTTPLoader(baseURL string, cache ByteCache) *HTTPLoader {
	return &HTTPLoader{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
		Cache:   cache,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	target, err := ResolveURL(l.BaseURL, rawURL)
	if err != nil {
		return nil, err
	}

	if l.Cache != nil {
		data, err := l.Cache.GetAssetBytes(ctx, target)
		if err != nil {
			log.Printf("Asset cache read failed for %s: %v", target, err)
		} else if data != nil {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err == nil {
				return img, nil
			}
			log.Printf("Cached asset %s is not decodable, refetching: %v", target, err)
		}
	}

	data, err := l.fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", target, err)
	}

	if l.Cache != nil {
		if err := l.Cache.SetAssetBytes(ctx, target, data); err != nil {
			log.Printf("Asset cache write failed for %s: %v", target, err)
		}
	}

	return img, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	if len(data) > maxAssetBytes {
		return nil, ErrAssetTooLarge
	}
	return data, nil
}

// ResolveURL turns an asset url into an absolute one. Absolute urls are
// returned unchanged; anything else is resolved against base.
func ResolveURL(base, raw string) (string, error) {
	if raw == "" {
		return "", errors.New("empty asset url")
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid asset url %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return raw, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative asset url %q without a base", raw)
	}

	b, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}
