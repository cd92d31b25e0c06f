package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoPhoto is returned when a request carries no image at all.
var ErrNoPhoto = errors.New("vision: no photo supplied")

// PhotoInput is the JSON form of a photo: inline base64 or a URL to fetch.
type PhotoInput struct {
	ImageURL  string `json:"image_url,omitempty"`
	ImageData string `json:"image_data,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
}

// Empty reports whether neither source is set.
func (in PhotoInput) Empty() bool {
	return strings.TrimSpace(in.ImageURL) == "" && strings.TrimSpace(in.ImageData) == ""
}

// Load resolves the input into raw bytes. Inline data wins over the URL.
func (in PhotoInput) Load(ctx context.Context, client *http.Client) (Photo, error) {
	if data := strings.TrimSpace(in.ImageData); data != "" {
		// tolerate data URLs pasted straight from a browser
		if idx := strings.Index(data, ";base64,"); idx >= 0 && strings.HasPrefix(data, "data:") {
			if in.MIMEType == "" {
				in.MIMEType = strings.TrimPrefix(data[:idx], "data:")
			}
			data = data[idx+len(";base64,"):]
		}
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return Photo{}, fmt.Errorf("vision: decode image_data: %w", err)
		}
		return checkPhoto(Photo{Data: decoded, MIMEType: in.MIMEType})
	}
	if url := strings.TrimSpace(in.ImageURL); url != "" {
		return FetchPhoto(ctx, client, url)
	}
	return Photo{}, ErrNoPhoto
}

// FetchPhoto downloads an image, refusing anything over MaxVisionImageBytes.
func FetchPhoto(ctx context.Context, client *http.Client, url string) (Photo, error) {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Photo{}, fmt.Errorf("vision: build image request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Photo{}, fmt.Errorf("vision: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Photo{}, fmt.Errorf("vision: fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxVisionImageBytes+1))
	if err != nil {
		return Photo{}, fmt.Errorf("vision: read image: %w", err)
	}
	return checkPhoto(Photo{Data: data, MIMEType: resp.Header.Get("Content-Type")})
}

// ReadMultipartPhoto reads the named file field of a multipart request.
func ReadMultipartPhoto(r *http.Request, field string) (Photo, error) {
	if err := r.ParseMultipartForm(MaxVisionImageBytes + (1 << 20)); err != nil {
		return Photo{}, fmt.Errorf("vision: parse form: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return Photo{}, ErrNoPhoto
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxVisionImageBytes+1))
	if err != nil {
		return Photo{}, fmt.Errorf("vision: read upload: %w", err)
	}
	return checkPhoto(Photo{Data: data, MIMEType: header.Header.Get("Content-Type")})
}

// ReadPhotoFile loads a photo from disk.
func ReadPhotoFile(path string) (Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Photo{}, fmt.Errorf("vision: read %s: %w", path, err)
	}
	return checkPhoto(Photo{Data: data})
}

func checkPhoto(photo Photo) (Photo, error) {
	if len(photo.Data) == 0 {
		return Photo{}, ErrNoPhoto
	}
	if len(photo.Data) > MaxVisionImageBytes {
		return Photo{}, fmt.Errorf("vision: image exceeds %d bytes", MaxVisionImageBytes)
	}
	photo.MIMEType = detectMime(photo.Data, photo.MIMEType)
	return photo, nil
}

// IsMultipart reports whether r carries a multipart form body.
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
