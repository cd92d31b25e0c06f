package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"renovateAi/internal/vision"
)

// ErrUploaderDisabled indicates that uploads are not currently enabled.
var ErrUploaderDisabled = errors.New("media uploader disabled")

// UploadInput wraps the payload required for persisting a file. Folder
// groups objects, typically by session.
type UploadInput struct {
	Folder      string
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the canonical object key and its accessible URL.
type UploadResult struct {
	Key string
	URL string
}

// Uploader hides the backing implementation for storing files.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

type disabledUploader struct{}

func (disabledUploader) Upload(_ context.Context, _ UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}

// Disabled returns an uploader that always signals disabled uploads.
func Disabled() Uploader {
	return disabledUploader{}
}

// UploadConcept stores one rendered concept under the session's folder.
func UploadConcept(ctx context.Context, u Uploader, sessionID string, variationIndex int, img vision.GeneratedImage) (UploadResult, error) {
	if len(img.Data) == 0 {
		return UploadResult{}, errors.New("concept image is empty")
	}
	return u.Upload(ctx, UploadInput{
		Folder:      sessionID,
		Filename:    fmt.Sprintf("concept-%d%s", variationIndex, ExtensionFor(img.MIMEType)),
		ContentType: img.MIMEType,
		Body:        bytes.NewReader(img.Data),
		Size:        int64(len(img.Data)),
	})
}

// ExtensionFor maps an image MIME type onto a file extension.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
