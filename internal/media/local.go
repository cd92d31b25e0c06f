package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalUploader writes files below a directory on the local filesystem. The
// CLI uses it to drop rendered concepts next to the source photo.
type LocalUploader struct {
	BaseDir string
}

// NewLocalUploader constructs an uploader that writes to the provided directory.
// If baseDir is empty, os.TempDir() is used.
func NewLocalUploader(baseDir string) (*LocalUploader, error) {
	dir := baseDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalUploader{BaseDir: dir}, nil
}

// Upload writes the content to BaseDir/Folder/Filename, replacing an older
// file of the same name. Without a filename a unique temp name is used.
func (l *LocalUploader) Upload(_ context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, fmt.Errorf("upload body is required")
	}

	dir := filepath.Join(l.BaseDir, filepath.Base(filepath.Clean("/"+input.Folder)))
	if input.Folder == "" {
		dir = l.BaseDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("create media dir: %w", err)
	}

	var (
		f   *os.File
		err error
	)
	if name := filepath.Base(input.Filename); input.Filename != "" && name != "." && name != "/" {
		f, err = os.Create(filepath.Join(dir, name))
	} else {
		f, err = os.CreateTemp(dir, "concept-*"+ExtensionFor(input.ContentType))
	}
	if err != nil {
		return UploadResult{}, fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, input.Body); err != nil {
		os.Remove(f.Name())
		return UploadResult{}, fmt.Errorf("write media file: %w", err)
	}

	abs, err := filepath.Abs(f.Name())
	if err != nil {
		abs = f.Name()
	}
	return UploadResult{
		Key: abs,
		URL: "file://" + filepath.ToSlash(abs),
	}, nil
}
