// Package upload implements the single-file image upload used by the
// onboarding wizards and the agent attachment button.
package upload

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/planperfect/planperfect/internal/config"
)

var (
	// ErrUnsupportedType rejects anything outside the image allow-list.
	ErrUnsupportedType = errors.New("only PNG, JPG and JPEG images are supported")
	// ErrFileTooLarge rejects files at or above config.MaxUploadBytes.
	ErrFileTooLarge = errors.New("file is too large")
	// ErrNoFile is returned by Confirm when nothing is staged.
	ErrNoFile = errors.New("no file selected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("uploader closed")
)

// Validate checks a candidate file. It never touches uploader state.
func Validate(mimeType string, size int64) error {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if !slices.Contains(config.AllowedImageTypes, mt) {
		return fmt.Errorf("%w (got %q)", ErrUnsupportedType, mimeType)
	}
	if size >= config.MaxUploadBytes {
		return fmt.Errorf("%w: %s, limit is %s", ErrFileTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(config.MaxUploadBytes))
	}
	return nil
}

// FileRecord is a staged or confirmed upload.
type FileRecord struct {
	Name       string
	MIME       string
	Bytes      int64
	Size       string // human readable, e.g. "2.4 MiB"
	PreviewURL string
	Data       []byte
}

func newRecord(name, mimeType string, data []byte) FileRecord {
	n := int64(len(data))
	return FileRecord{
		Name:  name,
		MIME:  mimeType,
		Bytes: n,
		Size:  humanize.IBytes(uint64(n)),
		Data:  data,
	}
}
