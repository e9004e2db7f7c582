// Package imageenc turns image files into data URIs that can be embedded in
// comment text as "![image](<data-uri>)" tokens.
package imageenc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxSize is the largest accepted image, in bytes
const MaxSize = 2 * 1024 * 1024

var (
	// ErrNotImage is returned for files that are not images
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge is returned for images bigger than MaxSize
	ErrTooLarge = errors.New("image too large")
	// ErrRead is returned when the image cannot be read
	ErrRead = errors.New("cannot read image")
)

// Error is a rejected image together with the message shown to the user
type Error struct {
	Alert string
	Err   error
}

func (e *Error) Error() string {
	return e.Alert
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validate checks the MIME type first and the size second
func Validate(mimeType string, size int64) error {
	if !strings.HasPrefix(mimeType, "image/") {
		return &Error{Alert: "Please select an image file", Err: ErrNotImage}
	}
	if size > MaxSize {
		return &Error{Alert: "Image size should be less than 2MB", Err: ErrTooLarge}
	}
	return nil
}

// DataURI encodes data as a base64 data URI tagged with the MIME type
func DataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// Token returns the text token embedding a data URI in a comment
func Token(dataURI string) string {
	return fmt.Sprintf("![image](%s)", dataURI)
}

// AppendToken appends the image token to a draft, on its own line when the draft is not empty
func AppendToken(draft, dataURI string) string {
	if draft != "" {
		draft += "\n"
	}
	return draft + Token(dataURI)
}

// File is an image that passed validation and can be encoded
type File struct {
	Path     string
	MIMEType string
	Size     int64
}

// Inspect checks that path is an acceptable image without reading all of it
func Inspect(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, readError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return File{}, readError(err)
	}
	if info.IsDir() {
		return File{}, &Error{Alert: "Please select an image file", Err: ErrNotImage}
	}

	mimeType, err := detectType(path, f)
	if err != nil {
		return File{}, readError(err)
	}
	if err := Validate(mimeType, info.Size()); err != nil {
		return File{}, err
	}

	return File{Path: path, MIMEType: mimeType, Size: info.Size()}, nil
}

// Encode reads the whole file and returns its data URI
func (file File) Encode() (string, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return "", readError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return "", readError(err)
	}
	// the file may have grown since it was inspected
	if err := Validate(file.MIMEType, int64(len(data))); err != nil {
		return "", err
	}

	return DataURI(file.MIMEType, data), nil
}

// EncodeFile validates and reads an image file and returns its data URI
func EncodeFile(path string) (string, error) {
	file, err := Inspect(path)
	if err != nil {
		return "", err
	}
	return file.Encode()
}

// detectType guesses the MIME type from the extension, falling back to sniffing the content.
// The reader is rewound afterwards.
func detectType(path string, f io.ReadSeeker) (string, error) {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType, nil
		}
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	return mediaType, nil
}

func readError(err error) error {
	return &Error{Alert: "Failed to read image file", Err: fmt.Errorf("%w: %v", ErrRead, err)}
}

// AlertMessage returns the user-facing message of an encoding failure
func AlertMessage(err error) string {
	var imgErr *Error
	if errors.As(err, &imgErr) {
		return imgErr.Alert
	}
	return fmt.Sprintf("Failed to upload image: %v", err)
}
