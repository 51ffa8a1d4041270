// Package upload validates and assembles multipart video uploads.
package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	vistream "github.com/vistream/vistream-go"
)

// Client-side upload limits, matching what the server enforces.
const (
	MaxVideoBytes     = 100 << 20 // 100 MiB
	MaxThumbnailBytes = 2 << 20   // 2 MiB
)

var videoTypes = map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
	"video/ogg":  true,
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Validate applies the client-side gates before any network traffic:
// non-empty title and description, accepted MIME types, and size limits
// (inclusive). Violations are *vistream.ValidationError.
func Validate(in vistream.AddVideoInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &vistream.ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &vistream.ValidationError{Field: "description", Reason: "required"}
	}

	if len(in.VideoFile.Data) == 0 {
		return &vistream.ValidationError{Field: "videoFile", Reason: "required"}
	}
	if !videoTypes[in.VideoFile.ContentType] {
		return &vistream.ValidationError{Field: "videoFile", Reason: "type"}
	}
	if len(in.VideoFile.Data) > MaxVideoBytes {
		return &vistream.ValidationError{Field: "videoFile", Reason: "size"}
	}

	if len(in.Thumbnail.Data) == 0 {
		return &vistream.ValidationError{Field: "thumbnail", Reason: "required"}
	}
	if !imageTypes[in.Thumbnail.ContentType] {
		return &vistream.ValidationError{Field: "thumbnail", Reason: "type"}
	}
	if len(in.Thumbnail.Data) > MaxThumbnailBytes {
		return &vistream.ValidationError{Field: "thumbnail", Reason: "size"}
	}

	return nil
}

// Build assembles the multipart body: text fields first (title,
// description), then the binaries (videoFile, thumbnail). Returns the body
// and its Content-Type with boundary.
func Build(in vistream.AddVideoInput) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("title", in.Title); err != nil {
		return nil, "", fmt.Errorf("vistream/upload: write title: %w", err)
	}
	if err := w.WriteField("description", in.Description); err != nil {
		return nil, "", fmt.Errorf("vistream/upload: write description: %w", err)
	}

	if err := writeFile(w, "videoFile", in.VideoFile); err != nil {
		return nil, "", err
	}
	if err := writeFile(w, "thumbnail", in.Thumbnail); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("vistream/upload: finalize body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// writeFile adds one file part with its real content type; the stock
// CreateFormFile helper would stamp application/octet-stream.
func writeFile(w *multipart.Writer, field string, f vistream.FileInput) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
	h.Set("Content-Type", f.ContentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("vistream/upload: create %s part: %w", field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("vistream/upload: write %s part: %w", field, err)
	}
	return nil
}
