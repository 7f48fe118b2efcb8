// Package attach uploads binary attachments out-of-band and only then
// emits the message intent referencing the resulting URL. An upload
// failure sends nothing: there is never a partial image message.
package attach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	gonanoid "github.com/jaevor/go-nanoid"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

// ErrUploadFailed is surfaced to the user; the composer returns to its
// pre-send state.
var ErrUploadFailed = errors.New("attach: upload failed")

// Uploader stores a binary blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// MessageSender is the outbound side of the active session.
type MessageSender interface {
	SendMessage(content string, messageType chat.MessageType) error
}

// Pipeline sequences upload-then-send for image messages.
type Pipeline struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewPipeline creates a pipeline over the given uploader.
func NewPipeline(uploader Uploader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{uploader: uploader, logger: logger}
}

// SendImage uploads the attachment and, only on success, sends the
// image message carrying its URL. Returns the URL for optimistic UI.
func (p *Pipeline) SendImage(ctx context.Context, sender MessageSender, filename, contentType string, r io.Reader) (string, error) {
	url, err := p.uploader.Upload(ctx, filename, contentType, r)
	if err != nil {
		p.logger.Warn("attachment upload failed", "filename", filename, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := sender.SendMessage(url, chat.MessageImage); err != nil {
		return "", err
	}
	return url, nil
}

// HTTPUploader posts multipart uploads to the binary-upload collaborator.
// Object names are nanoid-prefixed so concurrent uploads of the same
// filename cannot collide.
type HTTPUploader struct {
	endpoint string
	http     *http.Client
	newID    func() string
}

// NewHTTPUploader creates an uploader against the upload endpoint
// (e.g. "http://localhost:3000/api/v1/uploads").
func NewHTTPUploader(endpoint string) (*HTTPUploader, error) {
	newID, err := gonanoid.Standard(12)
	if err != nil {
		return nil, err
	}
	return &HTTPUploader{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
		newID:    newID,
	}, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	name := u.newID() + "-" + path.Base(filename)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := writer.WriteField("content_type", contentType); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("upload response missing url")
	}
	return out.URL, nil
}
