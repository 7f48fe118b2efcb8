package attach

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(_ context.Context, _, _ string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.url, nil
}

type fakeSender struct {
	sent []struct {
		content string
		kind    chat.MessageType
	}
	err error
}

func (f *fakeSender) SendMessage(content string, kind chat.MessageType) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, struct {
		content string
		kind    chat.MessageType
	}{content, kind})
	return nil
}

func TestSendImage_UploadThenSend(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.example.com/pic.png"}
	sender := &fakeSender{}
	p := NewPipeline(uploader, nil)

	url, err := p.SendImage(context.Background(), sender, "pic.png", "image/png", strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("SendImage() unexpected error: %v", err)
	}
	if url != uploader.url {
		t.Errorf("url = %q, want %q", url, uploader.url)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].content != uploader.url || sender.sent[0].kind != chat.MessageImage {
		t.Errorf("sent = %+v, want image message with upload URL", sender.sent[0])
	}
}

func TestSendImage_UploadFailureSendsNothing(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("storage unavailable")}
	sender := &fakeSender{}
	p := NewPipeline(uploader, nil)

	_, err := p.SendImage(context.Background(), sender, "pic.png", "image/png", strings.NewReader("bytes"))
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("SendImage() error = %v, want ErrUploadFailed", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages after failed upload, want 0", len(sender.sent))
	}
}

func TestSendImage_SendFailurePropagates(t *testing.T) {
	uploader := &fakeUploader{url: "https://cdn.example.com/pic.png"}
	boom := errors.New("socket closed")
	sender := &fakeSender{err: boom}
	p := NewPipeline(uploader, nil)

	if _, err := p.SendImage(context.Background(), sender, "pic.png", "image/png", strings.NewReader("b")); !errors.Is(err, boom) {
		t.Errorf("SendImage() error = %v, want %v", err, boom)
	}
}
