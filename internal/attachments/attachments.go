// Package attachments uploads files referenced from sheet rows (bill photos,
// comparison sheets, PO documents) and returns the link stored in the row.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// File is an uploaded document.
type File struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data" validate:"required"`
}

// LinkMode selects what happens to the file link after upload.
type LinkMode string

// LinkEmail mails the link to Link.To.
const LinkEmail LinkMode = "email"

// Link asks for the uploaded file link to be delivered.
type Link struct {
	Mode      LinkMode
	To        string
	Subject   string
	Reference string
	Amount    float64
}

// Notice is a link delivery handed to the Notifier.
type Notice struct {
	To        string  `json:"to"`
	Subject   string  `json:"subject"`
	Reference string  `json:"reference"`
	FileName  string  `json:"file_name"`
	URL       string  `json:"url"`
	Amount    float64 `json:"amount"`
}

// Notifier delivers file links, normally by enqueueing a mail job.
type Notifier interface {
	NotifyLink(ctx context.Context, notice Notice) error
}

// Backend stores objects and returns a retrievable URL.
type Backend interface {
	Put(ctx context.Context, object string, f File) (string, error)
}

// Uploader is the contract consumed by the procurement service.
type Uploader interface {
	Upload(ctx context.Context, f File, folder string, link *Link) (string, error)
}

// Service uploads through a Backend and delivers links through a Notifier.
type Service struct {
	backend  Backend
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service. notifier may be nil when no screen
// requests link delivery.
func NewService(backend Backend, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, notifier: notifier, logger: logger}
}

// Upload stores f under folder and returns its URL. With an email link the
// URL is also mailed; a failed delivery fails the upload.
func (s *Service) Upload(ctx context.Context, f File, folder string, link *Link) (string, error) {
	if strings.TrimSpace(f.Name) == "" || len(f.Data) == 0 {
		return "", shared.Validationf("attachments: file name and content required")
	}
	if link != nil && link.Mode == LinkEmail && strings.TrimSpace(link.To) == "" {
		return "", shared.Validationf("attachments: email link without recipient")
	}
	if s.backend == nil {
		return "", fmt.Errorf("%w: no storage backend configured", shared.ErrAttachmentUpload)
	}
	object := ObjectName(folder, f.Name)
	url, err := s.backend.Put(ctx, object, f)
	if err != nil {
		s.logger.Error("attachment upload", slog.String("object", object), slog.Any("error", err))
		return "", fmt.Errorf("%w: %s: %w", shared.ErrAttachmentUpload, object, err)
	}
	if link == nil || link.Mode != LinkEmail {
		return url, nil
	}
	if s.notifier == nil {
		return "", fmt.Errorf("%w: %s: %w", shared.ErrAttachmentUpload, object, errors.New("link delivery not configured"))
	}
	notice := Notice{
		To:        link.To,
		Subject:   link.Subject,
		Reference: link.Reference,
		FileName:  f.Name,
		URL:       url,
		Amount:    link.Amount,
	}
	if err := s.notifier.NotifyLink(ctx, notice); err != nil {
		s.logger.Error("attachment link delivery", slog.String("object", object), slog.Any("error", err))
		return "", fmt.Errorf("%w: deliver %s: %w", shared.ErrAttachmentUpload, object, err)
	}
	return url, nil
}

// ObjectName builds folder/<uuid>-<name>, stripping path separators from name.
func ObjectName(folder, name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		base = "file"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return path.Join(strings.Trim(folder, "/"), uuid.NewString()+"-"+base)
}
