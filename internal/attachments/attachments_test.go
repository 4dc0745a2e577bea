package attachments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

type recordingNotifier struct {
	notices []Notice
	err     error
}

func (n *recordingNotifier) NotifyLink(ctx context.Context, notice Notice) error {
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

type failingBackend struct{}

func (failingBackend) Put(ctx context.Context, object string, f File) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestUploadStoresUnderFolder(t *testing.T) {
	backend := NewMemoryBackend()
	svc := NewService(backend, nil, nil)

	url, err := svc.Upload(context.Background(), File{Name: "bill photo.jpg", Data: []byte("jpeg")}, "bill-photos", nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "memory://bill-photos/"))
	require.True(t, strings.HasSuffix(url, "-bill_photo.jpg"))

	stored, ok := backend.Object(strings.TrimPrefix(url, "memory://"))
	require.True(t, ok)
	require.Equal(t, []byte("jpeg"), stored.Data)
}

func TestUploadEmailLinkNotifies(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(NewMemoryBackend(), notifier, nil)

	url, err := svc.Upload(context.Background(), File{Name: "PO-1.pdf", Data: []byte("%PDF")}, "purchase-orders", &Link{
		Mode: LinkEmail, To: "vendor@example.com", Reference: "JJSPL/STORES/24-25/1", Amount: 1062,
	})
	require.NoError(t, err)
	require.Len(t, notifier.notices, 1)
	require.Equal(t, url, notifier.notices[0].URL)
	require.Equal(t, "vendor@example.com", notifier.notices[0].To)
	require.Equal(t, 1062.0, notifier.notices[0].Amount)
}

func TestUploadFailuresWrapAttachmentError(t *testing.T) {
	ctx := context.Background()
	file := File{Name: "a.pdf", Data: []byte("x")}

	_, err := NewService(failingBackend{}, nil, nil).Upload(ctx, file, "f", nil)
	require.ErrorIs(t, err, shared.ErrAttachmentUpload)

	_, err = NewService(NewMemoryBackend(), &recordingNotifier{err: errors.New("queue down")}, nil).Upload(ctx, file, "f", &Link{Mode: LinkEmail, To: "x@example.com"})
	require.ErrorIs(t, err, shared.ErrAttachmentUpload)

	_, err = NewService(NewMemoryBackend(), nil, nil).Upload(ctx, file, "f", &Link{Mode: LinkEmail, To: "x@example.com"})
	require.ErrorIs(t, err, shared.ErrAttachmentUpload)
}

func TestUploadValidation(t *testing.T) {
	svc := NewService(NewMemoryBackend(), &recordingNotifier{}, nil)
	_, err := svc.Upload(context.Background(), File{Name: "a.pdf"}, "f", nil)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Upload(context.Background(), File{Name: "a.pdf", Data: []byte("x")}, "f", &Link{Mode: LinkEmail})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestObjectNameStripsPaths(t *testing.T) {
	name := ObjectName("/comparison/", `..\..\etc/passwd`)
	require.True(t, strings.HasPrefix(name, "comparison/"))
	require.True(t, strings.HasSuffix(name, "-passwd"))
	require.NotContains(t, name, "..")
}
