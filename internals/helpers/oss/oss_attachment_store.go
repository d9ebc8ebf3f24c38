// internals/helpers/oss/oss_attachment_store.go
package helper

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"
)

// ObjectStore is the part of OSSService the attachment store needs.
type ObjectStore interface {
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
	ExtractKeyFromPublicURL(publicURL string) (string, error)
}

// AttachmentStore keeps justification attachments in OSS. Images are re-encoded
// to WebP; other files go up as-is. The returned reference is the public URL.
type AttachmentStore struct {
	Objects ObjectStore
	Prefix  string
	WebP    WebPOptions
	Now     func() time.Time
}

func NewAttachmentStore(svc *OSSService) *AttachmentStore {
	return &AttachmentStore{Objects: svc, Prefix: svc.Prefix, WebP: DefaultWebPOptionsFromEnv(), Now: time.Now}
}

func (a *AttachmentStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, map[string]any, error) {
	now := a.Now()
	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = detectContentType(data, filename)
	}

	meta := map[string]any{
		"original_name":         filename,
		"original_content_type": ct,
		"original_size":         len(data),
	}

	body, name := data, filename
	if isImage(ct) {
		webpData, size, err := ConvertToWebP(data, ct, a.WebP)
		if err != nil {
			// keep the original rather than lose the proof
			log.Printf("[OSS] webp convert %q failed, storing original: %v", filename, err)
		} else {
			body = webpData
			ct = "image/webp"
			name = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".webp"
			meta["width"] = size.X
			meta["height"] = size.Y
		}
	}

	key := buildObjectKey(a.Prefix, now.Format("2006/01"), name, now)
	if err := a.Objects.PutBytes(ctx, key, body, ct); err != nil {
		return "", nil, err
	}
	meta["content_type"] = ct
	meta["size"] = len(body)
	meta["key"] = key
	return a.Objects.PublicURL(key), meta, nil
}

// Remove deletes a previously stored attachment by its reference.
func (a *AttachmentStore) Remove(ctx context.Context, ref string) error {
	key, err := a.Objects.ExtractKeyFromPublicURL(ref)
	if err != nil {
		return err
	}
	return a.Objects.DeleteObject(ctx, key)
}
