package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"strings"
)

// Blobs stores model-produced bytes under a namespace, content-addressed,
// and returns a URL for them. It satisfies llm.BlobSink.
type Blobs struct {
	Store     Store
	Namespace string
	Dir       string
}

func (b Blobs) SaveBlob(ctx context.Context, mimeType string, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	dir := strings.Trim(b.Dir, "/")
	if dir == "" {
		dir = "blobs"
	}
	p := dir + "/" + hex.EncodeToString(sum[:12]) + extensionFor(mimeType)
	if err := b.Store.Put(ctx, b.Namespace, p, data); err != nil {
		return "", err
	}
	u, err := b.Store.GetURL(ctx, b.Namespace, p)
	if err != nil {
		return "", err
	}
	if u == "" {
		u = objectKey(b.Namespace, p)
	}
	return u, nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
