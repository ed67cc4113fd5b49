package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ctifeed/internal/blob"
)

const keyLength = 16

// ProbeExtensions are checked, in order, when looking for an already cached object.
var ProbeExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

const (
	defaultExtension   = ".jpg"
	defaultContentType = "image/jpeg"
)

// Key derives the content-addressed cache key for a source image URL, without extension.
// The key is hex, so it never contains path separators.
func Key(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])[:keyLength]
}

// ManualURL rebuilds a public URL from the filename component of key alone.
func ManualURL(publicBase, bucket, key string) (string, error) {
	return blob.JoinPublicURL(publicBase, bucket, path.Base("/"+strings.TrimLeft(key, "/")))
}

// ContentType returns the media type and file extension for downloaded image bytes.
// An image/* response header wins; otherwise the bytes are sniffed, and anything that
// still is not an image is stored as JPEG so lookups over ProbeExtensions find it.
func ContentType(header string, data []byte) (string, string) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	if strings.HasPrefix(ct, "image/") {
		if m := mimetype.Lookup(ct); m != nil && m.Extension() != "" {
			return ct, m.Extension()
		}
	}
	if len(data) > 0 {
		if m := mimetype.Detect(data); strings.HasPrefix(m.String(), "image/") && m.Extension() != "" {
			return strings.SplitN(m.String(), ";", 2)[0], m.Extension()
		}
	}
	return defaultContentType, defaultExtension
}
