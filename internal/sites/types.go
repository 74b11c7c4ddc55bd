package sites

import (
	"context"
	"strings"
)

const userAgent = "t.me/SourceHoundBot (+https://github.com/sourcehound/sourcehound)"

// PostInfo is the normalized record every site resolver produces. A resolver
// returning records must always be able to derive FileType; when it cannot,
// the fetch failed.
type PostInfo struct {
	// FileType is a lowercase file extension (png, jpg, ...), without any
	// query string.
	FileType string
	// URL is a direct, fetchable media URL.
	URL string
	// Personal is true when the source account or content is non-public.
	Personal bool
	// Thumb is an optional preview URL.
	Thumb string
	// SourceLink is the canonical URL of the original post, if known.
	SourceLink string
	// ExtraCaption is supplementary text such as the original post caption.
	ExtraCaption string
	// Title is an optional display name, such as the author handle.
	Title string
	// SiteName is the human readable provider name.
	SiteName string
}

// Site maps URLs of one platform to normalized post metadata.
//
// URLSupported may probe the network but must treat any I/O failure as "not
// supported". GetImages returns nil records with a nil error when the URL is
// recognized but holds no media; errors are reserved for failed fetches.
type Site interface {
	Name() string
	URLSupported(ctx context.Context, url string) bool
	GetImages(ctx context.Context, userID int64, url string) ([]PostInfo, error)
}

// fileExt extracts the lowercase extension from a URL or filename, stripping
// any query string.
func fileExt(name string) string {
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
