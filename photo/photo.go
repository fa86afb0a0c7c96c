package photo

import (
	"context"
	"errors"
)

// PageSize is the number of photos the client asks for per page.
const PageSize int = 20

var (
	ErrTransport = errors.New("transport error")
	ErrDecoding  = errors.New("decoding error")
	ErrCancelled = errors.New("fetch superseded")
)

// Photo is a single record of the render feed. Only ID, Width and Height are
// interpreted; two photos with the same ID are the same photo.
type Photo struct {
	ID          string `json:"id"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Description string `json:"description,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Likes       int    `json:"likes,omitempty"`
	Source      string `json:"source,omitempty"`
	SourceUrl   string `json:"sourceUrl,omitempty"`
	PreviewUrl  string `json:"previewUrl,omitempty"`
	DownloadUrl string `json:"downloadUrl,omitempty"`
}

// Same reports whether p and other identify the same photo.
func (p Photo) Same(other Photo) bool {
	return p.ID == other.ID
}

func (p Photo) Aspect() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	return float64(p.Width) / float64(p.Height)
}

// HeightFor scales the intrinsic height to the given column width.
func (p Photo) HeightFor(columnWidth float64) float64 {
	if p.Width <= 0 || p.Height <= 0 || columnWidth <= 0 {
		return 0
	}
	return float64(p.Height) * (columnWidth / float64(p.Width))
}

// Dedupe drops repeated ids, keeping each first occurrence where it was.
func Dedupe(photos []Photo) []Photo {
	seen := make(map[string]struct{}, len(photos))
	out := make([]Photo, 0, len(photos))
	for _, p := range photos {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

type Page struct {
	Photos []Photo
	Total  int
}

// Source provides pages of photos. An empty query is the unfiltered feed and
// page numbers start at 1.
type Source interface {
	FetchPage(ctx context.Context, query string, page int) (Page, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, query string, page int) (Page, error)

func (f SourceFunc) FetchPage(ctx context.Context, query string, page int) (Page, error) {
	return f(ctx, query, page)
}
