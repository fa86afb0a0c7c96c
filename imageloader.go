package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/apibillme/cache"

	"github.com/moddengine/stockgrid/photo"
)

const maxImageBytes int64 = 32 << 20

// DefaultImageHosts are the provider CDNs that serve preview and download urls.
var DefaultImageHosts = []string{"images.unsplash.com", "plus.unsplash.com", "images.pexels.com", "pixabay.com"}

var errHostNotAllowed = errors.New("image host not allowed")

// ImageLoader fetches image bytes for preview and download urls and keeps
// recently used ones in memory. Only hosts on the allow-list, or their
// subdomains, are fetched, redirects included.
type ImageLoader struct {
	Http  http.Client
	hosts []string
	cache cache.Cache
	log   *log.Logger
}

func NewImageLoader(size int, ttl time.Duration, hosts []string) *ImageLoader {
	l := &ImageLoader{
		hosts: hosts,
		cache: cache.New(size, cache.WithTTL(ttl)),
		log:   log.New(os.Stderr, "(images) ", log.LstdFlags),
	}
	l.Http.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		if !l.allowed(req.URL) {
			return fmt.Errorf("%w: redirect to %s", errHostNotAllowed, req.URL.Hostname())
		}
		return nil
	}
	return l
}

func (l *ImageLoader) allowed(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, h := range l.hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (l *ImageLoader) LoadBytes(ctx context.Context, rawUrl string) ([]byte, error) {
	u, err := url.Parse(rawUrl)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid image url %q", photo.ErrTransport, rawUrl)
	}
	if !l.allowed(u) {
		return nil, fmt.Errorf("%w: %s", errHostNotAllowed, u.Hostname())
	}
	if data, ok := l.cache.Get(rawUrl); ok {
		return data.([]byte), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", photo.ErrTransport, err)
	}
	res, err := l.Http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", photo.ErrTransport, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", photo.ErrTransport, u.Host, res.Status)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", photo.ErrTransport, err)
	}
	l.cache.Set(rawUrl, data)
	return data, nil
}
