package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/moddengine/stockgrid/photo"
)

// ImageSearcher is one upstream photo API. Search with an empty query lists
// the provider's unfiltered feed.
type ImageSearcher interface {
	Search(ctx context.Context, page int, query string) ImageSearchResult
	Type() string
	TTL() int
	PageSize() int
}

type ImageSearchResult struct {
	err    error
	images []photo.Photo
	total  int
}

func failed(err error) ImageSearchResult {
	return ImageSearchResult{err: err, images: []photo.Photo{}}
}

// fetchJSON runs req through the request cache and decodes a 2xx body into
// out. The returned response headers are only valid on success.
func fetchJSON(req *http.Request, client *http.Client, cache *ReqCache, ttl int, logger *log.Logger, out any) (http.Header, error) {
	res, err := cache.CachedFetch(req, client, ttl)
	if err != nil {
		logger.Println("Failed to fetch:", err.Error())
		return nil, fmt.Errorf("%w: %w", photo.ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		logger.Println("Unexpected status", res.Status, req.URL.Path)
		return nil, fmt.Errorf("%w: %s returned %s", photo.ErrTransport, req.URL.Host, res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		logger.Println("Failed to decode response", err.Error())
		return nil, fmt.Errorf("%w: %w", photo.ErrDecoding, err)
	}
	return res.Header, nil
}
