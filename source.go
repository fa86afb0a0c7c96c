package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/moddengine/stockgrid/photo"
)

type ApiResult struct {
	Num    int
	Page   PageSrc
	Result ImageSearchResult
	Start  int
}

// ProviderSource serves client pages of photo.PageSize per provider,
// interleaving the providers' results.
type ProviderSource struct {
	apis     []ImageSearcher
	limiters []*rate.Limiter
	log      *log.Logger
}

// NewProviderSource allows each provider one request per interval.
func NewProviderSource(apis []ImageSearcher, interval time.Duration) *ProviderSource {
	limiters := make([]*rate.Limiter, len(apis))
	for i := range apis {
		limit := rate.Inf
		if interval > 0 {
			limit = rate.Every(interval)
		}
		limiters[i] = rate.NewLimiter(limit, 1)
	}
	return &ProviderSource{
		apis:     apis,
		limiters: limiters,
		log:      log.New(os.Stderr, "(source) ", log.LstdFlags),
	}
}

func (s *ProviderSource) FetchPage(ctx context.Context, query string, page int) (photo.Page, error) {
	if len(s.apis) == 0 {
		return photo.Page{}, fmt.Errorf("%w: no providers configured", photo.ErrTransport)
	}
	if page < 1 {
		page = 1
	}
	chRes := make(chan ApiResult)

	var reqCount int
	for num, api := range s.apis {
		start := 0
		for _, src := range GetResPages(page, photo.PageSize, api.PageSize()) {
			api := api
			src := src
			num := num
			limiter := s.limiters[num]
			reqCount += 1
			st := start
			go func() {
				res := ApiResult{Num: num, Page: src, Start: st}
				if err := limiter.Wait(ctx); err != nil {
					res.Result = failed(fmt.Errorf("%w: %w", photo.ErrTransport, err))
				} else {
					res.Result = api.Search(ctx, src.Page, query)
				}
				chRes <- res
			}()
			start += src.Last - src.First
		}
	}

	results := make([]photo.Photo, len(s.apis)*photo.PageSize)
	totals := make([]int, len(s.apis))
	var errs []error
	ok := 0

	for rq := 0; rq < reqCount; rq++ {
		res := <-chRes
		if res.Result.err != nil {
			errs = append(errs, fmt.Errorf("%s page %d: %w", s.apis[res.Num].Type(), res.Page.Page, res.Result.err))
			continue
		}
		ok = ok + 1
		totals[res.Num] = max(totals[res.Num], res.Result.total)
		first := min(len(res.Result.images), res.Page.First)
		last := min(len(res.Result.images), res.Page.Last)
		for idx, item := range res.Result.images[first:last] {
			results[(res.Start+idx)*len(s.apis)+res.Num] = item
		}
	}
	if ok == 0 {
		if err := ctx.Err(); err != nil {
			return photo.Page{}, fmt.Errorf("%w: %w", photo.ErrCancelled, err)
		}
		s.log.Println("Error connecting to upstream services")
		return photo.Page{}, errors.Join(errs...)
	}
	for _, err := range errs {
		s.log.Println("partial page:", err)
	}

	out := photo.Page{Photos: make([]photo.Photo, 0, len(results))}
	for _, item := range results {
		if item.ID != "" {
			out.Photos = append(out.Photos, item)
		}
	}
	for _, total := range totals {
		out.Total += total
	}
	return out, nil
}
