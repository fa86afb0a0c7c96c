package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/moddengine/stockgrid/photo"
)

type PexelsPhoto struct {
	Id             int            `json:"id"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	Url            string         `json:"url"`
	Alt            string         `json:"alt"`
	Liked          bool           `json:"liked"`
	Photographer   string         `json:"photographer"`
	PhotographerId int            `json:"photographer_id"`
	Src            PexelsPhotoSrc `json:"src"`
}

type PexelsPhotoSrc struct {
	Original string `json:"original"`
	Large    string `json:"large"`
	Medium   string `json:"medium"`
}

type PexelsSearchResult struct {
	TotalResults int           `json:"total_results"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	Photos       []PexelsPhoto `json:"photos"`
}

type PexelsApi struct {
	Http    http.Client
	cache   *ReqCache
	apiKey  string
	baseUrl string
	log     *log.Logger
}

func NewPexelsApi(cfg *Config, cache *ReqCache) PexelsApi {
	return PexelsApi{
		apiKey:  cfg.Pexels.Key,
		cache:   cache,
		baseUrl: "https://api.pexels.com/v1",
		log:     log.New(os.Stderr, "(pexels) ", log.LstdFlags),
	}
}

func (api *PexelsApi) Type() string {
	return "pexels"
}

func (api *PexelsApi) TTL() int {
	return 86400
}

func (api *PexelsApi) PageSize() int { return 80 }

func (api *PexelsApi) Search(ctx context.Context, page int, query string) ImageSearchResult {
	qParam := url.Values{}
	path := "/curated"
	if query != "" {
		path = "/search"
		qParam.Add("query", query)
	}
	qParam.Add("page", strconv.Itoa(page))
	qParam.Add("per_page", strconv.Itoa(api.PageSize()))
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseUrl+path+"?"+qParam.Encode(), nil)
	if err != nil {
		api.log.Println("Failed to create http request:", err)
		return failed(fmt.Errorf("%w: %w", photo.ErrTransport, err))
	}
	getReq.Header.Set("Authorization", api.apiKey)

	data := PexelsSearchResult{}
	if _, err := fetchJSON(getReq, &api.Http, api.cache, api.TTL(), api.log, &data); err != nil {
		return failed(err)
	}
	output := make([]photo.Photo, len(data.Photos))
	for i, el := range data.Photos {
		output[i].ID = "pexels/" + strconv.Itoa(el.Id)
		output[i].Width = el.Width
		output[i].Height = el.Height
		output[i].Description = el.Alt
		output[i].Source = "Pexels"
		output[i].SourceUrl = el.Url
		output[i].Artist = el.Photographer
		output[i].DownloadUrl = el.Src.Original
		output[i].PreviewUrl = el.Src.Large
	}
	return ImageSearchResult{err: nil, images: output, total: data.TotalResults}
}
