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

type PixabaySearchItem struct {
	Id              int    `json:"id"`
	Tags            string `json:"tags"`
	WebFormatUrl    string `json:"webformatURL"`
	WebFormatWidth  int    `json:"webformatWidth"`
	WebFormatHeight int    `json:"webformatHeight"`
	LargeImageUrl   string `json:"largeImageURL"`
	ImageUrl        string `json:"imageURL"`
	Likes           int    `json:"likes"`
	UserId          int    `json:"user_id"`
	User            string `json:"user"`
	PageUrl         string `json:"pageURL"`
}

type PixabaySearchResult struct {
	Total     int                 `json:"total"`
	TotalHits int                 `json:"totalHits"`
	Hits      []PixabaySearchItem `json:"hits"`
}

type PixabayApi struct {
	Http    http.Client
	cache   *ReqCache
	apiKey  string
	baseUrl string
	log     *log.Logger
}

func NewPixabayApi(cfg *Config, cache *ReqCache) PixabayApi {
	api := PixabayApi{
		cache:   cache,
		apiKey:  cfg.Pixabay.Key,
		baseUrl: "https://pixabay.com/api/",
		log:     log.New(os.Stderr, "(pixabay) ", log.LstdFlags),
	}

	return api
}

func (api *PixabayApi) Type() string {
	return "pixabay"
}

func (api *PixabayApi) TTL() int {
	return 86400
}

func (api *PixabayApi) PageSize() int { return 100 }

func (api *PixabayApi) Search(ctx context.Context, page int, query string) ImageSearchResult {
	qParam := url.Values{}
	qParam.Add("key", api.apiKey)
	if query != "" {
		qParam.Add("q", query)
	} else {
		qParam.Add("editors_choice", "true")
	}
	qParam.Add("image_type", "photo")
	qParam.Add("page", strconv.Itoa(page))
	qParam.Add("per_page", strconv.Itoa(api.PageSize()))
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseUrl+"?"+qParam.Encode(), nil)
	if err != nil {
		api.log.Println("Failed to create http request:", err.Error())
		return failed(fmt.Errorf("%w: %w", photo.ErrTransport, err))
	}

	data := PixabaySearchResult{}
	if _, err := fetchJSON(getReq, &api.Http, api.cache, api.TTL(), api.log, &data); err != nil {
		return failed(err)
	}
	output := make([]photo.Photo, len(data.Hits))
	for i, el := range data.Hits {
		output[i].ID = "pixabay/" + strconv.Itoa(el.Id)
		output[i].Width = el.WebFormatWidth
		output[i].Height = el.WebFormatHeight
		output[i].Likes = el.Likes
		output[i].Description = el.Tags
		output[i].Source = "Pixabay"
		output[i].SourceUrl = el.PageUrl
		output[i].Artist = el.User
		output[i].DownloadUrl = el.LargeImageUrl
		if el.ImageUrl != "" {
			output[i].DownloadUrl = el.ImageUrl
		}
		output[i].PreviewUrl = el.WebFormatUrl
	}
	return ImageSearchResult{err: nil, images: output, total: data.TotalHits}
}
