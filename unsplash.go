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

type UnsplashPhoto struct {
	Id          string             `json:"id"`
	Width       int                `json:"width"`
	Height      int                `json:"height"`
	Likes       int                `json:"likes"`
	Description string             `json:"description"`
	AltDesc     string             `json:"alt_description"`
	User        UnsplashUser       `json:"user"`
	Urls        UnsplashUrls       `json:"urls"`
	Links       UnsplashPhotoLinks `json:"links"`
}

type UnsplashUser struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type UnsplashPhotoLinks struct {
	Self     string `json:"self"`
	Html     string `json:"html"`
	Download string `json:"download"`
}

type UnsplashUrls struct {
	Raw     string `json:"raw"`
	Full    string `json:"full"`
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

type UnsplashSearchResult struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []UnsplashPhoto `json:"results"`
}

type UnsplashApi struct {
	Http      http.Client
	cache     *ReqCache
	accessKey string
	baseUrl   string
	log       *log.Logger
}

func NewUnsplashApi(cfg *Config, cache *ReqCache) UnsplashApi {
	return UnsplashApi{
		cache:     cache,
		accessKey: cfg.Unsplash.AccessKey,
		baseUrl:   "https://api.unsplash.com",
		log:       log.New(os.Stderr, "(unsplash) ", log.LstdFlags),
	}
}

func (unsp *UnsplashApi) Type() string {
	return "unsplash"
}

func (unsp *UnsplashApi) TTL() int {
	return 86400
}

func (unsp *UnsplashApi) PageSize() int { return 30 }

func (unsp *UnsplashApi) Search(ctx context.Context, page int, query string) ImageSearchResult {
	qParam := url.Values{}
	path := "/photos"
	if query != "" {
		path = "/search/photos"
		qParam.Add("query", query)
	}
	qParam.Add("page", strconv.Itoa(page))
	qParam.Add("per_page", strconv.Itoa(unsp.PageSize()))
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, unsp.baseUrl+path+"?"+qParam.Encode(), nil)
	if err != nil {
		unsp.log.Println("Failed to create http request:", err.Error())
		return failed(fmt.Errorf("%w: %w", photo.ErrTransport, err))
	}
	getReq.Header.Set("Accept-Version", "v1")
	getReq.Header.Set("Authorization", "Client-ID "+unsp.accessKey)

	var results []UnsplashPhoto
	total := 0
	if query != "" {
		data := UnsplashSearchResult{}
		if _, err := fetchJSON(getReq, &unsp.Http, unsp.cache, unsp.TTL(), unsp.log, &data); err != nil {
			return failed(err)
		}
		results = data.Results
		total = data.Total
	} else {
		header, err := fetchJSON(getReq, &unsp.Http, unsp.cache, unsp.TTL(), unsp.log, &results)
		if err != nil {
			return failed(err)
		}
		total, _ = strconv.Atoi(header.Get("X-Total"))
	}

	output := make([]photo.Photo, len(results))
	for i, el := range results {
		output[i].ID = "unsplash/" + el.Id
		output[i].Width = el.Width
		output[i].Height = el.Height
		output[i].Likes = el.Likes
		output[i].Description = el.Description
		if output[i].Description == "" {
			output[i].Description = el.AltDesc
		}
		output[i].Source = "Unsplash"
		output[i].SourceUrl = el.Links.Html
		output[i].Artist = el.User.Name
		output[i].DownloadUrl = el.Urls.Raw
		output[i].PreviewUrl = el.Urls.Regular
	}
	return ImageSearchResult{err: nil, images: output, total: total}
}
