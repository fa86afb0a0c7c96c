package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"time"
)

// ReqCache stores upstream API responses in the Store, keyed by a hash of the
// outgoing request. A nil *ReqCache passes requests straight through.
type ReqCache struct {
	store *Store
	log   *log.Logger
}

func NewReqCache(ctx context.Context, store *Store) *ReqCache {
	logger := log.New(os.Stderr, "(cache) ", log.LstdFlags)
	rc := ReqCache{
		store: store,
		log:   logger,
	}
	go rc.purgeExpired(ctx, 1*time.Hour)
	return &rc
}

func (rc *ReqCache) purgeExpired(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		rc.store.DeleteBefore(time.Now().Unix())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CachedFetch serves req from the store when a fresh copy exists, otherwise
// performs it and keeps successful responses for ttl seconds.
func (rc *ReqCache) CachedFetch(req *http.Request, client *http.Client, ttl int) (*http.Response, error) {
	if rc == nil {
		return client.Do(req)
	}
	reqBytes, _ := httputil.DumpRequest(req, true)
	md5Hash := md5.Sum(reqBytes)
	reqHash := hex.EncodeToString(md5Hash[:])
	data, ok := rc.store.GetResponse(reqHash, time.Now().Unix())
	if ok {
		res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
		if err == nil {
			return res, nil
		}
		rc.log.Println("Problems decoding cached result", err.Error())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}
	respBytes, err := httputil.DumpResponse(resp, true)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rc.log.Println("MISS", req.URL.Host)
	rc.store.StoreResponse(reqHash, respBytes, time.Now().Unix()+int64(ttl))
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes)), req)
}
