package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"github.com/moddengine/stockgrid/feed"
	"github.com/moddengine/stockgrid/layout"
	"github.com/moddengine/stockgrid/photo"
)

// session is one browsing context: a render feed and the grid laid out over it.
type session struct {
	id      string
	feed    *feed.Coordinator
	grid    *layout.Engine
	created time.Time
	// lastSeen is guarded by Server.mu.
	lastSeen time.Time

	// mu serialises layout passes with feed notifications.
	mu      sync.Mutex
	version int
	lastErr string
	laidOut []string
}

func (s *session) FeedUpdated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.Invalidate()
	s.laidOut = nil
	s.version++
	s.lastErr = ""
}

func (s *session) FetchFailed(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// layoutLocked prepares the grid for photos. The grid only counts items, so
// a feed with different ids but the same length is re-laid-out explicitly.
func (s *session) layoutLocked(photos []photo.Photo, width float64) {
	s.grid.SetWidth(width)
	if !sameIds(s.laidOut, photos) {
		s.grid.Invalidate()
	}
	s.grid.Prepare(photos)
	s.laidOut = s.laidOut[:0]
	for _, p := range photos {
		s.laidOut = append(s.laidOut, p.ID)
	}
}

func sameIds(ids []string, photos []photo.Photo) bool {
	if len(ids) != len(photos) {
		return false
	}
	for i, p := range photos {
		if ids[i] != p.ID {
			return false
		}
	}
	return true
}

type Tile struct {
	layout.Item
	Photo photo.Photo `json:"photo"`
}

type SessionView struct {
	ID            string  `json:"id"`
	Query         string  `json:"query"`
	Page          int     `json:"page"`
	State         string  `json:"state"`
	Version       int     `json:"version"`
	Error         string  `json:"error,omitempty"`
	Count         int     `json:"count"`
	Total         int     `json:"total"`
	Width         float64 `json:"width"`
	ContentHeight float64 `json:"contentHeight"`
	Tiles         []Tile  `json:"tiles"`
}

type Server struct {
	cfg    *Config
	now    func() time.Time
	source photo.Source
	images *ImageLoader
	store  *Store
	log    *log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewServer(cfg *Config, source photo.Source, images *ImageLoader, store *Store) *Server {
	return &Server{
		cfg:      cfg,
		now:      time.Now,
		source:   source,
		images:   images,
		store:    store,
		log:      log.New(os.Stderr, "(server) ", log.LstdFlags),
		sessions: map[string]*session{},
	}
}

func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "Not Found")
	})
	mux.HandleFunc("POST /sessions", srv.createSession)
	mux.HandleFunc("GET /sessions/{id}", srv.withSession(srv.viewSession))
	mux.HandleFunc("DELETE /sessions/{id}", srv.closeSession)
	mux.HandleFunc("POST /sessions/{id}/more", srv.withSession(func(w http.ResponseWriter, r *http.Request, s *session) {
		s.feed.LoadMore()
		w.WriteHeader(http.StatusAccepted)
	}))
	mux.HandleFunc("POST /sessions/{id}/refresh", srv.withSession(func(w http.ResponseWriter, r *http.Request, s *session) {
		s.feed.Refresh()
		w.WriteHeader(http.StatusAccepted)
	}))
	mux.HandleFunc("PUT /sessions/{id}/search", srv.withSession(func(w http.ResponseWriter, r *http.Request, s *session) {
		s.feed.UpdateSearchText(r.URL.Query().Get("q"))
		w.WriteHeader(http.StatusAccepted)
	}))
	mux.HandleFunc("DELETE /sessions/{id}/search", srv.withSession(func(w http.ResponseWriter, r *http.Request, s *session) {
		s.feed.CancelSearch()
		w.WriteHeader(http.StatusAccepted)
	}))
	mux.HandleFunc("GET /image", srv.image)
	if srv.cfg.Debug.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	if srv.cfg.Auth && srv.store != nil {
		return srv.basicAuth(mux)
	}
	return mux
}

// HTTPServer serves Handler on the configured listen address. Nothing is
// routed through http.DefaultServeMux.
func (srv *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              srv.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (srv *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !srv.store.TestUser(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="stockgrid"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) newSession() *session {
	now := srv.now()
	s := &session{
		id:       uuid.NewString(),
		created:  now,
		lastSeen: now,
		grid: layout.New(layout.PhotoHeight, layout.Options{
			Columns: srv.cfg.Layout.Columns,
			Padding: srv.cfg.Layout.Padding,
		}),
	}
	s.feed = feed.New(srv.source, s, feed.Options{Debounce: srv.cfg.Debounce()})
	srv.mu.Lock()
	srv.sessions[s.id] = s
	srv.mu.Unlock()
	return s
}

func (srv *Server) lookup(id string) (*session, bool) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	s, ok := srv.sessions[id]
	if ok {
		s.lastSeen = srv.now()
	}
	return s, ok
}

// expireIdle closes every session not used since before now minus the idle
// timeout and reports how many were closed.
func (srv *Server) expireIdle(now time.Time) int {
	cutoff := now.Add(-srv.cfg.SessionIdle())
	var expired []*session
	srv.mu.Lock()
	for id, s := range srv.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(srv.sessions, id)
		}
	}
	srv.mu.Unlock()
	for _, s := range expired {
		s.feed.Close()
		srv.log.Println("session", s.id, "expired after", now.Sub(s.created).Round(time.Second))
	}
	return len(expired)
}

func (srv *Server) reapIdle(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.expireIdle(srv.now())
		}
	}
}

// Close shuts down every open session.
func (srv *Server) Close() {
	srv.mu.Lock()
	sessions := srv.sessions
	srv.sessions = map[string]*session{}
	srv.mu.Unlock()
	for _, s := range sessions {
		s.feed.Close()
	}
}

func (srv *Server) withSession(fn func(http.ResponseWriter, *http.Request, *session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := srv.lookup(r.PathValue("id"))
		if !ok {
			http.Error(w, "Unknown session", http.StatusNotFound)
			return
		}
		fn(w, r, s)
	}
}

func (srv *Server) createSession(w http.ResponseWriter, r *http.Request) {
	s := srv.newSession()
	if q := r.URL.Query().Get("q"); q != "" {
		s.feed.UpdateSearchText(q)
	} else {
		s.feed.LoadMore()
	}
	srv.log.Println("session", s.id, "created")
	w.Header().Set("Location", "/sessions/"+s.id)
	srv.writeJSON(w, r, http.StatusCreated, srv.view(s, 0, 0, 0))
}

func (srv *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	srv.mu.Lock()
	s, ok := srv.sessions[id]
	delete(srv.sessions, id)
	srv.mu.Unlock()
	if !ok {
		http.Error(w, "Unknown session", http.StatusNotFound)
		return
	}
	s.feed.Close()
	srv.log.Println("session", id, "closed after", srv.now().Sub(s.created).Round(time.Second))
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) viewSession(w http.ResponseWriter, r *http.Request, s *session) {
	q := r.URL.Query()
	width, err := floatParam(q.Get("width"), 0)
	if err != nil || width <= 0 {
		http.Error(w, "Query parameter ?width= must be a positive number", http.StatusBadRequest)
		return
	}
	top, err := floatParam(q.Get("top"), 0)
	if err != nil {
		http.Error(w, "Invalid ?top=", http.StatusBadRequest)
		return
	}
	height, err := floatParam(q.Get("height"), 0)
	if err != nil {
		http.Error(w, "Invalid ?height=", http.StatusBadRequest)
		return
	}
	view := srv.view(s, width, top, height)
	// scrolled within two screens of the end
	if height > 0 && top > view.ContentHeight-height*2 {
		s.feed.LoadMore()
	}
	srv.writeJSON(w, r, http.StatusOK, view)
}

// view lays the session's feed out at width and returns the tiles inside
// [top, top+height). A zero height returns every tile.
func (srv *Server) view(s *session, width, top, height float64) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	photos := s.feed.Photos()
	v := SessionView{
		ID:      s.id,
		Query:   s.feed.Query(),
		Page:    s.feed.Page(),
		State:   s.feed.State().String(),
		Version: s.version,
		Error:   s.lastErr,
		Count:   len(photos),
		Total:   s.feed.Total(),
		Tiles:   []Tile{},
	}
	if width <= 0 {
		return v
	}
	s.layoutLocked(photos, width)
	v.Width, v.ContentHeight = s.grid.ContentSize()
	if height <= 0 {
		top, height = 0, v.ContentHeight
	}
	byId := make(map[string]photo.Photo, len(photos))
	for _, p := range photos {
		byId[p.ID] = p
	}
	for _, it := range s.grid.Visible(layout.Rect{X: 0, Y: top, Width: width, Height: height}) {
		v.Tiles = append(v.Tiles, Tile{Item: it, Photo: byId[it.ID]})
	}
	return v
}

func (srv *Server) image(w http.ResponseWriter, r *http.Request) {
	data, err := srv.images.LoadBytes(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		srv.log.Println("image:", err)
		if errors.Is(err, errHostNotAllowed) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

func (srv *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	body := brotli.HTTPCompressor(w, r)
	defer body.Close()
	w.WriteHeader(status)
	enc := json.NewEncoder(body)
	indent := ""
	if srv.cfg.Debug.PrettyJson {
		indent = "  "
	}
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		srv.log.Println("encode:", err)
	}
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}
