// Package feed owns the render feed: the ordered, id-unique list of photos a
// grid displays. A Coordinator pages through a photo.Source, debounces search
// input and makes sure a result from a superseded query never lands in the
// feed.
package feed

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/moddengine/stockgrid/photo"
)

const DefaultDebounce = 1 * time.Second

// Observer is notified once per completed fetch. Calls arrive one at a time on
// the coordinator's dispatch goroutine, in the order the fetches were merged.
type Observer interface {
	FeedUpdated()
	FetchFailed(err error)
}

// ObserverFuncs adapts two functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Updated func()
	Failed  func(err error)
}

func (o ObserverFuncs) FeedUpdated() {
	if o.Updated != nil {
		o.Updated()
	}
}

func (o ObserverFuncs) FetchFailed(err error) {
	if o.Failed != nil {
		o.Failed(err)
	}
}

type State int

const (
	Idle State = iota
	Loading
	Debouncing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Debouncing:
		return "debouncing"
	default:
		return "idle"
	}
}

type Options struct {
	Debounce time.Duration
	Logger   *log.Logger
}

type Coordinator struct {
	source   photo.Source
	observer Observer
	debounce time.Duration
	log      *log.Logger
	notify   *dispatcher

	mu      sync.Mutex
	photos  []photo.Photo
	total   int
	page    int
	query   string
	loading bool
	closed  bool

	// epoch is bumped whenever the feed is reset; completions carrying an
	// older epoch are dropped.
	epoch       uint64
	cancelFetch context.CancelFunc

	pendingQuery string
	timer        *time.Timer
	timerSeq     uint64
}

func New(source photo.Source, observer Observer, opts Options) *Coordinator {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "(feed) ", log.LstdFlags)
	}
	return &Coordinator{
		source:   source,
		observer: observer,
		debounce: opts.Debounce,
		log:      logger,
		notify:   newDispatcher(),
		page:     1,
	}
}

// Photos returns a copy of the committed render feed.
func (c *Coordinator) Photos() []photo.Photo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]photo.Photo, len(c.photos))
	copy(out, c.photos)
	return out
}

func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.photos)
}

// Page is the next page that LoadMore will request.
func (c *Coordinator) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Query is the committed search text; empty means the unfiltered feed.
func (c *Coordinator) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Coordinator) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.timer != nil:
		return Debouncing
	case c.loading:
		return Loading
	default:
		return Idle
	}
}

// LoadMore fetches the next page of the current query. It does nothing while a
// fetch is already in flight.
func (c *Coordinator) LoadMore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.loading {
		return
	}
	c.startLocked()
}

// Refresh starts the current query again from page 1, superseding any fetch
// in flight.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.resetLocked(c.query)
}

// UpdateSearchText schedules text to become the active query once input has
// been quiet for the debounce interval. Each call replaces the pending one.
func (c *Coordinator) UpdateSearchText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.pendingQuery = text
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.debounce, func() {
		c.commitSearch(seq)
	})
}

// CancelSearch drops any pending input and goes back to the unfiltered feed.
func (c *Coordinator) CancelSearch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.resetLocked("")
}

// Close stops the pending timer, abandons the in-flight fetch and waits for
// queued notifications to be delivered. It must not be called from an
// Observer method.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.epoch++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.loading = false
	c.mu.Unlock()
	c.notify.close()
}

func (c *Coordinator) commitSearch(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || seq != c.timerSeq {
		return
	}
	c.timer = nil
	c.timerSeq++
	c.log.Printf("search committed: %q", c.pendingQuery)
	c.resetLocked(c.pendingQuery)
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	// a timer that already fired sees a newer seq and gives up
	c.timerSeq++
}

// resetLocked starts a new epoch for query and fetches its first page.
func (c *Coordinator) resetLocked(query string) {
	c.epoch++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.loading = false
	c.query = query
	c.page = 1
	c.startLocked()
}

func (c *Coordinator) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.loading = true
	c.cancelFetch = cancel
	go c.fetch(ctx, cancel, c.epoch, c.query, c.page)
}

func (c *Coordinator) fetch(ctx context.Context, cancel context.CancelFunc, epoch uint64, query string, page int) {
	defer cancel()
	res, err := c.source.FetchPage(ctx, query, page)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		c.log.Printf("discarding page %d for %q: %v", page, query, photo.ErrCancelled)
		return
	}
	c.loading = false
	c.cancelFetch = nil
	if err != nil {
		c.log.Printf("page %d for %q failed: %v", page, query, err)
		c.notify.post(func() { c.observer.FetchFailed(err) })
		return
	}
	if page == 1 {
		c.photos = append([]photo.Photo(nil), res.Photos...)
	} else {
		c.photos = photo.Dedupe(append(c.photos, res.Photos...))
	}
	c.total = res.Total
	c.page = page + 1
	c.notify.post(c.observer.FeedUpdated)
}
