package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moddengine/stockgrid/photo"
)

const waitFor = 2 * time.Second

type reply struct {
	page photo.Page
	err  error
}

type call struct {
	ctx   context.Context
	query string
	page  int
	reply chan reply
}

func (c *call) respond(photos []photo.Photo, err error) {
	c.reply <- reply{page: photo.Page{Photos: photos, Total: 1000}, err: err}
}

// scriptedSource hands every request to the test and blocks until the test
// answers it, like a network call that runs to completion regardless of
// cancellation.
type scriptedSource struct {
	calls chan *call
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{calls: make(chan *call, 16)}
}

func (s *scriptedSource) FetchPage(ctx context.Context, query string, page int) (photo.Page, error) {
	c := &call{ctx: ctx, query: query, page: page, reply: make(chan reply, 1)}
	s.calls <- c
	r := <-c.reply
	return r.page, r.err
}

func (s *scriptedSource) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(waitFor):
		t.Fatal("expected a fetch")
		return nil
	}
}

func (s *scriptedSource) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-s.calls:
		t.Fatalf("unexpected fetch query=%q page=%d", c.query, c.page)
	case <-time.After(d):
	}
}

type event struct {
	updated bool
	err     error
}

type recorder struct {
	events chan event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 16)}
}

func (r *recorder) FeedUpdated()          { r.events <- event{updated: true} }
func (r *recorder) FetchFailed(err error) { r.events <- event{err: err} }

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(waitFor):
		t.Fatal("expected a notification")
		return event{}
	}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.events:
		t.Fatalf("unexpected notification %+v", e)
	case <-time.After(d):
	}
}

func span(from, to int) []photo.Photo {
	out := make([]photo.Photo, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, photo.Photo{ID: fmt.Sprintf("p%d", i), Width: 100, Height: 100})
	}
	return out
}

func ids(photos []photo.Photo) []string {
	out := make([]string, len(photos))
	for i, p := range photos {
		out[i] = p.ID
	}
	return out
}

func newTestCoordinator(t *testing.T, debounce time.Duration) (*Coordinator, *scriptedSource, *recorder) {
	src := newScriptedSource()
	rec := newRecorder()
	c := New(src, rec, Options{Debounce: debounce, Logger: log.New(io.Discard, "", 0)})
	t.Cleanup(func() {
		// unblock anything still waiting so Close does not leak goroutines
		for {
			select {
			case pending := <-src.calls:
				pending.respond(nil, errors.New("test over"))
			default:
				c.Close()
				return
			}
		}
	})
	return c, src, rec
}

func TestFirstPageThenOverlappingSecondPage(t *testing.T) {
	c, src, rec := newTestCoordinator(t, time.Second)

	c.LoadMore()
	first := src.next(t)
	assert.Equal(t, "", first.query)
	assert.Equal(t, 1, first.page)
	assert.True(t, c.Loading())
	first.respond(span(1, 20), nil)
	require.True(t, rec.next(t).updated)

	assert.Equal(t, ids(span(1, 20)), ids(c.Photos()))
	assert.Equal(t, 2, c.Page())
	assert.False(t, c.Loading())

	c.LoadMore()
	second := src.next(t)
	assert.Equal(t, 2, second.page)
	second.respond(span(18, 22), nil)
	require.True(t, rec.next(t).updated)

	got := c.Photos()
	require.Len(t, got, 22)
	assert.Equal(t, ids(span(1, 22)), ids(got))
	assert.Equal(t, "p18", got[17].ID, "overlap keeps its first-page position")
	assert.Equal(t, 3, c.Page())
	assert.Equal(t, 1000, c.Total())
}

func TestFailureLeavesFeedAndPageUnchanged(t *testing.T) {
	c, src, rec := newTestCoordinator(t, time.Second)

	c.LoadMore()
	src.next(t).respond(span(1, 20), nil)
	require.True(t, rec.next(t).updated)

	c.LoadMore()
	boom := fmt.Errorf("%w: connection reset", photo.ErrTransport)
	src.next(t).respond(nil, boom)

	e := rec.next(t)
	require.False(t, e.updated)
	assert.ErrorIs(t, e.err, photo.ErrTransport)
	rec.none(t, 50*time.Millisecond)

	assert.Equal(t, 2, c.Page())
	assert.Equal(t, ids(span(1, 20)), ids(c.Photos()))
	assert.False(t, c.Loading())

	// retry resumes from the same page
	c.LoadMore()
	assert.Equal(t, 2, src.next(t).page)
}

func TestLoadMoreIsNoopWhileLoading(t *testing.T) {
	c, src, rec := newTestCoordinator(t, time.Second)

	c.LoadMore()
	c.LoadMore()
	c.LoadMore()
	first := src.next(t)
	src.none(t, 50*time.Millisecond)
	assert.Equal(t, Loading, c.State())

	first.respond(span(1, 3), nil)
	require.True(t, rec.next(t).updated)
	rec.none(t, 20*time.Millisecond)
	assert.Equal(t, Idle, c.State())
}

func TestDebounceIssuesOneFetchWithFinalText(t *testing.T) {
	c, src, rec := newTestCoordinator(t, 80*time.Millisecond)

	c.UpdateSearchText("a")
	c.UpdateSearchText("ab")
	c.UpdateSearchText("abc")
	assert.Equal(t, Debouncing, c.State())

	got := src.next(t)
	assert.Equal(t, "abc", got.query)
	assert.Equal(t, 1, got.page)
	src.none(t, 200*time.Millisecond)

	got.respond(span(1, 5), nil)
	require.True(t, rec.next(t).updated)
	assert.Equal(t, "abc", c.Query())
	assert.Equal(t, 2, c.Page())
}

func TestSearchReplacesFeedAndResetsPage(t *testing.T) {
	c, src, rec := newTestCoordinator(t, 20*time.Millisecond)

	c.LoadMore()
	src.next(t).respond(span(1, 20), nil)
	rec.next(t)
	c.LoadMore()
	src.next(t).respond(span(21, 40), nil)
	rec.next(t)
	require.Equal(t, 3, c.Page())

	c.UpdateSearchText("cats")
	got := src.next(t)
	assert.Equal(t, 1, got.page)
	got.respond(span(100, 104), nil)
	require.True(t, rec.next(t).updated)

	assert.Equal(t, ids(span(100, 104)), ids(c.Photos()))
	assert.Equal(t, 2, c.Page())
}

func TestStalePageFetchIsDiscardedAfterSearch(t *testing.T) {
	c, src, rec := newTestCoordinator(t, 20*time.Millisecond)

	c.LoadMore()
	src.next(t).respond(span(1, 20), nil)
	rec.next(t)

	c.LoadMore()
	stale := src.next(t)
	require.Equal(t, 2, stale.page)

	c.UpdateSearchText("dogs")
	search := src.next(t)
	require.Equal(t, "dogs", search.query)

	select {
	case <-stale.ctx.Done():
	case <-time.After(waitFor):
		t.Fatal("superseded fetch was not cancelled")
	}

	search.respond(span(200, 210), nil)
	require.True(t, rec.next(t).updated)

	stale.respond(span(21, 40), nil)
	rec.none(t, 50*time.Millisecond)

	assert.Equal(t, ids(span(200, 210)), ids(c.Photos()))
	assert.Equal(t, 2, c.Page())
	assert.False(t, c.Loading())
}

func TestStaleFailureIsNotReported(t *testing.T) {
	c, src, rec := newTestCoordinator(t, time.Second)

	c.LoadMore()
	stale := src.next(t)
	c.Refresh()
	fresh := src.next(t)
	assert.Equal(t, 1, fresh.page)

	stale.respond(nil, context.Canceled)
	rec.none(t, 50*time.Millisecond)
	assert.True(t, c.Loading(), "fresh fetch still running")

	fresh.respond(span(1, 2), nil)
	require.True(t, rec.next(t).updated)
	assert.False(t, c.Loading())
}

func TestCancelSearchReturnsToUnfilteredFeed(t *testing.T) {
	c, src, rec := newTestCoordinator(t, 20*time.Millisecond)

	c.UpdateSearchText("trees")
	src.next(t).respond(span(1, 20), nil)
	rec.next(t)
	require.Equal(t, "trees", c.Query())

	c.UpdateSearchText("tree")
	c.CancelSearch()
	got := src.next(t)
	assert.Equal(t, "", got.query)
	assert.Equal(t, 1, got.page)
	src.none(t, 80*time.Millisecond)

	got.respond(span(50, 60), nil)
	rec.next(t)
	assert.Equal(t, "", c.Query())
	assert.Equal(t, ids(span(50, 60)), ids(c.Photos()))
}

func TestPagedFeedNeverHoldsDuplicates(t *testing.T) {
	c, src, rec := newTestCoordinator(t, time.Second)

	pages := [][]photo.Photo{span(1, 20), span(15, 34), span(30, 49), span(1, 5), span(45, 64)}
	for _, p := range pages {
		c.LoadMore()
		src.next(t).respond(p, nil)
		require.True(t, rec.next(t).updated)
	}
	got := ids(c.Photos())
	assert.Equal(t, ids(span(1, 64)), got)
	assert.Equal(t, 6, c.Page())
}

func TestCloseSilencesPendingWork(t *testing.T) {
	src := newScriptedSource()
	rec := newRecorder()
	c := New(src, rec, Options{Debounce: 30 * time.Millisecond, Logger: log.New(io.Discard, "", 0)})

	c.LoadMore()
	inflight := src.next(t)
	c.UpdateSearchText("late")
	c.Close()

	inflight.respond(span(1, 3), nil)
	src.none(t, 100*time.Millisecond)
	rec.none(t, 20*time.Millisecond)

	c.LoadMore()
	src.none(t, 20*time.Millisecond)
	assert.Empty(t, c.Photos())
}
