// Package layout places photo tiles into a fixed number of columns.
//
// Tiles are assigned round-robin (item i goes to column i mod columns), not to
// the shortest column. Frames are cached by photo id and are only valid for the
// width and column count they were computed with.
package layout

import (
	"log"
	"os"
	"sort"
	"sync"

	"github.com/moddengine/stockgrid/photo"
)

const (
	DefaultColumns int     = 2
	DefaultPadding float64 = 6
)

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersects reports whether r and o share any area.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.MaxX() && o.X < r.MaxX() && r.Y < o.MaxY() && o.Y < r.MaxY()
}

// Contains reports whether the point (x, y) lies inside r. The right and
// bottom edges are exclusive.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.MaxX() && y >= r.Y && y < r.MaxY()
}

// Inset shrinks r by dx on the left and right and dy on the top and bottom.
func (r Rect) Inset(dx, dy float64) Rect {
	out := Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width - 2*dx, Height: r.Height - 2*dy}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

// HeightFunc returns the rendered height of a photo at the given column width.
type HeightFunc func(p photo.Photo, columnWidth float64) float64

// PhotoHeight is the HeightFunc that keeps the photo's aspect ratio.
func PhotoHeight(p photo.Photo, columnWidth float64) float64 {
	return p.HeightFor(columnWidth)
}

type Item struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Column int    `json:"column"`
	Frame  Rect   `json:"frame"`
}

type Options struct {
	Columns int
	// Padding defaults to DefaultPadding when zero; a negative value disables it.
	Padding float64
	Logger  *log.Logger
}

type Engine struct {
	mu      sync.Mutex
	height  HeightFunc
	columns int
	padding float64
	width   float64
	log     *log.Logger

	cache         map[string]Item
	contentHeight float64
}

func New(height HeightFunc, opts Options) *Engine {
	if height == nil {
		height = PhotoHeight
	}
	if opts.Columns == 0 {
		opts.Columns = DefaultColumns
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	} else if opts.Padding == 0 {
		opts.Padding = DefaultPadding
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "(layout) ", log.LstdFlags)
	}
	return &Engine{
		height:  height,
		columns: opts.Columns,
		padding: opts.Padding,
		log:     logger,
		cache:   map[string]Item{},
	}
}

// SetWidth updates the viewport width. A different width drops every cached
// frame and reports true.
func (e *Engine) SetWidth(width float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if width == e.width {
		return false
	}
	e.width = width
	e.reset()
	return true
}

func (e *Engine) SetColumns(columns int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if columns == e.columns {
		return false
	}
	e.columns = columns
	e.reset()
	return true
}

func (e *Engine) Width() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width
}

func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

func (e *Engine) reset() {
	e.cache = map[string]Item{}
	e.contentHeight = 0
}

// ColumnWidth is the width of a single column including its padding.
func (e *Engine) ColumnWidth() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.columnWidth()
}

func (e *Engine) columnWidth() float64 {
	if e.columns < 1 || e.width <= 0 {
		return 0
	}
	return e.width / float64(e.columns)
}

// Prepare lays out items unless the cache already holds as many frames as
// there are items. The count check is a cheap sentinel: a feed that was
// replaced by a feed of the same length keeps the old frames until the next
// Invalidate or width change.
func (e *Engine) Prepare(items []photo.Photo) {
	e.mu.Lock()
	defer e.mu.Unlock()

	colWidth := e.columnWidth()
	if len(items) == 0 || colWidth <= 0 {
		e.reset()
		return
	}
	if len(e.cache) > 0 && len(e.cache) == len(items) {
		return
	}
	e.reset()

	yOffset := make([]float64, e.columns)
	column := 0
	for i, p := range items {
		h := e.height(p, colWidth)
		if h < 0 {
			h = 0
		}
		outer := Rect{
			X:      float64(column) * colWidth,
			Y:      yOffset[column],
			Width:  colWidth,
			Height: h + 2*e.padding,
		}
		e.cache[p.ID] = Item{
			ID:     p.ID,
			Index:  i,
			Column: column,
			Frame:  outer.Inset(e.padding, e.padding),
		}
		if outer.MaxY() > e.contentHeight {
			e.contentHeight = outer.MaxY()
		}
		yOffset[column] += outer.Height
		column = (column + 1) % e.columns
	}
	if len(e.cache) != len(items) {
		e.log.Printf("%d duplicate ids in %d items", len(items)-len(e.cache), len(items))
	}
}

// Frame returns the cached frame for id, or an empty Rect when id has not
// been laid out yet.
func (e *Engine) Frame(id string) Rect {
	r, _ := e.Lookup(id)
	return r
}

func (e *Engine) Lookup(id string) (Rect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	it, ok := e.cache[id]
	return it.Frame, ok
}

// Visible returns the cached items whose frames intersect rect, in placement
// order.
func (e *Engine) Visible(rect Rect) []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Item, 0)
	for _, it := range e.cache {
		// a photo without dimensions still occupies its padded slot
		if it.Frame.Intersects(rect) || (it.Frame.Empty() && !rect.Empty() && rect.Contains(it.Frame.X, it.Frame.Y)) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (e *Engine) ContentSize() (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.width <= 0 {
		return 0, e.contentHeight
	}
	return e.width, e.contentHeight
}

// Len is the number of cached frames.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
