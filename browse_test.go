package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moddengine/stockgrid/layout"
)

func TestBrowsePrintsGrid(t *testing.T) {
	source := &pagedSource{}
	grid := layout.New(layout.PhotoHeight, layout.Options{Logger: quietLog})
	grid.SetWidth(200)

	var out bytes.Buffer
	err := browse(context.Background(), &out, source, grid, "", 2, 10*time.Millisecond)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2+40)
	assert.True(t, strings.HasPrefix(lines[0], "40 photos, page 2"), lines[0])
	assert.Contains(t, lines[2], "all/0")
	assert.Equal(t, []string{"#1", "#2"}, source.calls)
}

func TestBrowseSearchUsesDebouncedQuery(t *testing.T) {
	source := &pagedSource{}
	grid := layout.New(layout.PhotoHeight, layout.Options{Logger: quietLog})
	grid.SetWidth(200)

	var out bytes.Buffer
	require.NoError(t, browse(context.Background(), &out, source, grid, "owl", 1, 10*time.Millisecond))
	assert.Equal(t, []string{"owl#1"}, source.calls)
	assert.Contains(t, out.String(), "owl/19")
}

func TestBrowseReturnsFetchError(t *testing.T) {
	source := &pagedSource{fail: true}
	grid := layout.New(layout.PhotoHeight, layout.Options{Logger: quietLog})
	grid.SetWidth(200)

	err := browse(context.Background(), &bytes.Buffer{}, source, grid, "", 1, 10*time.Millisecond)
	assert.ErrorContains(t, err, "upstream down")
}
