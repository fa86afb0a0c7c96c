package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/moddengine/stockgrid/feed"
	"github.com/moddengine/stockgrid/layout"
	"github.com/moddengine/stockgrid/photo"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Load a few pages and print the resulting grid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		query, _ := cmd.Flags().GetString("query")
		pages, _ := cmd.Flags().GetInt("pages")
		width, _ := cmd.Flags().GetFloat64("width")

		apis := buildSearchers(cfg, nil)
		if len(apis) == 0 {
			return fmt.Errorf("no provider keys configured")
		}
		source := NewProviderSource(apis, cfg.RateInterval())
		grid := layout.New(layout.PhotoHeight, layout.Options{
			Columns: cfg.Layout.Columns,
			Padding: cfg.Layout.Padding,
		})
		grid.SetWidth(width)
		return browse(cmd.Context(), cmd.OutOrStdout(), source, grid, query, pages, cfg.Debounce())
	},
}

// browse drives a Coordinator the way a scrolling client would: one page at a
// time, waiting for each notification before asking for the next.
func browse(ctx context.Context, out io.Writer, source photo.Source, grid *layout.Engine, query string, pages int, debounce time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan error, 1)
	coord := feed.New(source, feed.ObserverFuncs{
		Updated: func() { done <- nil },
		Failed:  func(err error) { done <- err },
	}, feed.Options{Debounce: debounce, Logger: log.New(os.Stderr, "(feed) ", log.LstdFlags)})
	defer coord.Close()

	wait := func() error {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if query != "" {
		coord.UpdateSearchText(query)
	} else {
		coord.LoadMore()
	}
	if err := wait(); err != nil {
		return err
	}
	for i := 1; i < pages; i++ {
		coord.LoadMore()
		if err := wait(); err != nil {
			return err
		}
	}

	photos := coord.Photos()
	grid.Invalidate()
	grid.Prepare(photos)
	w, h := grid.ContentSize()
	fmt.Fprintf(out, "%d photos, page %d, content %.0fx%.0f\n", len(photos), coord.Page()-1, w, h)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tCOL\tX\tY\tW\tH\tARTIST")
	for _, it := range grid.Visible(layout.Rect{Width: w, Height: h}) {
		p := photos[it.Index]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.0f\t%.0f\t%.0f\t%.0f\t%s\n",
			it.Index, it.ID, it.Column, it.Frame.X, it.Frame.Y, it.Frame.Width, it.Frame.Height, p.Artist)
	}
	return tw.Flush()
}
