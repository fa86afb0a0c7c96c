package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockgrid",
	Short: "Photo grid backend over stock photo APIs",
	Long: strings.TrimSpace(`
Pages through Unsplash, Pexels and Pixabay, keeps a deduplicated render feed
per browsing session and lays it out as a fixed-column photo grid.
`),
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the grid API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Listen = addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		store, err := NewStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		reqCache := NewReqCache(ctx, store)

		apis := buildSearchers(cfg, reqCache)
		if len(apis) == 0 {
			return errors.New("no provider keys configured")
		}
		source := NewProviderSource(apis, cfg.RateInterval())
		images := NewImageLoader(cfg.Images.CacheSize, time.Duration(cfg.Images.TTLSeconds)*time.Second, cfg.Images.Hosts)
		srv := NewServer(cfg, source, images, store)
		defer srv.Close()

		go srv.reapIdle(ctx, time.Minute)

		httpSrv := srv.HTTPServer()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		log.Printf("Starting Server on %s with %d providers", cfg.Listen, len(apis))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var userAddCmd = &cobra.Command{
	Use:   "useradd <user> <password>",
	Short: "Create or update an API user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		store, err := NewStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		level, _ := cmd.Flags().GetInt("level")
		if err := store.AddUser(args[0], args[1], level); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", args[0])
		return nil
	},
}

func configFromFlags(cmd *cobra.Command) (*Config, error) {
	filename, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(filename)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", filename, err)
	}
	return cfg, nil
}

func buildSearchers(cfg *Config, reqCache *ReqCache) []ImageSearcher {
	var apis []ImageSearcher

	if cfg.Pixabay.Key != "" {
		apiPixabay := NewPixabayApi(cfg, reqCache)
		apis = append(apis, &apiPixabay)
	}
	if cfg.Pexels.Key != "" {
		apiPexels := NewPexelsApi(cfg, reqCache)
		apis = append(apis, &apiPexels)
	}
	if cfg.Unsplash.AccessKey != "" {
		apiUnsplash := NewUnsplashApi(cfg, reqCache)
		apis = append(apis, &apiUnsplash)
	}
	return apis
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error executing command: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigFile, "Configuration file")
	serveCmd.Flags().StringP("addr", "a", "", "Address to bind the webserver (overrides config)")
	userAddCmd.Flags().Int("level", 1, "Access level stored with the user")
	browseCmd.Flags().StringP("query", "q", "", "Search text; empty browses the unfiltered feed")
	browseCmd.Flags().IntP("pages", "p", 1, "Number of pages to load")
	browseCmd.Flags().Float64P("width", "w", 390, "Viewport width used for the layout")

	rootCmd.AddCommand(serveCmd, userAddCmd, browseCmd)
}
