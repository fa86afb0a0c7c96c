package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moddengine/stockgrid/feed"
	"github.com/moddengine/stockgrid/layout"
)

const defaultConfigFile string = "conf/config.json"

type Config struct {
	Pexels struct {
		Key string `json:"key"`
	} `json:"pexels.com"`
	Unsplash struct {
		AccessKey string `json:"access"`
		SecretKey string `json:"secret"`
	} `json:"unsplash.com"`
	Pixabay struct {
		Key string `json:"key"`
	} `json:"pixabay.com"`
	Database    string `json:"database"`
	Listen      string `json:"listen"`
	Auth        bool   `json:"auth"`
	RateLimitMs int    `json:"rateLimitMs"`
	Layout      struct {
		Columns int     `json:"columns"`
		Padding float64 `json:"padding"`
	} `json:"layout"`
	Feed struct {
		DebounceMs int `json:"debounceMs"`
	} `json:"feed"`
	Images struct {
		CacheSize  int      `json:"cacheSize"`
		TTLSeconds int      `json:"ttl"`
		Hosts      []string `json:"hosts"`
	} `json:"images"`
	Sessions struct {
		IdleSeconds int `json:"idleSeconds"`
	} `json:"sessions"`
	Debug struct {
		PrettyJson bool `json:"prettyJson"`
		Pprof      bool `json:"pprof"`
	} `json:"debug"`
}

func (cfg *Config) applyDefaults() {
	if cfg.Database == "" {
		cfg.Database = dbFile
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8081"
	}
	if cfg.RateLimitMs <= 0 {
		cfg.RateLimitMs = 250
	}
	if cfg.Layout.Columns <= 0 {
		cfg.Layout.Columns = layout.DefaultColumns
	}
	if cfg.Layout.Padding <= 0 {
		cfg.Layout.Padding = layout.DefaultPadding
	}
	if cfg.Feed.DebounceMs <= 0 {
		cfg.Feed.DebounceMs = int(feed.DefaultDebounce / time.Millisecond)
	}
	if cfg.Images.CacheSize <= 0 {
		cfg.Images.CacheSize = 256
	}
	if cfg.Images.TTLSeconds <= 0 {
		cfg.Images.TTLSeconds = 3600
	}
	if cfg.Sessions.IdleSeconds <= 0 {
		cfg.Sessions.IdleSeconds = 1800
	}
	if len(cfg.Images.Hosts) == 0 {
		cfg.Images.Hosts = DefaultImageHosts
	}
}

func (cfg *Config) Debounce() time.Duration {
	return time.Duration(cfg.Feed.DebounceMs) * time.Millisecond
}

func (cfg *Config) SessionIdle() time.Duration {
	return time.Duration(cfg.Sessions.IdleSeconds) * time.Second
}

func (cfg *Config) RateInterval() time.Duration {
	return time.Duration(cfg.RateLimitMs) * time.Millisecond
}

func loadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			if _, seekErr := f.Seek(0, io.SeekStart); seekErr == nil {
				pos := findPos(bufio.NewReader(f), int(syntaxErr.Offset))
				return nil, fmt.Errorf("unable to decode configuration file (Line: %d, Pos: %d): %w", pos.line, pos.pos, err)
			}
		}
		return nil, fmt.Errorf("unable to decode configuration file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type FilePos struct {
	line int
	pos  int
}

func findPos(file *bufio.Reader, offset int) FilePos {
	p := FilePos{line: 1, pos: offset}
	var lineLen int
	for line, err := file.ReadBytes('\n'); len(line) > 0 && err == nil; line, err = file.ReadBytes('\n') {
		if p.pos < len(line) {
			return p
		}
		lineLen += len(line)
		if line[len(line)-1] == '\n' {
			p.line += 1
			p.pos -= lineLen
			lineLen = 0
		}
	}
	return p
}
