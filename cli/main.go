// melodex aggregates song metadata from spotify and musicbrainz into a
// sqlite database and a bleve search index, and serves both over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/config"
	"github.com/pkleine/melodex/crawl"
	"github.com/pkleine/melodex/db"
	"github.com/pkleine/melodex/index"
	"github.com/pkleine/melodex/lyrics"
	"github.com/pkleine/melodex/musicbrainz"
	"github.com/pkleine/melodex/readthrough"
	"github.com/pkleine/melodex/sigctx"
	"github.com/pkleine/melodex/spotify"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var usage = strings.TrimSpace(`
usage: melodex $cmd
valid $cmd are 'crawl', 'serve', 'search', 'song', 'init'
for help: melodex $cmd -help
`)

func run() error {
	ctx := sigctx.New()
	logger := log.New(os.Stderr)

	if len(os.Args) < 2 {
		return fmt.Errorf(usage)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "init" {
		return config.WriteExample("config.toml")
	}

	conf, err := config.Load("config.toml")
	if err != nil {
		return err
	}

	switch cmd {
	case "crawl":
		return crawlCmd(ctx, logger, conf, args)

	case "serve":
		return serveCmd(ctx, logger, conf, args)

	case "search":
		return searchCmd(ctx, conf, args)

	case "song":
		return songCmd(ctx, conf, args)

	default:
		return fmt.Errorf("unknown cmd: '%s'\n%s", cmd, usage)
	}
}

// openStores opens the database and the index side by side; both or neither.
func openStores(conf *config.Config) (*db.DB, *index.Index, error) {
	store, err := db.Open(conf.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.Open(conf.Index.Path)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, idx, nil
}

func newCrawler(logger *log.Logger, conf *config.Config, store *db.DB, idx *index.Index) *crawl.Crawler {
	spo := spotify.New(logger, conf.Spotify.ClientID, conf.Spotify.ClientSecret)
	mb := musicbrainz.New(logger, readthrough.New(conf.Cache.Dir))
	lyr := lyrics.New(logger)
	return crawl.New(logger, store, idx, spo, mb, lyr)
}
