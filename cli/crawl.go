package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/config"
	"github.com/pkleine/melodex/setflag"
	"github.com/pkleine/melodex/subcmd"
)

func crawlCmd(ctx context.Context, logger *log.Logger, conf *config.Config, args []string) error {
	subcmd := subcmd.New("crawl", "crawl an artist's catalog into the database and the search index\nspotify requires credentials in config.toml or SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	subcmd.SetArg("artist", "string", "artist name to crawl (required)")
	sources := setflag.New("spotify", "musicbrainz")
	subcmd.Var(sources, "sources", "comma-separated sources to crawl: spotify, musicbrainz (default both)")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	artist := strings.Join(subcmd.Args(), " ")
	if artist == "" {
		subcmd.Usage()
		return fmt.Errorf("artist name is required")
	}

	useSpotify, useMusicBrainz := true, true
	if enabled := sources.List(); len(enabled) > 0 {
		useSpotify, useMusicBrainz = false, false
		for _, source := range enabled {
			switch source {
			case "spotify":
				useSpotify = true
			case "musicbrainz":
				useMusicBrainz = true
			}
		}
	}

	store, idx, err := openStores(conf)
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	docs, err := newCrawler(logger, conf, store, idx).Crawl(ctx, artist, useSpotify, useMusicBrainz)
	if err != nil {
		return fmt.Errorf("crawl error: %w", err)
	}
	fmt.Printf("committed %d songs for '%s'\n", len(docs), artist)
	return nil
}
