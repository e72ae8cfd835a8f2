package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkleine/melodex/config"
	"github.com/pkleine/melodex/index"
	"github.com/pkleine/melodex/subcmd"
)

func songCmd(ctx context.Context, conf *config.Config, args []string) error {
	subcmd := subcmd.New("song", "look up one song by id")
	subcmd.SetArg("id", "string", "song id (required)")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	id := strings.Join(subcmd.Args(), " ")
	if id == "" {
		subcmd.Usage()
		return fmt.Errorf("song id is required")
	}

	store, idx, err := openStores(conf)
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	song, err := store.GetSong(id)
	if err != nil {
		return fmt.Errorf("error getting song '%s': %w", id, err)
	}
	fmt.Printf("title:\t%s\n", song.Title)
	if song.Embed != "" {
		fmt.Printf("embed:\t%s\n", song.Embed)
	}

	if artist, err := store.GetArtistBySong(id); err == nil {
		fmt.Printf("artist:\t%s\n", artist.Name)
	}
	if album, err := store.GetAlbumBySong(id); err == nil {
		fmt.Printf("album:\t%s\n", album.Name)
	}

	doc, err := idx.Get(id)
	if errors.Is(err, index.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	if len(doc.Genre) > 0 {
		fmt.Printf("genres:\t%s\n", strings.Join(doc.Genre, ", "))
	}
	if doc.Lyrics != "" {
		fmt.Printf("\n%s\n", doc.Lyrics)
	}
	return nil
}
