// Package crawl orchestrates a catalog crawl: it pulls an artist's songs
// from the enabled providers, pairs up records that describe the same song,
// merges each pair into one document, and commits the result to the
// relational store and the search index.
package crawl

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/db"
	"github.com/pkleine/melodex/index"
)

var (
	// ErrNoSourceEnabled means the caller disabled every provider.
	ErrNoSourceEnabled = errors.New("at least one source is required")

	// ErrNothingFound means every enabled provider came back empty.
	ErrNothingFound = errors.New("no songs found for artist")
)

// A CatalogProvider crawls one upstream catalog for all songs of an artist.
// An unknown artist yields an empty list, not an error.
type CatalogProvider interface {
	CrawlAllSongsOfArtist(ctx context.Context, artistName string) ([]data.CrawlSongData, error)
}

func New(logger *log.Logger, store *db.DB, idx *index.Index, spotify, musicbrainz CatalogProvider, lyr LyricsProvider) *Crawler {
	return &Crawler{
		logger:      logger,
		db:          store,
		idx:         idx,
		spotify:     spotify,
		musicbrainz: musicbrainz,
		lyrics:      lyr,
	}
}

type Crawler struct {
	logger *log.Logger
	db     *db.DB
	idx    *index.Index

	spotify     CatalogProvider
	musicbrainz CatalogProvider
	lyrics      LyricsProvider
}

// Crawl fetches the artist's songs from each enabled provider, pairs and
// merges them, and writes every merged song through the reconciler and into
// the search index. It returns the documents that committed successfully.
//
// A provider that errors contributes no records but does not abort the
// crawl; likewise a single song that fails to merge or commit is skipped. An
// empty result is only an error when no provider produced anything at all.
func (c *Crawler) Crawl(ctx context.Context, artistName string, useSpotify, useMusicBrainz bool) ([]data.SongDocument, error) {
	if !useSpotify && !useMusicBrainz {
		return nil, ErrNoSourceEnabled
	}

	var spotifySongs, secondarySongs []data.CrawlSongData
	var group errgroup.Group
	if useSpotify {
		group.Go(func() error {
			songs, err := c.spotify.CrawlAllSongsOfArtist(ctx, artistName)
			if err != nil {
				c.logger.Error("spotify crawl failed", "artist", artistName, "error", err)
				return nil
			}
			spotifySongs = songs
			return nil
		})
	}
	if useMusicBrainz {
		group.Go(func() error {
			songs, err := c.musicbrainz.CrawlAllSongsOfArtist(ctx, artistName)
			if err != nil {
				c.logger.Error("musicbrainz crawl failed", "artist", artistName, "error", err)
				return nil
			}
			secondarySongs = songs
			return nil
		})
	}
	group.Wait()

	if len(spotifySongs) == 0 && len(secondarySongs) == 0 {
		return nil, ErrNothingFound
	}
	c.logger.Info("crawled", "artist", artistName,
		"spotify", len(spotifySongs), "musicbrainz", len(secondarySongs))

	var committed []data.SongDocument
	for _, p := range pairUp(spotifySongs, secondarySongs) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}
		doc, err := c.commit(ctx, p)
		if err != nil {
			c.logger.Warn("skipping song", "title", p.title(), "error", err)
			continue
		}
		committed = append(committed, *doc)
	}
	c.logger.Info("crawl done", "artist", artistName, "committed", len(committed))
	return committed, nil
}

type pair struct {
	spotify   *data.CrawlSongData
	secondary *data.CrawlSongData
}

func (p pair) title() string {
	if p.spotify != nil {
		return p.spotify.Title
	}
	return p.secondary.Title
}

// pairUp matches each spotify record with the first secondary record that has
// the same title and artist name. A matched secondary record is consumed.
// Whatever remains unmatched on the secondary side trails the output as
// secondary-only pairs.
func pairUp(spotifySongs, secondarySongs []data.CrawlSongData) []pair {
	remaining := make([]*data.CrawlSongData, len(secondarySongs))
	for i := range secondarySongs {
		remaining[i] = &secondarySongs[i]
	}

	var pairs []pair
	for i := range spotifySongs {
		spo := &spotifySongs[i]
		p := pair{spotify: spo}
		for j, sec := range remaining {
			if sec != nil && sec.Title == spo.Title && sec.ArtistName == spo.ArtistName {
				p.secondary = sec
				remaining[j] = nil
				break
			}
		}
		pairs = append(pairs, p)
	}
	for _, sec := range remaining {
		if sec != nil {
			pairs = append(pairs, pair{secondary: sec})
		}
	}
	return pairs
}

// commit runs one pair through the full pipeline: synthesize, reconcile
// artist then album then song, index the document, drop any superseded index
// entry.
func (c *Crawler) commit(ctx context.Context, p pair) (*data.SongDocument, error) {
	doc, resolved, err := Synthesize(ctx, c.lyrics, p.spotify, p.secondary)
	if err != nil {
		return nil, err
	}

	artist, err := c.db.ReconcileArtist(&data.Artist{
		ID:         resolved.ArtistID,
		Name:       doc.ArtistName,
		CoverURL:   resolved.ArtistCoverURL,
		Provenance: resolved.ArtistProvenance,
	})
	if err != nil {
		return nil, fmt.Errorf("error reconciling artist '%s': %w", doc.ArtistName, err)
	}

	album, err := c.db.ReconcileAlbum(&data.Album{
		ID:         resolved.AlbumID,
		ArtistID:   artist.ID,
		Name:       doc.AlbumTitle,
		CoverURL:   resolved.AlbumCoverURL,
		Provenance: resolved.AlbumProvenance,
	})
	if err != nil {
		return nil, fmt.Errorf("error reconciling album '%s': %w", doc.AlbumTitle, err)
	}

	song, oldID, err := c.db.ReconcileSong(&data.Song{
		ID:         doc.ID,
		Title:      doc.Title,
		AlbumID:    album.ID,
		Provenance: resolved.SongProvenance,
	})
	if err != nil {
		return nil, fmt.Errorf("error reconciling song '%s': %w", doc.Title, err)
	}

	// the reconciler may have returned a previously committed song under a
	// different id than the candidate's; the index entry must join on the
	// id that is actually in the store
	doc.ID = song.ID
	if err := c.idx.Upsert(doc); err != nil {
		return nil, fmt.Errorf("error indexing song '%s': %w", doc.Title, err)
	}
	if oldID != "" && oldID != song.ID {
		if err := c.idx.Delete(oldID); err != nil {
			return nil, fmt.Errorf("error dropping stale index entry '%s': %w", oldID, err)
		}
	}
	return doc, nil
}
