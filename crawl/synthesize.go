package crawl

import (
	"context"
	"errors"
	"strings"

	"github.com/pkleine/melodex/data"
)

// ErrNoIdentity means neither source supplied enough ids to reconcile the
// song. It is an expected outcome for sparse catalog data, not a fault.
var ErrNoIdentity = errors.New("no usable identity")

// A LyricsProvider looks up lyrics for a song, returning "" when it can't.
type LyricsProvider interface {
	Fetch(ctx context.Context, artistName, title string) string
}

// Resolved carries the identity fields the reconciler needs but the search
// document doesn't: which artist and album rows this song belongs to, and
// whether each id is authoritative or a placeholder.
type Resolved struct {
	SongProvenance data.Provenance

	ArtistID         string
	ArtistCoverURL   string
	ArtistProvenance data.Provenance

	AlbumID         string
	AlbumCoverURL   string
	AlbumProvenance data.Provenance
}

// Synthesize merges up to two same-song records, one per provider, into one
// search document plus the resolved identities for the reconciler. Spotify's
// value wins any field both sources fill; genres are unioned; the earlier of
// the two release dates wins.
//
// Lyrics are looked up with the merged artist name and title. A failed or
// slow lookup degrades to empty lyrics.
//
// Synthesize returns ErrNoIdentity when no song, artist, or album id can be
// resolved; the caller should skip the pair.
func Synthesize(ctx context.Context, lyr LyricsProvider, spotifyData, secondaryData *data.CrawlSongData) (*data.SongDocument, *Resolved, error) {
	if spotifyData == nil && secondaryData == nil {
		return nil, nil, ErrNoIdentity
	}
	if spotifyData == nil {
		spotifyData = &data.CrawlSongData{Provenance: data.Placeholder}
	}
	if secondaryData == nil {
		secondaryData = &data.CrawlSongData{Provenance: data.Placeholder}
	}

	id, songProv := pickID(spotifyData.ID, secondaryData.ID, spotifyData, secondaryData)
	artistID, artistProv := pickID(spotifyData.ArtistID, secondaryData.ArtistID, spotifyData, secondaryData)
	albumID, albumProv := pickID(spotifyData.AlbumID, secondaryData.AlbumID, spotifyData, secondaryData)
	if id == "" || artistID == "" || albumID == "" {
		return nil, nil, ErrNoIdentity
	}

	doc := &data.SongDocument{
		ID:          id,
		Title:       pick(spotifyData.Title, secondaryData.Title),
		AlbumTitle:  pick(spotifyData.AlbumTitle, secondaryData.AlbumTitle),
		ArtistName:  pick(spotifyData.ArtistName, secondaryData.ArtistName),
		Genre:       unionGenres(spotifyData.Genres, secondaryData.Genres),
		ReleaseDate: earlierUnix(spotifyData.ReleaseDate, secondaryData.ReleaseDate),
	}

	if doc.ArtistName != "" && doc.Title != "" {
		doc.Lyrics = lyr.Fetch(ctx, doc.ArtistName, doc.Title)
	}

	resolved := &Resolved{
		SongProvenance:   songProv,
		ArtistID:         artistID,
		ArtistCoverURL:   pick(spotifyData.ArtistCoverURL, secondaryData.ArtistCoverURL),
		ArtistProvenance: artistProv,
		AlbumID:          albumID,
		AlbumCoverURL:    pick(spotifyData.AlbumCoverURL, secondaryData.AlbumCoverURL),
		AlbumProvenance:  albumProv,
	}
	return doc, resolved, nil
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

// pickID chooses an id the way pick chooses a value, and reports which
// record's provenance travels with the chosen id.
func pickID(preferred, fallback string, preferredSrc, fallbackSrc *data.CrawlSongData) (string, data.Provenance) {
	if preferred != "" {
		return preferred, preferredSrc.Provenance
	}
	return fallback, fallbackSrc.Provenance
}

// unionGenres folds both lists to lower case and de-duplicates, keeping
// first-seen order.
func unionGenres(a, b []string) []string {
	var union []string
	seen := map[string]bool{}
	for _, genre := range append(append([]string{}, a...), b...) {
		folded := strings.ToLower(genre)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		union = append(union, folded)
	}
	return union
}

// earlierUnix returns the earlier of two partial dates as unix seconds, or 0
// when neither source dated the song.
func earlierUnix(a, b *data.PartialDate) int64 {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return b.Unix()
	case b == nil:
		return a.Unix()
	case b.Before(*a):
		return b.Unix()
	default:
		return a.Unix()
	}
}
