package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkleine/melodex/data"
)

type fakeLyrics struct {
	lyrics      string
	gotArtist   string
	gotTitle    string
	fetchCalled bool
}

func (l *fakeLyrics) Fetch(ctx context.Context, artistName, title string) string {
	l.fetchCalled = true
	l.gotArtist = artistName
	l.gotTitle = title
	return l.lyrics
}

func spotifySong() *data.CrawlSongData {
	date, _ := data.ParsePartialDate("1991-09-24")
	return &data.CrawlSongData{
		ID:             "sp-song",
		Title:          "Lithium",
		AlbumID:        "sp-album",
		AlbumTitle:     "Nevermind",
		AlbumCoverURL:  "https://img/album",
		ArtistID:       "sp-artist",
		ArtistName:     "Nirvana",
		ArtistCoverURL: "https://img/artist",
		Genres:         []string{"Grunge", "Rock"},
		ReleaseDate:    date,
		Provenance:     data.Authoritative,
	}
}

func secondarySong() *data.CrawlSongData {
	date, _ := data.ParsePartialDate("1990")
	return &data.CrawlSongData{
		ID:          "mbid_song",
		Title:       "Lithium",
		AlbumID:     "mbid_album",
		AlbumTitle:  "Nevermind (MB)",
		ArtistID:    "mbid_artist",
		ArtistName:  "Nirvana",
		Genres:      []string{"grunge", "alternative"},
		ReleaseDate: date,
		Provenance:  data.Placeholder,
	}
}

func TestSynthesizePairPrefersSpotify(t *testing.T) {
	lyr := &fakeLyrics{lyrics: "I'm so happy"}

	doc, resolved, err := Synthesize(context.Background(), lyr, spotifySong(), secondarySong())
	require.NoError(t, err)

	assert.Equal(t, "sp-song", doc.ID)
	assert.Equal(t, "Lithium", doc.Title)
	assert.Equal(t, "Nevermind", doc.AlbumTitle)
	assert.Equal(t, "Nirvana", doc.ArtistName)
	assert.Equal(t, "I'm so happy", doc.Lyrics)
	assert.Equal(t, "Nirvana", lyr.gotArtist)
	assert.Equal(t, "Lithium", lyr.gotTitle)

	assert.Equal(t, data.Authoritative, resolved.SongProvenance)
	assert.Equal(t, "sp-artist", resolved.ArtistID)
	assert.Equal(t, "https://img/artist", resolved.ArtistCoverURL)
	assert.Equal(t, data.Authoritative, resolved.ArtistProvenance)
	assert.Equal(t, "sp-album", resolved.AlbumID)
	assert.Equal(t, data.Authoritative, resolved.AlbumProvenance)
}

func TestSynthesizeGenreUnion(t *testing.T) {
	doc, _, err := Synthesize(context.Background(), &fakeLyrics{}, spotifySong(), secondarySong())
	require.NoError(t, err)

	assert.Equal(t, []string{"grunge", "rock", "alternative"}, doc.Genre)
}

func TestSynthesizeEarlierDateWins(t *testing.T) {
	doc, _, err := Synthesize(context.Background(), &fakeLyrics{}, spotifySong(), secondarySong())
	require.NoError(t, err)

	date, _ := data.ParsePartialDate("1990")
	assert.Equal(t, date.Unix(), doc.ReleaseDate)
}

func TestSynthesizeSecondaryOnly(t *testing.T) {
	doc, resolved, err := Synthesize(context.Background(), &fakeLyrics{}, nil, secondarySong())
	require.NoError(t, err)

	assert.Equal(t, "mbid_song", doc.ID)
	assert.Equal(t, "Nevermind (MB)", doc.AlbumTitle)
	assert.Equal(t, data.Placeholder, resolved.SongProvenance)
	assert.Equal(t, "mbid_artist", resolved.ArtistID)
	assert.Equal(t, data.Placeholder, resolved.ArtistProvenance)
}

func TestSynthesizeNoIdentity(t *testing.T) {
	_, _, err := Synthesize(context.Background(), &fakeLyrics{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoIdentity)

	noAlbum := spotifySong()
	noAlbum.AlbumID = ""
	secondary := secondarySong()
	secondary.AlbumID = ""
	_, _, err = Synthesize(context.Background(), &fakeLyrics{}, noAlbum, secondary)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSynthesizeSkipsLyricsWithoutNames(t *testing.T) {
	song := secondarySong()
	song.Title = ""

	lyr := &fakeLyrics{lyrics: "should not appear"}
	doc, _, err := Synthesize(context.Background(), lyr, nil, song)
	require.NoError(t, err)

	assert.False(t, lyr.fetchCalled)
	assert.Equal(t, "", doc.Lyrics)
}
