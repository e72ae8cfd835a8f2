package musicbrainz_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/musicbrainz"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *musicbrainz.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return musicbrainz.NewWithBaseURL(log.New(io.Discard), srv.URL, srv.Client())
}

func TestCrawlAllSongsOfArtist(t *testing.T) {
	mb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		switch {
		case r.URL.Path == "/artist":
			assert.Equal(t, "nirvana", r.URL.Query().Get("query"))
			fmt.Fprint(w, `{"artists": [{"id": "mb-artist", "name": "Nirvana"}]}`)

		case r.URL.Path == "/work":
			if r.URL.Query().Get("offset") != "0" {
				fmt.Fprint(w, `{"works": []}`)
				return
			}
			fmt.Fprint(w, `{"works": [
				{
					"id": "mb-work-1",
					"title": "Sliver",
					"genres": [{"name": "grunge"}],
					"relations": [
						{"recording": {"id": "mb-rec-early"}},
						{"recording": {"id": "mb-rec-late"}}
					]
				},
				{"id": "mb-work-2", "title": "(untitled)", "relations": []},
				{"id": "mb-work-3", "title": "Undated", "relations": []}
			]}`)

		case r.URL.Path == "/recording" && r.URL.Query().Get("artist") != "":
			if r.URL.Query().Get("offset") != "0" {
				fmt.Fprint(w, `{"recordings": []}`)
				return
			}
			fmt.Fprint(w, `{"recordings": [
				{"id": "mb-rec-early", "first-release-date": "1990-09"},
				{"id": "mb-rec-late", "first-release-date": "1992-12-15"}
			]}`)

		case strings.HasPrefix(r.URL.Path, "/recording/"):
			assert.Equal(t, "/recording/mb-rec-early", r.URL.Path)
			fmt.Fprint(w, `{
				"first-release-date": "1990-09",
				"releases": [
					{"title": "Incesticide", "date": "1992-12-15"},
					{"title": "Sliver", "date": "1990-09"}
				]
			}`)

		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
		}
	})

	songs, err := mb.CrawlAllSongsOfArtist(context.Background(), "nirvana")
	require.NoError(t, err)
	require.Len(t, songs, 1)

	song := songs[0]
	assert.Equal(t, "mbid_mb-work-1", song.ID)
	assert.Equal(t, "Sliver", song.Title)
	assert.Equal(t, "mbid_mb-rec-early", song.AlbumID)
	assert.Equal(t, "Sliver", song.AlbumTitle)
	assert.Equal(t, "mbid_mb-artist", song.ArtistID)
	assert.Equal(t, "Nirvana", song.ArtistName)
	assert.Equal(t, []string{"grunge"}, song.Genres)
	assert.Equal(t, data.Placeholder, song.Provenance)
	require.NotNil(t, song.ReleaseDate)
	assert.Equal(t, "1990-09", song.ReleaseDate.String())
}

func TestCrawlUnknownArtist(t *testing.T) {
	mb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"artists": []}`)
	})

	songs, err := mb.CrawlAllSongsOfArtist(context.Background(), "no such artist")
	require.NoError(t, err)
	assert.Empty(t, songs)
}
