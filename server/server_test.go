package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkleine/melodex/crawl"
	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/db"
	"github.com/pkleine/melodex/index"
	"github.com/pkleine/melodex/server"
)

type fakeCrawler struct {
	docs []data.SongDocument
	err  error
}

func (c *fakeCrawler) Crawl(ctx context.Context, artistName string, useSpotify, useMusicBrainz bool) ([]data.SongDocument, error) {
	if !useSpotify && !useMusicBrainz {
		return nil, crawl.ErrNoSourceEnabled
	}
	return c.docs, c.err
}

func newTestServer(t *testing.T, crawler server.Crawler) (*httptest.Server, *db.DB, *index.Index) {
	t.Helper()

	store, err := db.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	idx, err := index.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	srv := httptest.NewServer(server.New(log.New(io.Discard), store, idx, crawler).Handler())
	t.Cleanup(srv.Close)
	return srv, store, idx
}

func seedSong(t *testing.T, store *db.DB, idx *index.Index) {
	t.Helper()

	_, err := store.ReconcileArtist(&data.Artist{ID: "sp-artist", Name: "Nirvana", Provenance: data.Authoritative})
	require.NoError(t, err)
	_, err = store.ReconcileAlbum(&data.Album{ID: "sp-album", ArtistID: "sp-artist", Name: "Nevermind", Provenance: data.Authoritative})
	require.NoError(t, err)
	_, _, err = store.ReconcileSong(&data.Song{
		ID: "sp-song", Title: "Lithium", AlbumID: "sp-album",
		Embed: data.EmbedURL("sp-song", data.Authoritative), Provenance: data.Authoritative,
	})
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(&data.SongDocument{
		ID: "sp-song", Title: "Lithium", AlbumTitle: "Nevermind",
		ArtistName: "Nirvana", Lyrics: "I'm so happy", Genre: []string{"grunge"},
	}))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	bs, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(bs))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCrawlEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCrawler{docs: []data.SongDocument{{ID: "sp-song", Title: "Lithium"}}})

	resp := postJSON(t, srv.URL+"/api/crawl", map[string]any{"artist": "nirvana", "spotify": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Artist string              `json:"artist"`
		Songs  []data.SongDocument `json:"songs"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "nirvana", body.Artist)
	require.Len(t, body.Songs, 1)
	assert.Equal(t, "Lithium", body.Songs[0].Title)
}

func TestCrawlEndpointRejectsBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeCrawler{err: crawl.ErrNothingFound})

	resp := postJSON(t, srv.URL+"/api/crawl", map[string]any{"spotify": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/crawl", map[string]any{"artist": "nirvana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/crawl", map[string]any{"artist": "nobody", "spotify": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestGetSongJoinsIndexDocument(t *testing.T) {
	srv, store, idx := newTestServer(t, &fakeCrawler{})
	seedSong(t, store, idx)

	resp, err := http.Get(srv.URL + "/api/songs/sp-song")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID         string   `json:"id"`
		Title      string   `json:"title"`
		AlbumID    string   `json:"albumId"`
		ArtistName string   `json:"artistName"`
		Embed      string   `json:"embed"`
		Lyrics     string   `json:"lyrics"`
		Genre      []string `json:"genre"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "sp-song", body.ID)
	assert.Equal(t, "sp-album", body.AlbumID)
	assert.Equal(t, "Nirvana", body.ArtistName)
	assert.Equal(t, "https://open.spotify.com/embed/track/sp-song", body.Embed)
	assert.Equal(t, "I'm so happy", body.Lyrics)
	assert.Equal(t, []string{"grunge"}, body.Genre)

	resp, err = http.Get(srv.URL + "/api/songs/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchEndpoint(t *testing.T) {
	srv, store, idx := newTestServer(t, &fakeCrawler{})
	seedSong(t, store, idx)

	resp, err := http.Get(srv.URL + "/api/search?query=lithium&fields=title")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Songs []data.SongDocument `json:"songs"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Songs, 1)
	assert.Equal(t, "sp-song", body.Songs[0].ID)

	resp, err = http.Get(srv.URL + "/api/search?query=x&fields=bogus")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/search")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchAlbumsDeduplicates(t *testing.T) {
	srv, store, idx := newTestServer(t, &fakeCrawler{})
	seedSong(t, store, idx)

	_, _, err := store.ReconcileSong(&data.Song{
		ID: "sp-song-2", Title: "Come as You Are", AlbumID: "sp-album", Provenance: data.Authoritative,
	})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(&data.SongDocument{
		ID: "sp-song-2", Title: "Come as You Are", AlbumTitle: "Nevermind", ArtistName: "Nirvana",
	}))

	resp, err := http.Get(srv.URL + "/api/albums?query=nevermind")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Albums []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"albums"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Albums, 1)
	assert.Equal(t, "sp-album", body.Albums[0].ID)
	assert.Equal(t, "Nevermind", body.Albums[0].Name)
}

func TestAlbumAndArtistSongs(t *testing.T) {
	srv, store, idx := newTestServer(t, &fakeCrawler{})
	seedSong(t, store, idx)

	for _, path := range []string{"/api/albums/sp-album/songs", "/api/artists/sp-artist/songs"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var body struct {
			Songs []data.Song `json:"songs"`
		}
		decode(t, resp, &body)
		require.Len(t, body.Songs, 1, path)
		assert.Equal(t, "sp-song", body.Songs[0].ID, path)
	}

	resp, err := http.Get(srv.URL + "/api/albums/nope/songs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUserLifecycle(t *testing.T) {
	srv, store, idx := newTestServer(t, &fakeCrawler{})
	seedSong(t, store, idx)

	resp := postJSON(t, srv.URL+"/api/users", map[string]string{"username": "pk", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var user struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	decode(t, resp, &user)
	assert.Equal(t, "pk", user.Username)

	resp = postJSON(t, srv.URL+"/api/users/login", map[string]string{"username": "pk", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/users/login", map[string]string{"username": "pk", "password": "hunter2"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/api/users/%s/playlists", srv.URL, user.ID), map[string]string{"name": "favorites"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var playlist data.Playlist
	decode(t, resp, &playlist)
	assert.Equal(t, "favorites", playlist.Name)

	resp = postJSON(t, fmt.Sprintf("%s/api/playlists/%s/songs/sp-song", srv.URL, playlist.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	getResp, err := http.Get(fmt.Sprintf("%s/api/playlists/%s", srv.URL, playlist.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	decode(t, getResp, &playlist)
	require.Len(t, playlist.Songs, 1)
	assert.Equal(t, "sp-song", playlist.Songs[0].ID)

	resp = postJSON(t, fmt.Sprintf("%s/api/users/%s/history", srv.URL, user.ID), map[string]string{"songId": "sp-song"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	histResp, err := http.Get(fmt.Sprintf("%s/api/users/%s/history?limit=5", srv.URL, user.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, histResp.StatusCode)
	var hist struct {
		History []data.LastListenedSong `json:"history"`
	}
	decode(t, histResp, &hist)
	require.Len(t, hist.History, 1)
	assert.Equal(t, "sp-song", hist.History[0].SongID)
}
