// Package server exposes the crawler, the relational store, and the search
// index over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/pkleine/melodex/crawl"
	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/db"
	"github.com/pkleine/melodex/index"
)

// A Crawler runs a full catalog crawl for one artist.
type Crawler interface {
	Crawl(ctx context.Context, artistName string, useSpotify, useMusicBrainz bool) ([]data.SongDocument, error)
}

func New(logger *log.Logger, store *db.DB, idx *index.Index, crawler Crawler) *Server {
	return &Server{logger: logger, db: store, idx: idx, crawler: crawler}
}

type Server struct {
	logger  *log.Logger
	db      *db.DB
	idx     *index.Index
	crawler Crawler
}

// Run serves the API on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := http.Server{Addr: addr, Handler: s.Handler()}

	errs := make(chan error)
	go func() { errs <- srv.ListenAndServe() }()

	s.logger.Info("serving", "addr", addr)
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errs
	}
}

// Handler builds the route table. Exposed so tests can drive the API without
// a listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/crawl", s.handleCrawl).Methods("POST")

	api.HandleFunc("/songs/{id}", s.handleGetSong).Methods("GET")
	api.HandleFunc("/search", s.handleSearch).Methods("GET")
	api.HandleFunc("/albums", s.handleSearchAlbums).Methods("GET")
	api.HandleFunc("/artists", s.handleSearchArtists).Methods("GET")
	api.HandleFunc("/albums/{id}/songs", s.handleAlbumSongs).Methods("GET")
	api.HandleFunc("/artists/{id}/songs", s.handleArtistSongs).Methods("GET")

	api.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/users/{id}/playlists", s.handleCreatePlaylist).Methods("POST")
	api.HandleFunc("/playlists/{id}", s.handleGetPlaylist).Methods("GET")
	api.HandleFunc("/playlists/{id}/songs/{songID}", s.handleAddPlaylistSong).Methods("POST")
	api.HandleFunc("/users/{id}/history", s.handleAddHistory).Methods("POST")
	api.HandleFunc("/users/{id}/history", s.handleGetHistory).Methods("GET")

	return r
}

func (s *Server) handleCrawl(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Artist      string `json:"artist"`
		Spotify     bool   `json:"spotify"`
		MusicBrainz bool   `json:"musicbrainz"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Artist == "" {
		s.clientError(w, http.StatusBadRequest, "artist is required")
		return
	}

	docs, err := s.crawler.Crawl(req.Context(), body.Artist, body.Spotify, body.MusicBrainz)
	switch {
	case errors.Is(err, crawl.ErrNoSourceEnabled):
		s.clientError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, crawl.ErrNothingFound):
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no songs found for artist '%s'", body.Artist))
		return
	case err != nil:
		s.serverError(w, err)
		return
	}

	s.respond(w, http.StatusOK, struct {
		Artist string              `json:"artist"`
		Songs  []data.SongDocument `json:"songs"`
	}{body.Artist, docs})
}

func (s *Server) handleGetSong(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	song, err := s.db.GetSong(id)
	if errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no song with id '%s'", id))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	// the index document carries the denormalized fields the relational
	// row doesn't
	doc, err := s.idx.Get(id)
	if errors.Is(err, index.ErrNotFound) {
		doc = &data.SongDocument{ID: id, Title: song.Title}
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	s.respond(w, http.StatusOK, struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		AlbumID     string   `json:"albumId"`
		AlbumTitle  string   `json:"albumTitle"`
		ArtistName  string   `json:"artistName"`
		Embed       string   `json:"embed,omitempty"`
		Lyrics      string   `json:"lyrics,omitempty"`
		Genre       []string `json:"genre,omitempty"`
		ReleaseDate int64    `json:"releaseDate,omitempty"`
	}{
		ID:          song.ID,
		Title:       song.Title,
		AlbumID:     song.AlbumID,
		AlbumTitle:  doc.AlbumTitle,
		ArtistName:  doc.ArtistName,
		Embed:       song.Embed,
		Lyrics:      doc.Lyrics,
		Genre:       doc.Genre,
		ReleaseDate: doc.ReleaseDate,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, req *http.Request) {
	p, err := searchParams(req)
	if err != nil {
		s.clientError(w, http.StatusBadRequest, err.Error())
		return
	}

	docs, err := s.idx.Search(*p)
	if err != nil {
		s.clientError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, http.StatusOK, struct {
		Songs []data.SongDocument `json:"songs"`
	}{docs})
}

func searchParams(req *http.Request) (*index.Params, error) {
	q := req.URL.Query()
	p := index.Params{Query: q.Get("query")}
	if p.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if fields := q.Get("fields"); fields != "" {
		p.Fields = strings.Split(fields, ",")
	}
	if size := q.Get("size"); size != "" {
		n, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid size '%s'", size)
		}
		p.Size = n
	}
	if minScore := q.Get("minScore"); minScore != "" {
		f, err := strconv.ParseFloat(minScore, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid minScore '%s'", minScore)
		}
		p.MinScore = f
	}
	if genres := q.Get("genres"); genres != "" {
		p.Genres = strings.Split(genres, ",")
	}
	var err error
	if p.ReleaseFrom, err = unixParam(q.Get("from")); err != nil {
		return nil, err
	}
	if p.ReleaseTo, err = unixParam(q.Get("to")); err != nil {
		return nil, err
	}
	return &p, nil
}

func unixParam(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp '%s'", s)
	}
	return &n, nil
}

// handleSearchAlbums searches song documents by album title and reduces the
// hits to one entry per album.
func (s *Server) handleSearchAlbums(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("query")
	if query == "" {
		s.clientError(w, http.StatusBadRequest, "query is required")
		return
	}

	docs, err := s.idx.Search(index.Params{Query: query, Fields: []string{"albumTitle"}, Size: 50})
	if err != nil {
		s.serverError(w, err)
		return
	}

	type albumResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		ArtistName  string `json:"artistName"`
		CoverURL    string `json:"coverUrl,omitempty"`
		ReleaseDate int64  `json:"releaseDate,omitempty"`
	}
	var albums []albumResponse
	seen := map[string]bool{}
	for _, doc := range docs {
		if seen[doc.AlbumTitle] {
			continue
		}
		album, err := s.db.GetAlbumBySong(doc.ID)
		if errors.Is(err, db.ErrNotFound) {
			continue
		} else if err != nil {
			s.serverError(w, err)
			return
		}
		seen[doc.AlbumTitle] = true
		albums = append(albums, albumResponse{
			ID:          album.ID,
			Name:        album.Name,
			ArtistName:  doc.ArtistName,
			CoverURL:    album.CoverURL,
			ReleaseDate: doc.ReleaseDate,
		})
	}
	s.respond(w, http.StatusOK, struct {
		Albums []albumResponse `json:"albums"`
	}{albums})
}

// handleSearchArtists mirrors handleSearchAlbums for artists.
func (s *Server) handleSearchArtists(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("query")
	if query == "" {
		s.clientError(w, http.StatusBadRequest, "query is required")
		return
	}

	docs, err := s.idx.Search(index.Params{Query: query, Fields: []string{"artistName"}, Size: 50})
	if err != nil {
		s.serverError(w, err)
		return
	}

	type artistResponse struct {
		ID       string   `json:"id"`
		Name     string   `json:"name"`
		CoverURL string   `json:"coverUrl,omitempty"`
		Genres   []string `json:"genres,omitempty"`
	}
	var artists []artistResponse
	seen := map[string]bool{}
	for _, doc := range docs {
		if seen[doc.ArtistName] {
			continue
		}
		artist, err := s.db.GetArtistBySong(doc.ID)
		if errors.Is(err, db.ErrNotFound) {
			continue
		} else if err != nil {
			s.serverError(w, err)
			return
		}
		seen[doc.ArtistName] = true
		artists = append(artists, artistResponse{
			ID:       artist.ID,
			Name:     artist.Name,
			CoverURL: artist.CoverURL,
			Genres:   doc.Genre,
		})
	}
	s.respond(w, http.StatusOK, struct {
		Artists []artistResponse `json:"artists"`
	}{artists})
}

func (s *Server) handleAlbumSongs(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if _, err := s.db.GetAlbum(id); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no album with id '%s'", id))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	songs, err := s.db.ListSongsOfAlbum(id)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.respond(w, http.StatusOK, struct {
		Songs []data.Song `json:"songs"`
	}{songs})
}

func (s *Server) handleArtistSongs(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if _, err := s.db.GetArtist(id); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no artist with id '%s'", id))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	albums, err := s.db.ListAlbumsOfArtist(id)
	if err != nil {
		s.serverError(w, err)
		return
	}
	var songs []data.Song
	for _, album := range albums {
		albumSongs, err := s.db.ListSongsOfAlbum(album.ID)
		if err != nil {
			s.serverError(w, err)
			return
		}
		songs = append(songs, albumSongs...)
	}
	s.respond(w, http.StatusOK, struct {
		Songs []data.Song `json:"songs"`
	}{songs})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		s.clientError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.db.InsertUser(body.Username, body.Password)
	if err != nil {
		s.clientError(w, http.StatusBadRequest, fmt.Sprintf("could not create user '%s'", body.Username))
		return
	}
	s.respond(w, http.StatusCreated, struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}{user.ID, user.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.db.AuthenticateUser(body.Username, body.Password)
	if err != nil {
		s.clientError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	s.respond(w, http.StatusOK, struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}{user.ID, user.Username})
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["id"]
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" {
		s.clientError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := s.db.GetUser(userID); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no user with id '%s'", userID))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	playlist, err := s.db.CreatePlaylist(userID, body.Name, body.Description)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, playlist)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	playlist, err := s.db.GetPlaylist(id)
	if errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no playlist with id '%s'", id))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}
	s.respond(w, http.StatusOK, playlist)
}

func (s *Server) handleAddPlaylistSong(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	if _, err := s.db.GetSong(vars["songID"]); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no song with id '%s'", vars["songID"]))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	if err := s.db.AddSongToPlaylist(vars["id"], vars["songID"]); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no playlist with id '%s'", vars["id"]))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddHistory(w http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["id"]
	var body struct {
		SongID string `json:"songId"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.db.GetSong(body.SongID); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no song with id '%s'", body.SongID))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}

	if err := s.db.InsertLastListened(userID, body.SongID, time.Now()); errors.Is(err, db.ErrNotFound) {
		s.clientError(w, http.StatusNotFound, fmt.Sprintf("no user with id '%s'", userID))
		return
	} else if err != nil {
		s.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["id"]
	limit := 10
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.clientError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit '%s'", v))
			return
		}
		limit = n
	}

	history, err := s.db.RecentlyListened(userID, limit)
	if err != nil {
		s.serverError(w, err)
		return
	}
	s.respond(w, http.StatusOK, struct {
		History []data.LastListenedSong `json:"history"`
	}{history})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, struct {
		Error string `json:"error"`
	}{msg})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("internal error", "error", err)
	s.clientError(w, http.StatusInternalServerError, "internal error")
}
