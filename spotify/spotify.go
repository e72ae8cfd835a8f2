// Package spotify is a client for the parts of the Spotify Web API that the
// crawler needs: finding an artist by name and walking their full catalog of
// albums and tracks.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/limiter"
	"github.com/pkleine/melodex/request"
)

const (
	defaultAPIURL  = "https://api.spotify.com/v1"
	defaultAuthURL = "https://accounts.spotify.com/api/token"
)

// New creates a Spotify client with the given credentials. The client
// self-throttles to stay under Spotify's (undocumented) request budget, and
// backs off when told to by a 429.
func New(logger *log.Logger, clientID, clientSecret string) *Client {
	return &Client{
		apiURL:       defaultAPIURL,
		authURL:      defaultAuthURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       http.DefaultClient,
		lim:          limiter.New(time.Second/10, 1),
		logger:       logger,
	}
}

// NewWithBaseURL is for tests that point the client at a local server.
func NewWithBaseURL(logger *log.Logger, apiURL, authURL string, client *http.Client) *Client {
	return &Client{
		apiURL:  apiURL,
		authURL: authURL,
		client:  client,
		lim:     limiter.New(time.Millisecond, 1),
		logger:  logger,
	}
}

type Client struct {
	apiURL  string
	authURL string

	clientID     string
	clientSecret string

	client *http.Client
	lim    *limiter.Limiter
	logger *log.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// CrawlAllSongsOfArtist resolves the given name to Spotify's best-match
// artist, then walks every album and every track of that artist. Each returned
// song is fully denormalized so the caller never has to come back for the
// album or artist rows.
//
// A name Spotify doesn't know yields an empty slice, not an error.
func (spo *Client) CrawlAllSongsOfArtist(ctx context.Context, artistName string) ([]data.CrawlSongData, error) {
	artist, err := spo.searchArtist(ctx, artistName)
	if err != nil {
		return nil, fmt.Errorf("error searching for artist '%s': %w", artistName, err)
	}
	if artist == nil {
		return nil, nil
	}

	albums, err := spo.fetchArtistAlbums(ctx, artist.ID)
	if err != nil {
		return nil, fmt.Errorf("error fetching albums of '%s': %w", artistName, err)
	}

	var songs []data.CrawlSongData
	for _, album := range albums {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}
		tracks, err := spo.fetchAlbumTracks(ctx, album.id)
		if err != nil {
			return nil, fmt.Errorf("error fetching tracks of album '%s': %w", album.name, err)
		}
		releaseDate, err := data.ParsePartialDate(album.releaseDate)
		if err != nil {
			spo.logger.Warn("unparseable release date", "album", album.name, "date", album.releaseDate)
			releaseDate = nil
		}
		for _, track := range tracks {
			songs = append(songs, data.CrawlSongData{
				ID:             track.id,
				Title:          track.name,
				AlbumID:        album.id,
				AlbumTitle:     album.name,
				AlbumCoverURL:  album.coverURL,
				ArtistID:       artist.ID,
				ArtistName:     artist.Name,
				ArtistCoverURL: artist.CoverURL,
				Genres:         artist.Genres,
				ReleaseDate:    releaseDate,
				Provenance:     data.Authoritative,
			})
		}
	}
	return songs, nil
}

// Artist is a search hit, with the fields the crawler cares about.
type Artist struct {
	ID       string
	Name     string
	CoverURL string
	Genres   []string
}

// searchArtist returns Spotify's top match for the given name, or nil if
// there isn't one.
func (spo *Client) searchArtist(ctx context.Context, name string) (*Artist, error) {
	query := url.Values{}
	query.Add("q", name)
	query.Add("type", "artist")
	query.Add("limit", "1")

	var results struct {
		Artists struct {
			Items []struct {
				ID     string
				Name   string
				Genres []string
				Images []struct {
					Height int64
					Width  int64
					URL    string
				}
			}
		}
	}
	if err := spo.get(ctx, "/search", query, &results); err != nil {
		return nil, err
	}
	if len(results.Artists.Items) == 0 {
		return nil, nil
	}

	item := results.Artists.Items[0]
	var coverURL string
	var maxSize int64
	for _, image := range item.Images {
		if image.Width > maxSize {
			coverURL = image.URL
			maxSize = image.Width
		}
	}
	return &Artist{
		ID:       item.ID,
		Name:     item.Name,
		CoverURL: coverURL,
		Genres:   item.Genres,
	}, nil
}

type album struct {
	id          string
	name        string
	coverURL    string
	releaseDate string
}

func (spo *Client) fetchArtistAlbums(ctx context.Context, artistID string) ([]album, error) {
	var albums []album
	for offset := 0; offset < 1000; offset += 50 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}

		query := url.Values{}
		query.Add("limit", "50")
		query.Add("offset", fmt.Sprintf("%d", offset))
		query.Add("include_groups", "album,single")

		var results struct {
			Items []struct {
				ID     string
				Name   string
				Images []struct {
					URL string
				}
				ReleaseDate string `json:"release_date"`
			}
		}
		if err := spo.get(ctx, fmt.Sprintf("/artists/%s/albums", artistID), query, &results); err != nil {
			return nil, err
		}

		for _, item := range results.Items {
			var coverURL string
			if len(item.Images) > 0 {
				coverURL = item.Images[0].URL
			}
			albums = append(albums, album{
				id:          item.ID,
				name:        item.Name,
				coverURL:    coverURL,
				releaseDate: item.ReleaseDate,
			})
		}

		if len(results.Items) < 50 {
			break
		}
	}
	return albums, nil
}

type track struct {
	id   string
	name string
}

func (spo *Client) fetchAlbumTracks(ctx context.Context, albumID string) ([]track, error) {
	var tracks []track
	for offset := 0; offset < 1000; offset += 50 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}

		query := url.Values{}
		query.Add("limit", "50")
		query.Add("offset", fmt.Sprintf("%d", offset))

		var results struct {
			Items []struct {
				ID   string
				Name string
			}
		}
		if err := spo.get(ctx, fmt.Sprintf("/albums/%s/tracks", albumID), query, &results); err != nil {
			return nil, err
		}

		for _, item := range results.Items {
			tracks = append(tracks, track{id: item.ID, name: item.Name})
		}

		if len(results.Items) < 50 {
			break
		}
	}
	return tracks, nil
}

// get does a rate-limited, authenticated GET against the API and decodes the
// response as JSON into out. On a 429, get honors the Retry-After header and
// tries again.
func (spo *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	for {
		if err := spo.lim.Wait(ctx); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}

		u, err := url.Parse(spo.apiURL + path)
		if err != nil {
			return fmt.Errorf("bad url '%s': %w", spo.apiURL+path, err)
		}
		u.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("request error: %w", err)
		}
		token, err := spo.token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", token)

		resp, err := spo.client.Do(req)
		if err != nil {
			return fmt.Errorf("error fetching '%s': %w", u.String(), err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			wait := spo.lim.Backoff(retryAfter)
			spo.logger.Warn("rate limited", "wait", wait.Truncate(time.Second))
			continue
		}

		if err := request.Error(resp); err != nil {
			resp.Body.Close()
			return fmt.Errorf("fetch error: %w", err)
		}

		dec := json.NewDecoder(resp.Body)
		decodeErr := dec.Decode(out)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("error decoding response from '%s': %w", u.String(), decodeErr)
		}
		return nil
	}
}

func (spo *Client) token(ctx context.Context) (string, error) {
	spo.mu.Lock()
	defer spo.mu.Unlock()
	if spo.accessToken == "" || spo.expiresAt.Before(time.Now().Add(time.Second)) {
		if err := spo.fetchToken(ctx); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Bearer %s", spo.accessToken), nil
}

func (spo *Client) fetchToken(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spo.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	up := fmt.Sprintf("%s:%s", spo.clientID, spo.clientSecret)
	credential := base64.StdEncoding.EncodeToString([]byte(up))
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", credential))
	req.Header.Set("Content-type", "application/x-www-form-urlencoded")

	requestAt := time.Now()
	resp, err := spo.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	defer resp.Body.Close()
	if err := request.Error(resp); err != nil {
		return fmt.Errorf("token fetch error: %w", err)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("token decode error: %w", err)
	}

	spo.accessToken = result.AccessToken
	spo.expiresAt = requestAt.Add(time.Duration(result.ExpiresIn) * time.Second)

	return nil
}
