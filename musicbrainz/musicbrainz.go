// Package musicbrainz is a client for the MusicBrainz JSON web service. It
// crawls an artist's works and recordings and produces placeholder song data
// that a later Spotify crawl can upgrade.
//
// MusicBrainz allows one request per second per client, so a full artist
// crawl is slow. Responses are cached on disk to make re-crawls cheap.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/limiter"
	"github.com/pkleine/melodex/readthrough"
	"github.com/pkleine/melodex/request"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// userAgent identifies us to MusicBrainz, which bans anonymous clients.
const userAgent = "melodex/0.1 (https://github.com/pkleine/melodex)"

// New creates a MusicBrainz client. cache may be nil, in which case every
// request goes to the network.
func New(logger *log.Logger, cache *readthrough.Cache) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  http.DefaultClient,
		lim:     limiter.New(time.Second, 1),
		logger:  logger,
		cache:   cache,
	}
}

// NewWithBaseURL is for tests that point the client at a local server.
func NewWithBaseURL(logger *log.Logger, baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
		lim:     limiter.New(time.Millisecond, 1),
		logger:  logger,
	}
}

type Client struct {
	baseURL string
	client  *http.Client
	lim     *limiter.Limiter
	logger  *log.Logger
	cache   *readthrough.Cache
}

// CrawlAllSongsOfArtist finds the artist by name and walks their works,
// pairing each work with its earliest recording to date it and to name the
// album it first appeared on. Works without a dateable recording are dropped,
// as are parenthesized alternate titles like "(untitled)".
//
// Every returned song carries placeholder ids, since MusicBrainz knows
// nothing about Spotify's catalog.
func (mb *Client) CrawlAllSongsOfArtist(ctx context.Context, artistName string) ([]data.CrawlSongData, error) {
	artist, err := mb.searchArtist(ctx, artistName)
	if err != nil {
		return nil, fmt.Errorf("error searching for artist '%s': %w", artistName, err)
	}
	if artist == nil {
		return nil, nil
	}

	works, err := mb.browseWorks(ctx, artist.ID)
	if err != nil {
		return nil, fmt.Errorf("error browsing works of '%s': %w", artistName, err)
	}
	recordingDates, err := mb.browseRecordingDates(ctx, artist.ID)
	if err != nil {
		return nil, fmt.Errorf("error browsing recordings of '%s': %w", artistName, err)
	}

	var songs []data.CrawlSongData
	for _, w := range works {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}
		if strings.Contains(w.Title, "(") && strings.Contains(w.Title, ")") {
			continue
		}

		releaseDate, recordingID := firstReleaseOf(w, recordingDates)
		if recordingID == "" {
			continue
		}

		albumTitle, err := mb.albumTitleOfRecording(ctx, recordingID, releaseDate)
		if err != nil {
			mb.logger.Debug("no album title", "work", w.Title, "error", err)
			continue
		}
		if albumTitle == "" {
			continue
		}

		var genres []string
		for _, g := range w.Genres {
			if g.Name != "" {
				genres = append(genres, g.Name)
			}
		}

		songs = append(songs, data.CrawlSongData{
			ID:          data.PlaceholderID(w.ID),
			Title:       w.Title,
			AlbumID:     data.PlaceholderID(recordingID),
			AlbumTitle:  albumTitle,
			ArtistID:    data.PlaceholderID(artist.ID),
			ArtistName:  artist.Name,
			Genres:      genres,
			ReleaseDate: releaseDate,
			Provenance:  data.Placeholder,
		})
	}
	return songs, nil
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (mb *Client) searchArtist(ctx context.Context, name string) (*artist, error) {
	query := url.Values{}
	query.Add("query", name)
	query.Add("limit", "1")

	var results struct {
		Artists []artist `json:"artists"`
	}
	if err := mb.get(ctx, "/artist", query, &results); err != nil {
		return nil, err
	}
	if len(results.Artists) == 0 {
		return nil, nil
	}
	return &results.Artists[0], nil
}

type work struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Relations []struct {
		Recording *struct {
			ID string `json:"id"`
		} `json:"recording"`
	} `json:"relations"`
}

func (mb *Client) browseWorks(ctx context.Context, artistID string) ([]work, error) {
	var works []work
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}

		query := url.Values{}
		query.Add("artist", artistID)
		query.Add("inc", "recording-rels genres")
		query.Add("limit", "100")
		query.Add("offset", fmt.Sprintf("%d", offset))

		var results struct {
			Works []work `json:"works"`
		}
		if err := mb.get(ctx, "/work", query, &results); err != nil {
			return nil, err
		}
		if len(results.Works) == 0 {
			break
		}
		works = append(works, results.Works...)
		offset += len(results.Works)
	}
	return works, nil
}

// browseRecordingDates returns the first-release date of every recording of
// the artist, keyed by recording mbid. Works relate to recordings, but the
// web service cannot join a work to its recordings' dates in one call, so we
// bulk-load the dates up front instead of looking them up per work.
func (mb *Client) browseRecordingDates(ctx context.Context, artistID string) (map[string]*data.PartialDate, error) {
	dates := map[string]*data.PartialDate{}
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}

		query := url.Values{}
		query.Add("artist", artistID)
		query.Add("limit", "100")
		query.Add("offset", fmt.Sprintf("%d", offset))

		var results struct {
			Recordings []struct {
				ID               string `json:"id"`
				FirstReleaseDate string `json:"first-release-date"`
			} `json:"recordings"`
		}
		if err := mb.get(ctx, "/recording", query, &results); err != nil {
			return nil, err
		}
		if len(results.Recordings) == 0 {
			break
		}
		for _, rec := range results.Recordings {
			if rec.FirstReleaseDate == "" {
				continue
			}
			date, err := data.ParsePartialDate(rec.FirstReleaseDate)
			if err != nil {
				continue
			}
			dates[rec.ID] = date
		}
		offset += len(results.Recordings)
	}
	return dates, nil
}

// firstReleaseOf picks, among the recordings related to the work, the one
// with the earliest known release date.
func firstReleaseOf(w work, recordingDates map[string]*data.PartialDate) (*data.PartialDate, string) {
	var firstDate *data.PartialDate
	var firstRecording string
	for _, rel := range w.Relations {
		if rel.Recording == nil {
			continue
		}
		date, ok := recordingDates[rel.Recording.ID]
		if !ok {
			continue
		}
		if firstDate != nil && !date.Before(*firstDate) {
			continue
		}
		firstDate = date
		firstRecording = rel.Recording.ID
	}
	return firstDate, firstRecording
}

// albumTitleOfRecording looks up the recording and returns the title of the
// release matching its first-release date.
func (mb *Client) albumTitleOfRecording(ctx context.Context, recordingID string, releaseDate *data.PartialDate) (string, error) {
	query := url.Values{}
	query.Add("inc", "releases")

	var result struct {
		FirstReleaseDate string `json:"first-release-date"`
		Releases         []struct {
			Title string `json:"title"`
			Date  string `json:"date"`
		} `json:"releases"`
	}
	if err := mb.get(ctx, "/recording/"+recordingID, query, &result); err != nil {
		return "", err
	}

	for _, release := range result.Releases {
		if release.Date == result.FirstReleaseDate {
			return release.Title, nil
		}
	}
	return "", nil
}

// get does a rate-limited GET against the web service and decodes the
// response as JSON into out, reading through the cache when one is
// configured. On a 503, get honors the Retry-After header and tries again.
func (mb *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(mb.baseURL + path)
	if err != nil {
		return fmt.Errorf("bad url '%s': %w", mb.baseURL+path, err)
	}
	query.Add("fmt", "json")
	u.RawQuery = query.Encode()

	if mb.cache != nil {
		if bs, ok := mb.cache.Get(u.String()); ok {
			if err := json.Unmarshal(bs, out); err != nil {
				return fmt.Errorf("error decoding cached response for '%s': %w", u.String(), err)
			}
			return nil
		}
	}

	for {
		if err := mb.lim.Wait(ctx); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("request error: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := mb.client.Do(req)
		if err != nil {
			return fmt.Errorf("error fetching '%s': %w", u.String(), err)
		}

		if resp.StatusCode == http.StatusServiceUnavailable {
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			wait := mb.lim.Backoff(retryAfter)
			mb.logger.Warn("rate limited", "wait", wait.Truncate(time.Second))
			continue
		}

		if err := request.Error(resp); err != nil {
			resp.Body.Close()
			return fmt.Errorf("fetch error: %w", err)
		}

		bs, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("error reading response from '%s': %w", u.String(), err)
		}
		if err := json.Unmarshal(bs, out); err != nil {
			return fmt.Errorf("error decoding response from '%s': %w", u.String(), err)
		}

		if mb.cache != nil {
			if err := mb.cache.Set(u.String(), bs); err != nil {
				mb.logger.Warn("cache write failed", "error", err)
			}
		}
		return nil
	}
}
