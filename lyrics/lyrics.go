// Package lyrics fetches plain-text song lyrics from the lyrics.ovh API.
//
// Lyrics are decoration, not catalog data, so every failure mode here is
// soft: the caller gets an empty string and moves on.
package lyrics

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pkleine/melodex/request"
)

const defaultBaseURL = "https://api.lyrics.ovh/v1"

// timeout bounds a single lookup. lyrics.ovh regularly hangs for tens of
// seconds on misses, and a crawl should not stall behind that.
const timeout = 2 * time.Second

func New(logger *log.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  http.DefaultClient,
		logger:  logger,
	}
}

// NewWithBaseURL is for tests that point the client at a local server.
func NewWithBaseURL(logger *log.Logger, baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// Fetch returns the lyrics for the given song, or "" if they can't be
// found quickly. Fetch never returns an error.
func (c *Client) Fetch(ctx context.Context, artistName, title string) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp struct {
		Lyrics string `json:"lyrics"`
	}
	u := c.baseURL + "/" + url.PathEscape(artistName) + "/" + url.PathEscape(cleanTitle(title))
	if err := request.GetJSON(ctx, c.client, u, nil, nil, &resp); err != nil {
		c.logger.Debug("no lyrics", "artist", artistName, "title", title, "error", err)
		return ""
	}
	return resp.Lyrics
}

// cleanTitle strips the remix/version suffixes that spotify appends to
// track titles, since lyrics.ovh only knows the base title.
func cleanTitle(title string) string {
	if i := strings.IndexAny(title, "-("); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}
