// Package request holds small HTTP helpers shared by the catalog clients.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// GetJSON does an HTTP GET on the given URL with the given headers, then
// decodes the response body as JSON into out.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, query url.Values, headers map[string]string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("bad url '%s': %w", rawURL, err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching '%s': %w", u.String(), err)
	}
	defer resp.Body.Close()

	if err := Error(resp); err != nil {
		return fmt.Errorf("unexpected status from '%s': %w", u.String(), err)
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("error decoding response from '%s': %w", u.String(), err)
	}
	return nil
}

// Error checks the given http response for an error code, and, if one is
// present, reads the body and returns a friendly error.
func Error(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bs, err := httputil.DumpResponse(resp, true)
		if err != nil {
			return fmt.Errorf("http status code %d; error decoding body: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("http status code %d:\n%s", resp.StatusCode, string(bs))
	}
	return nil
}
