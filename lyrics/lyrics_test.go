package lyrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestFetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"lyrics": "load up on guns"}`))
	}))
	defer srv.Close()

	c := NewWithBaseURL(log.New(io.Discard), srv.URL, srv.Client())
	got := c.Fetch(context.Background(), "Nirvana", "Smells Like Teen Spirit - Remastered 2021")
	assert.Equal(t, "load up on guns", got)
	assert.Equal(t, "/Nirvana/Smells%20Like%20Teen%20Spirit", gotPath)
}

func TestFetchMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "No lyrics found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewWithBaseURL(log.New(io.Discard), srv.URL, srv.Client())
	assert.Equal(t, "", c.Fetch(context.Background(), "Nirvana", "Nonexistent"))
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer srv.Close()

	c := NewWithBaseURL(log.New(io.Discard), srv.URL, srv.Client())

	start := time.Now()
	got := c.Fetch(context.Background(), "Nirvana", "Polly")
	assert.Equal(t, "", got)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Lithium", cleanTitle("Lithium - Remastered"))
	assert.Equal(t, "Lithium", cleanTitle("Lithium (Live)"))
	assert.Equal(t, "Lithium", cleanTitle("Lithium"))
}
