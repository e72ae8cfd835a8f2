package index_test

import (
	"testing"

	"github.com/pkleine/melodex/data"
	"github.com/pkleine/melodex/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func seed(t *testing.T, ix *index.Index, docs ...data.SongDocument) {
	t.Helper()
	for i := range docs {
		require.NoError(t, ix.Upsert(&docs[i]))
	}
}

func TestUpsertGetDelete(t *testing.T) {
	ix := openTestIndex(t)

	doc := data.SongDocument{
		ID:          "s1",
		Title:       "lose yourself",
		Lyrics:      "his palms are sweaty",
		AlbumTitle:  "8 mile",
		ArtistName:  "eminem",
		ReleaseDate: 1035763200,
		Genre:       []string{"rap", "hip hop"},
	}
	seed(t, ix, doc)

	got, err := ix.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, &doc, got)

	// upsert replaces, it does not duplicate
	doc.Lyrics = "knees weak"
	require.NoError(t, ix.Upsert(&doc))
	got, err = ix.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "knees weak", got.Lyrics)

	require.NoError(t, ix.Delete("s1"))
	_, err = ix.Get("s1")
	assert.ErrorIs(t, err, index.ErrNotFound)
}

func TestSearchBoostsTitleOverLyrics(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix,
		data.SongDocument{ID: "title-hit", Title: "thunder road", ArtistName: "springsteen"},
		data.SongDocument{ID: "lyrics-hit", Title: "backstreets", ArtistName: "springsteen", Lyrics: "thunder road again"},
	)

	docs, err := ix.Search(index.Params{Query: "thunder"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "title-hit", docs[0].ID)
}

func TestSearchWildcard(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix,
		data.SongDocument{ID: "s1", Title: "thunderstruck"},
		data.SongDocument{ID: "s2", Title: "highway to hell"},
	)

	docs, err := ix.Search(index.Params{Query: "thunder*", Fields: []string{"title"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].ID)
}

func TestSearchFuzzyMatchesTypo(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix, data.SongDocument{ID: "s1", Title: "thunder"})

	docs, err := ix.Search(index.Params{Query: "thundr", Fields: []string{"title"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].ID)
}

func TestSearchMinScoreFiltersWeakHits(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix, data.SongDocument{ID: "s1", Title: "thunder"})

	docs, err := ix.Search(index.Params{Query: "thunder", MinScore: 1000})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSearchGenreFilter(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix,
		data.SongDocument{ID: "rock-song", Title: "thunder", Genre: []string{"rock"}},
		data.SongDocument{ID: "pop-song", Title: "thunder", Genre: []string{"pop"}},
	)

	docs, err := ix.Search(index.Params{Query: "thunder", Genres: []string{"rock"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "rock-song", docs[0].ID)
}

func TestSearchReleaseDateRange(t *testing.T) {
	ix := openTestIndex(t)
	seed(t, ix,
		data.SongDocument{ID: "old", Title: "thunder", ReleaseDate: 100},
		data.SongDocument{ID: "new", Title: "thunder", ReleaseDate: 2000},
	)

	from, to := int64(0), int64(1000)
	docs, err := ix.Search(index.Params{Query: "thunder", ReleaseFrom: &from, ReleaseTo: &to})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "old", docs[0].ID)
}

func TestSearchRejectsUnknownField(t *testing.T) {
	ix := openTestIndex(t)
	_, err := ix.Search(index.Params{Query: "x", Fields: []string{"genre"}})
	assert.Error(t, err)
}
