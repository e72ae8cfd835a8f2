// Package index is the document side of the catalog: one SongDocument per
// song, under the same id as the relational row, with the fielded, fuzzy, and
// wildcard queries the API exposes.
package index

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	blevemapping "github.com/blevesearch/bleve/v2/mapping"
	"github.com/pkleine/melodex/data"
)

var ErrNotFound = errors.New("not found")

// Index wraps a bleve index holding SongDocuments.
type Index struct {
	idx bleve.Index
}

// Open returns the song index at the given path, creating it if necessary.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, mapping())
	}
	if err != nil {
		return nil, fmt.Errorf("error opening index at '%s': %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// OpenMem returns a fresh in-memory song index.
func OpenMem() (*Index, error) {
	idx, err := bleve.NewMemOnly(mapping())
	if err != nil {
		return nil, fmt.Errorf("error opening in-memory index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func (ix *Index) Close() error {
	return ix.idx.Close()
}

func mapping() *blevemapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()

	genre := bleve.NewTextFieldMapping()
	genre.Analyzer = keyword.Name

	date := bleve.NewNumericFieldMapping()

	song := bleve.NewDocumentMapping()
	song.AddFieldMappingsAt("title", text)
	song.AddFieldMappingsAt("albumTitle", text)
	song.AddFieldMappingsAt("artistName", text)
	song.AddFieldMappingsAt("lyrics", text)
	song.AddFieldMappingsAt("genre", genre)
	song.AddFieldMappingsAt("releaseDate", date)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = song
	return m
}

// Upsert writes the document under its id, replacing any previous version.
func (ix *Index) Upsert(doc *data.SongDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("no document id")
	}
	if err := ix.idx.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("error indexing document '%s': %w", doc.ID, err)
	}
	return nil
}

// Delete removes the document under the given id. Deleting an id that is not
// indexed is not an error.
func (ix *Index) Delete(id string) error {
	if err := ix.idx.Delete(id); err != nil {
		return fmt.Errorf("error deleting document '%s': %w", id, err)
	}
	return nil
}

// Get returns the document stored under the given id.
func (ix *Index) Get(id string) (*data.SongDocument, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}

	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("error getting document '%s': %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, fmt.Errorf("document '%s': %w", id, ErrNotFound)
	}
	return docFromFields(res.Hits[0].ID, res.Hits[0].Fields), nil
}

// docFromFields rebuilds a SongDocument from the stored fields of a hit.
func docFromFields(id string, fields map[string]interface{}) *data.SongDocument {
	doc := &data.SongDocument{ID: id}
	if v, ok := fields["title"].(string); ok {
		doc.Title = v
	}
	if v, ok := fields["lyrics"].(string); ok {
		doc.Lyrics = v
	}
	if v, ok := fields["albumTitle"].(string); ok {
		doc.AlbumTitle = v
	}
	if v, ok := fields["artistName"].(string); ok {
		doc.ArtistName = v
	}
	if v, ok := fields["releaseDate"].(float64); ok {
		doc.ReleaseDate = int64(v)
	}
	switch genres := fields["genre"].(type) {
	case string:
		doc.Genre = []string{genres}
	case []interface{}:
		for _, g := range genres {
			if s, ok := g.(string); ok {
				doc.Genre = append(doc.Genre, s)
			}
		}
	}
	return doc
}
