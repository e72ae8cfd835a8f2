package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/pkleine/melodex/data"
)

// Field relevance weights: a title hit matters most, lyrics are noisy.
var fieldBoosts = map[string]float64{
	"title":      1.5,
	"albumTitle": 1.0,
	"artistName": 1.0,
	"lyrics":     0.1,
}

// Params describes one fielded search.
type Params struct {
	// Query text. A query containing '*' or '?' runs as a wildcard match,
	// anything else as a fuzzy match.
	Query string

	// Fields to match against: any of title, albumTitle, artistName,
	// lyrics. Empty means all four.
	Fields []string

	// Size caps the number of hits; 0 means 10.
	Size int

	// MinScore drops hits ranked below the threshold.
	MinScore float64

	// Genres, when set, restricts hits to documents carrying at least one
	// of the given genres.
	Genres []string

	// ReleaseFrom/ReleaseTo, when set, restrict hits to a release-date
	// range (unix seconds, inclusive).
	ReleaseFrom *int64
	ReleaseTo   *int64
}

// Search runs a fielded, boosted query and returns ranked documents.
func (ix *Index) Search(p Params) ([]data.SongDocument, error) {
	if p.Query == "" && len(p.Genres) == 0 && p.ReleaseFrom == nil && p.ReleaseTo == nil {
		return nil, fmt.Errorf("empty search")
	}

	fields := p.Fields
	if len(fields) == 0 {
		fields = []string{"title", "albumTitle", "artistName", "lyrics"}
	}
	for _, f := range fields {
		if _, ok := fieldBoosts[f]; !ok {
			return nil, fmt.Errorf("unknown search field '%s'", f)
		}
	}

	size := p.Size
	if size <= 0 {
		size = 10
	}

	q := bleve.NewBooleanQuery()
	if p.Query != "" {
		q.AddMust(fieldQuery(strings.ToLower(p.Query), fields))
	}
	if len(p.Genres) > 0 {
		q.AddMust(genreQuery(p.Genres))
	}
	if rq := rangeQuery(p.ReleaseFrom, p.ReleaseTo); rq != nil {
		q.AddMust(rq)
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}

	res, err := ix.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("error searching for '%s': %w", p.Query, err)
	}

	var docs []data.SongDocument
	for _, hit := range res.Hits {
		if hit.Score < p.MinScore {
			continue
		}
		docs = append(docs, *docFromFields(hit.ID, hit.Fields))
	}
	return docs, nil
}

// fieldQuery builds the scoring part: one boosted sub-query per field,
// any of which may match.
func fieldQuery(search string, fields []string) query.Query {
	wildcard := strings.ContainsAny(search, "*?")

	subs := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		boost := fieldBoosts[field]
		if wildcard {
			wq := bleve.NewWildcardQuery(search)
			wq.SetField(field)
			wq.SetBoost(boost)
			subs = append(subs, wq)
			continue
		}
		mq := bleve.NewMatchQuery(search)
		mq.SetField(field)
		mq.SetBoost(boost)
		mq.SetFuzziness(1)
		subs = append(subs, mq)
	}
	return bleve.NewDisjunctionQuery(subs...)
}

// genreQuery matches documents carrying any of the given genres. Genres are
// indexed case-folded, so the filter folds too.
func genreQuery(genres []string) query.Query {
	subs := make([]query.Query, 0, len(genres))
	for _, genre := range genres {
		tq := bleve.NewTermQuery(strings.ToLower(strings.TrimSpace(genre)))
		tq.SetField("genre")
		subs = append(subs, tq)
	}
	return bleve.NewDisjunctionQuery(subs...)
}

func rangeQuery(from, to *int64) query.Query {
	if from == nil && to == nil {
		return nil
	}
	var min, max *float64
	if from != nil {
		v := float64(*from)
		min = &v
	}
	if to != nil {
		v := float64(*to)
		max = &v
	}
	inclusive := true
	rq := bleve.NewNumericRangeInclusiveQuery(min, max, &inclusive, &inclusive)
	rq.SetField("releaseDate")
	return rq
}
