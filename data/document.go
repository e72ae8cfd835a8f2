package data

// SongDocument is the canonical search-index document for one song. Its ID is
// the same value as the relational Song.ID; the two stores are joined on it.
type SongDocument struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Lyrics     string   `json:"lyrics"`
	AlbumTitle string   `json:"albumTitle"`
	ArtistName string   `json:"artistName"`

	// Unix seconds, so the index can run range queries over it. Zero means
	// no source supplied a release date.
	ReleaseDate int64 `json:"releaseDate"`

	Genre []string `json:"genre"`
}

// CrawlSongData is the normalized per-song record either catalog provider
// produces. Fields a provider cannot supply are left empty.
type CrawlSongData struct {
	ID    string
	Title string

	AlbumID       string
	AlbumTitle    string
	AlbumCoverURL string

	ArtistID       string
	ArtistName     string
	ArtistCoverURL string

	Genres      []string
	ReleaseDate *PartialDate
	Provenance  Provenance
}
