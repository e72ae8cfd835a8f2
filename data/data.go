// Package data holds the entity and document types shared by the store, the
// search index, and the catalog crawlers.
package data

import "time"

// Provenance records which kind of catalog source an entity's identity came
// from. Reconciliation branches on this field, never on the shape of the id.
type Provenance string

const (
	// Authoritative entities carry an id from the primary catalog
	// (spotify). Their ids are never replaced.
	Authoritative Provenance = "authoritative"

	// Placeholder entities are known only through the secondary catalog
	// (musicbrainz). Their ids are synthesized and are superseded the
	// moment authoritative data for the same logical entity arrives.
	Placeholder Provenance = "placeholder"
)

// PlaceholderPrefix namespaces secondary-catalog ids so they can never
// collide with an authoritative id.
const PlaceholderPrefix = "mbid_"

// PlaceholderID builds a placeholder entity id from a secondary-catalog
// native id.
func PlaceholderID(nativeID string) string {
	return PlaceholderPrefix + nativeID
}

// Artists own albums. An artist row is created only by the reconciler during
// a crawl, and is replaced wholesale when a placeholder identity is upgraded.
type Artist struct {
	ID         string `gorm:"primaryKey"`
	Name       string `gorm:"index"`
	CoverURL   string
	Provenance Provenance

	Albums []Album `gorm:"foreignKey:ArtistID;constraint:OnDelete:CASCADE"`
}

// Albums own songs and point back at their artist by id only.
type Album struct {
	ID         string `gorm:"primaryKey"`
	ArtistID   string `gorm:"index"`
	Name       string `gorm:"index"`
	CoverURL   string
	Provenance Provenance

	Songs []Song `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE"`
}

// Songs carry almost no fields of their own: title and relations live here,
// everything searchable lives in the index document under the same id.
type Song struct {
	ID         string `gorm:"primaryKey"`
	Title      string `gorm:"index"`
	AlbumID    string `gorm:"index"`
	Embed      string
	Provenance Provenance
}

// EmbedURL derives a playback embed reference from a song id. Placeholder
// ids have no playable counterpart, so they never get one.
func EmbedURL(id string, provenance Provenance) string {
	if provenance == Placeholder {
		return ""
	}
	return "https://open.spotify.com/embed/track/" + id
}

// Users own playlists and a listening history.
type User struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	PasswordHash string

	Playlists    []Playlist         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	LastListened []LastListenedSong `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

type Playlist struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	Name        string
	Description string

	Songs []Song `gorm:"many2many:playlist_songs;constraint:OnDelete:CASCADE"`
}

// LastListenedSong is one entry in a user's append-only listening log.
type LastListenedSong struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index"`
	SongID     string `gorm:"index;constraint:OnDelete:CASCADE"`
	ListenedAt time.Time
}
