package db

import (
	"errors"
	"fmt"

	"github.com/pkleine/melodex/data"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

func (db *DB) GetArtist(id string) (*data.Artist, error) {
	var artist data.Artist
	if err := db.Preload("Albums").First(&artist, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("artist '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting artist '%s': %w", id, err)
	}
	return &artist, nil
}

func (db *DB) GetAlbum(id string) (*data.Album, error) {
	var album data.Album
	if err := db.Preload("Songs").First(&album, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("album '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting album '%s': %w", id, err)
	}
	return &album, nil
}

func (db *DB) GetSong(id string) (*data.Song, error) {
	var song data.Song
	if err := db.First(&song, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("song '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting song '%s': %w", id, err)
	}
	return &song, nil
}

// GetAlbumBySong resolves the album owning the given song id.
func (db *DB) GetAlbumBySong(songID string) (*data.Album, error) {
	song, err := db.GetSong(songID)
	if err != nil {
		return nil, err
	}
	return db.GetAlbum(song.AlbumID)
}

// GetArtistBySong resolves the artist owning the given song id.
func (db *DB) GetArtistBySong(songID string) (*data.Artist, error) {
	album, err := db.GetAlbumBySong(songID)
	if err != nil {
		return nil, err
	}
	return db.GetArtist(album.ArtistID)
}

func (db *DB) ListArtists() ([]data.Artist, error) {
	var artists []data.Artist
	if err := db.Order("name").Find(&artists).Error; err != nil {
		return nil, fmt.Errorf("error listing artists: %w", err)
	}
	return artists, nil
}

func (db *DB) ListAlbumsOfArtist(artistID string) ([]data.Album, error) {
	var albums []data.Album
	if err := db.Where("artist_id = ?", artistID).Order("name").Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("error listing albums of artist '%s': %w", artistID, err)
	}
	return albums, nil
}

func (db *DB) ListSongsOfAlbum(albumID string) ([]data.Song, error) {
	var songs []data.Song
	if err := db.Where("album_id = ?", albumID).Order("title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("error listing songs of album '%s': %w", albumID, err)
	}
	return songs, nil
}
