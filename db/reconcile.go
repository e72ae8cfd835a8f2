package db

import (
	"errors"
	"fmt"

	"github.com/pkleine/melodex/data"
	"gorm.io/gorm"
)

// The reconciler implements find-or-create-or-replace for each entity kind.
//
// A placeholder candidate matches an existing row by name as well as by id: a
// row under any id that already carries the same name means the logical
// entity is present, and the candidate adds nothing.
//
// An authoritative candidate matches by id first. When there is no row under
// its id but a placeholder row carries the same name, the placeholder is
// upgraded: a replacement row under the authoritative id takes over the old
// row's children before the old row is deleted, so no dependent is orphaned.
//
// Every operation is one transaction and is idempotent: running it again with
// the same candidate finds the row from the first run and returns it
// unchanged.

// ReconcileArtist finds, creates, or replaces the artist row for candidate.
func (db *DB) ReconcileArtist(candidate *data.Artist) (*data.Artist, error) {
	if candidate.ID == "" {
		return nil, fmt.Errorf("no artist id")
	}
	defer db.lockEntity("artist", candidate.Name)()

	var out *data.Artist
	err := db.Transaction(func(tx *gorm.DB) error {
		if candidate.Provenance == data.Placeholder {
			existing, err := firstArtist(tx, "id = ? or name = ?", candidate.ID, candidate.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
			out = candidate
			return tx.Create(candidate).Error
		}

		existing, err := firstArtist(tx, "id = ?", candidate.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		var stale data.Artist
		err = tx.Preload("Albums").
			Where("name = ? and provenance = ?", candidate.Name, data.Placeholder).
			First(&stale).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = candidate
			return tx.Create(candidate).Error
		}
		if err != nil {
			return fmt.Errorf("error finding placeholder artist '%s': %w", candidate.Name, err)
		}

		replacement := &data.Artist{
			ID:         candidate.ID,
			Name:       candidate.Name,
			CoverURL:   pick(candidate.CoverURL, stale.CoverURL),
			Provenance: data.Authoritative,
		}
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("error inserting replacement artist '%s': %w", replacement.ID, err)
		}
		if err := tx.Model(&data.Album{}).
			Where("artist_id = ?", stale.ID).
			Update("artist_id", replacement.ID).
			Error; err != nil {
			return fmt.Errorf("error re-pointing albums of artist '%s': %w", stale.ID, err)
		}
		if err := tx.Delete(&data.Artist{}, "id = ?", stale.ID).Error; err != nil {
			return fmt.Errorf("error deleting stale artist '%s': %w", stale.ID, err)
		}
		replacement.Albums = stale.Albums
		out = replacement
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reconciling artist '%s': %w", candidate.Name, err)
	}
	return out, nil
}

// ReconcileAlbum finds, creates, or replaces the album row for candidate.
func (db *DB) ReconcileAlbum(candidate *data.Album) (*data.Album, error) {
	if candidate.ID == "" {
		return nil, fmt.Errorf("no album id")
	}
	defer db.lockEntity("album", candidate.Name)()

	var out *data.Album
	err := db.Transaction(func(tx *gorm.DB) error {
		if candidate.Provenance == data.Placeholder {
			existing, err := firstAlbum(tx, "id = ? or name = ?", candidate.ID, candidate.Name)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
			out = candidate
			return tx.Create(candidate).Error
		}

		existing, err := firstAlbum(tx, "id = ?", candidate.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		var stale data.Album
		err = tx.Preload("Songs").
			Where("name = ? and provenance = ?", candidate.Name, data.Placeholder).
			First(&stale).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			out = candidate
			return tx.Create(candidate).Error
		}
		if err != nil {
			return fmt.Errorf("error finding placeholder album '%s': %w", candidate.Name, err)
		}

		replacement := &data.Album{
			ID:         candidate.ID,
			ArtistID:   pick(candidate.ArtistID, stale.ArtistID),
			Name:       candidate.Name,
			CoverURL:   pick(candidate.CoverURL, stale.CoverURL),
			Provenance: data.Authoritative,
		}
		if err := tx.Create(replacement).Error; err != nil {
			return fmt.Errorf("error inserting replacement album '%s': %w", replacement.ID, err)
		}
		if err := tx.Model(&data.Song{}).
			Where("album_id = ?", stale.ID).
			Update("album_id", replacement.ID).
			Error; err != nil {
			return fmt.Errorf("error re-pointing songs of album '%s': %w", stale.ID, err)
		}
		if err := tx.Delete(&data.Album{}, "id = ?", stale.ID).Error; err != nil {
			return fmt.Errorf("error deleting stale album '%s': %w", stale.ID, err)
		}
		replacement.Songs = stale.Songs
		out = replacement
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reconciling album '%s': %w", candidate.Name, err)
	}
	return out, nil
}

// ReconcileSong finds, creates, or replaces the song row for candidate.
// Unlike artists and albums, a superseded placeholder song is removed
// outright and the candidate inserted fresh; its dependents (playlist links,
// listening history) are reattached through the index-replacement step by the
// caller. The second return value is the removed placeholder id, if any, so
// the caller can delete the stale index document.
func (db *DB) ReconcileSong(candidate *data.Song) (*data.Song, string, error) {
	if candidate.ID == "" {
		return nil, "", fmt.Errorf("no song id")
	}
	defer db.lockEntity("song", candidate.Title)()

	candidate.Embed = data.EmbedURL(candidate.ID, candidate.Provenance)

	var out *data.Song
	var oldID string
	err := db.Transaction(func(tx *gorm.DB) error {
		if candidate.Provenance == data.Placeholder {
			existing, err := firstSong(tx, "id = ? or title = ?", candidate.ID, candidate.Title)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
			out = candidate
			return tx.Create(candidate).Error
		}

		existing, err := firstSong(tx, "id = ?", candidate.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		stale, err := firstSong(tx, "title = ? and provenance = ?", candidate.Title, data.Placeholder)
		if err != nil {
			return err
		}
		if stale != nil {
			if err := tx.Delete(&data.Song{}, "id = ?", stale.ID).Error; err != nil {
				return fmt.Errorf("error deleting stale song '%s': %w", stale.ID, err)
			}
			oldID = stale.ID
		}
		out = candidate
		return tx.Create(candidate).Error
	})
	if err != nil {
		return nil, "", fmt.Errorf("error reconciling song '%s': %w", candidate.Title, err)
	}
	return out, oldID, nil
}

func firstArtist(tx *gorm.DB, query string, args ...any) (*data.Artist, error) {
	var artist data.Artist
	err := tx.Where(query, args...).First(&artist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding artist: %w", err)
	}
	return &artist, nil
}

func firstAlbum(tx *gorm.DB, query string, args ...any) (*data.Album, error) {
	var album data.Album
	err := tx.Where(query, args...).First(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding album: %w", err)
	}
	return &album, nil
}

func firstSong(tx *gorm.DB, query string, args ...any) (*data.Song, error) {
	var song data.Song
	err := tx.Where(query, args...).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding song: %w", err)
	}
	return &song, nil
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
