package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkleine/melodex/data"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InsertUser creates a user with a bcrypt-hashed password.
func (db *DB) InsertUser(username, password string) (*data.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password for '%s': %w", username, err)
	}
	user := &data.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("error inserting user '%s': %w", username, err)
	}
	return user, nil
}

// AuthenticateUser checks a username/password pair and returns the user.
func (db *DB) AuthenticateUser(username, password string) (*data.User, error) {
	var user data.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user '%s': %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting user '%s': %w", username, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("wrong password for user '%s'", username)
	}
	return &user, nil
}

func (db *DB) GetUser(id string) (*data.User, error) {
	var user data.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting user '%s': %w", id, err)
	}
	return &user, nil
}

func (db *DB) CreatePlaylist(userID, name, description string) (*data.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name is required")
	}
	if _, err := db.GetUser(userID); err != nil {
		return nil, err
	}
	playlist := &data.Playlist{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
	}
	if err := db.Create(playlist).Error; err != nil {
		return nil, fmt.Errorf("error inserting playlist '%s': %w", name, err)
	}
	return playlist, nil
}

func (db *DB) GetPlaylist(id string) (*data.Playlist, error) {
	var playlist data.Playlist
	if err := db.Preload("Songs").First(&playlist, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("playlist '%s': %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting playlist '%s': %w", id, err)
	}
	return &playlist, nil
}

// AddSongToPlaylist links an existing song into an existing playlist.
func (db *DB) AddSongToPlaylist(playlistID, songID string) error {
	playlist, err := db.GetPlaylist(playlistID)
	if err != nil {
		return err
	}
	song, err := db.GetSong(songID)
	if err != nil {
		return err
	}
	if err := db.Model(playlist).Association("Songs").Append(song); err != nil {
		return fmt.Errorf("error adding song '%s' to playlist '%s': %w", songID, playlistID, err)
	}
	return nil
}

// InsertLastListened appends one entry to a user's listening log.
func (db *DB) InsertLastListened(userID, songID string, at time.Time) error {
	if _, err := db.GetUser(userID); err != nil {
		return err
	}
	if _, err := db.GetSong(songID); err != nil {
		return err
	}
	entry := &data.LastListenedSong{
		ID:         uuid.NewString(),
		UserID:     userID,
		SongID:     songID,
		ListenedAt: at,
	}
	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("error inserting listen of '%s' for user '%s': %w", songID, userID, err)
	}
	return nil
}

// RecentlyListened returns the newest entries of a user's listening log.
func (db *DB) RecentlyListened(userID string, limit int) ([]data.LastListenedSong, error) {
	var entries []data.LastListenedSong
	if err := db.
		Where("user_id = ?", userID).
		Order("listened_at desc").
		Limit(limit).
		Find(&entries).
		Error; err != nil {
		return nil, fmt.Errorf("error listing history for user '%s': %w", userID, err)
	}
	return entries, nil
}
