// Package db is the relational store: users, playlists, listening history,
// and the canonical artist/album/song rows maintained by the reconciler.
package db

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkleine/melodex/data"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps a migrated gorm connection.
type DB struct {
	*gorm.DB

	// one mutex per logical entity name, so two concurrent crawls cannot
	// both take the "not found, insert new" branch for the same entity
	locks sync.Map
}

// Open returns a connection to a migrated sqlite3 database file on disk,
// creating the file and running migrations if necessary.
func Open(filename string) (*DB, error) {
	return open(filename)
}

// OpenMem returns a connection to a fresh private in-memory database.
func OpenMem() (*DB, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func open(dsn string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening db at '%s': %w", dsn, err)
	}

	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	if err := gdb.AutoMigrate(
		&data.Artist{},
		&data.Album{},
		&data.Song{},
		&data.User{},
		&data.Playlist{},
		&data.LastListenedSong{},
	); err != nil {
		return nil, fmt.Errorf("error migrating db at '%s': %w", dsn, err)
	}

	return &DB{DB: gdb}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	pool, err := db.DB.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// lockEntity serializes reconciliation per entity kind and name. The caller
// must invoke the returned func to release.
func (db *DB) lockEntity(kind, name string) func() {
	m, _ := db.locks.LoadOrStore(kind+"\x00"+name, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
