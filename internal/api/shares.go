package api

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sharedPost is the shared_posts.sqlite row backing POST /api/share and
// GET /api/share/:id, grounded on profilecache/sqlite.go's gorm+sqlite
// pattern (spec.md §6 names shared_posts.sqlite as a persistent file but
// leaves its schema unspecified).
type sharedPost struct {
	ID        string    `gorm:"column:id;primaryKey"`
	URI       string    `gorm:"column:uri"`
	Text      string    `gorm:"column:text"`
	Handle    string    `gorm:"column:handle"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// ShareStore persists permalinks to shared content items.
type ShareStore struct {
	db *gorm.DB
}

// OpenShareStore opens (creating if absent) the shared_posts.sqlite file.
func OpenShareStore(path string) (*ShareStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&sharedPost{}); err != nil {
		return nil, err
	}
	return &ShareStore{db: db}, nil
}

// Create mints a new permalink ID for (uri, text, handle).
func (s *ShareStore) Create(uri, text, handle string) (string, error) {
	row := sharedPost{
		ID:        uuid.NewString(),
		URI:       uri,
		Text:      text,
		Handle:    handle,
		CreatedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return "", err
	}
	return row.ID, nil
}

// Get looks up a permalink by ID.
func (s *ShareStore) Get(id string) (uri, text, handle string, createdAt time.Time, ok bool) {
	var row sharedPost
	if err := s.db.First(&row, "id = ?", id).Error; err != nil {
		return "", "", "", time.Time{}, false
	}
	return row.URI, row.Text, row.Handle, row.CreatedAt, true
}

func (s *ShareStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
