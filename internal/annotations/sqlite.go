package annotations

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/RehearsalDNA/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "rehearsaldna.sqlite3"
const errDBClientNil = "annotations db client is nil"

// Annotation is user-supplied metadata about one file, keyed by the folder
// it lives in and its filename.
type Annotation struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	Folder          string `gorm:"uniqueIndex:idx_annotation_file,priority:1;index:idx_annotation_folder" json:"folder"`
	Filename        string `gorm:"uniqueIndex:idx_annotation_file,priority:2" json:"filename"`
	ProvidedName    string `json:"provided_name"`
	IsReferenceSong bool   `json:"is_reference_song"`
	UpdatedAt       time.Time
}

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite allows a single writer; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Annotation{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) find(folder, filename string) (*Annotation, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var a Annotation
	err := c.DB.Where("folder = ? AND filename = ?", utils.CleanFolder(folder), filename).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying annotation: %w", err)
	}
	return &a, nil
}

// upsert writes the named columns of a for (folder, filename), creating the
// row when needed and leaving other columns untouched.
func (c *DBClient) upsert(a *Annotation, columns ...string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	a.Folder = utils.CleanFolder(a.Folder)
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "folder"}, {Name: "filename"}},
		DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("saving annotation: %w", err)
	}
	return nil
}

// ProvidedName returns the display name given to a file, or "" when none.
func (c *DBClient) ProvidedName(folder, filename string) (string, error) {
	a, err := c.find(folder, filename)
	if err != nil || a == nil {
		return "", err
	}
	return a.ProvidedName, nil
}

// SetProvidedName stores a display name; an empty name clears it.
func (c *DBClient) SetProvidedName(folder, filename, name string) error {
	return c.upsert(&Annotation{Folder: folder, Filename: filename, ProvidedName: name}, "provided_name")
}

func (c *DBClient) IsReferenceSong(folder, filename string) (bool, error) {
	a, err := c.find(folder, filename)
	if err != nil || a == nil {
		return false, err
	}
	return a.IsReferenceSong, nil
}

func (c *DBClient) SetReferenceSong(folder, filename string, on bool) error {
	return c.upsert(&Annotation{Folder: folder, Filename: filename, IsReferenceSong: on}, "is_reference_song")
}

// ListFolder returns every annotation recorded for folder, ordered by filename.
func (c *DBClient) ListFolder(folder string) ([]Annotation, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var out []Annotation
	if err := c.DB.Where("folder = ?", utils.CleanFolder(folder)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing annotations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}
