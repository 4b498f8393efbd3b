package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Database wraps the gorm connection pool
type Database struct {
	db *gorm.DB
}

// NewDatabase opens the sqlite database at dsn and migrates the schema
func NewDatabase(dsn string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if strings.Contains(dsn, "mode=memory") {
		// every connection to a memory database is its own database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(8)
		sqlDB.SetMaxIdleConns(4)
	}

	if err := db.AutoMigrate(&WatchedItem{}, &ReleaseRecord{}, &NotificationEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

// Close closes the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping runs a trivial query against the database
func (d *Database) Ping(ctx context.Context) error {
	var one int
	return d.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// Watched item operations

// CreateItem inserts a new watched item
func (d *Database) CreateItem(ctx context.Context, item *WatchedItem) error {
	if err := d.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create watched item %s: %w", item.IMDBId, err)
	}
	return nil
}

// GetItemByIMDB retrieves a watched item by its imdb id
func (d *Database) GetItemByIMDB(ctx context.Context, imdbID string) (*WatchedItem, error) {
	var item WatchedItem
	err := d.db.WithContext(ctx).Where("imdb_id = ?", imdbID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemEnabled toggles the enabled flag of a watched item
func (d *Database) SetItemEnabled(ctx context.Context, imdbID string, enabled bool) error {
	res := d.db.WithContext(ctx).Model(&WatchedItem{}).
		Where("imdb_id = ?", imdbID).
		Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListItems retrieves all watched items ordered by id
func (d *Database) ListItems(ctx context.Context) ([]*WatchedItem, error) {
	var items []*WatchedItem
	err := d.db.WithContext(ctx).Order("id").Find(&items).Error
	return items, err
}

// ListEnabledItems retrieves every enabled watched item in one read
func (d *Database) ListEnabledItems(ctx context.Context) ([]*WatchedItem, error) {
	var items []*WatchedItem
	err := d.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled items: %w", err)
	}
	return items, nil
}

// TouchLastChecked sets last_checked for a watched item
func (d *Database) TouchLastChecked(ctx context.Context, itemID uint, at time.Time) error {
	return d.db.WithContext(ctx).Model(&WatchedItem{}).
		Where("id = ?", itemID).
		UpdateColumn("last_checked", at).Error
}

// Release operations

// CountReleases returns how many releases are stored for an imdb id
func (d *Database) CountReleases(ctx context.Context, imdbID string) (int, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&ReleaseRecord{}).
		Where("imdb_id = ?", imdbID).
		Count(&count).Error
	return int(count), err
}

// FindRelease looks up a release by its dedup key
func (d *Database) FindRelease(ctx context.Context, imdbID, infoHash string) (*ReleaseRecord, error) {
	return findRelease(d.db.WithContext(ctx), imdbID, infoHash)
}

// InsertRelease stores a new release record
func (d *Database) InsertRelease(ctx context.Context, rec *ReleaseRecord) error {
	return insertRelease(d.db.WithContext(ctx), rec, time.Now().UTC())
}

// TouchRelease updates the freshness timestamp of an existing release
func (d *Database) TouchRelease(ctx context.Context, id uint, at time.Time) error {
	return touchRelease(d.db.WithContext(ctx), id, at)
}

// RecordIfNew inserts rec unless (imdb_id, info_hash) is already stored, in
// which case only last_update is touched. Identity fields of an existing row
// are never overwritten.
func (d *Database) RecordIfNew(ctx context.Context, rec *ReleaseRecord) (bool, error) {
	isNew := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		existing, err := findRelease(tx, rec.IMDBId, rec.InfoHash)
		if err == nil {
			rec.ID = existing.ID
			rec.FirstSeen = existing.FirstSeen
			rec.LastUpdate = now
			return touchRelease(tx, existing.ID, now)
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := insertRelease(tx, rec, now); err != nil {
			return err
		}
		isNew = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record release %s/%s: %w", rec.IMDBId, rec.InfoHash, err)
	}
	return isNew, nil
}

// ListReleases returns stored releases for an imdb id, newest first
func (d *Database) ListReleases(ctx context.Context, imdbID string, limit int) ([]*ReleaseRecord, error) {
	var recs []*ReleaseRecord
	q := d.db.WithContext(ctx).Where("imdb_id = ?", imdbID).Order("first_seen DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

func findRelease(tx *gorm.DB, imdbID, infoHash string) (*ReleaseRecord, error) {
	var rec ReleaseRecord
	err := tx.Where("imdb_id = ? AND info_hash = ?", imdbID, infoHash).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func insertRelease(tx *gorm.DB, rec *ReleaseRecord, now time.Time) error {
	rec.ID = 0
	rec.FirstSeen = now
	rec.LastUpdate = now
	return tx.Create(rec).Error
}

func touchRelease(tx *gorm.DB, id uint, at time.Time) error {
	return tx.Model(&ReleaseRecord{}).Where("id = ?", id).UpdateColumn("last_update", at).Error
}

// Notification history

// SaveNotification appends a row to the notification history
func (d *Database) SaveNotification(ctx context.Context, ev *NotificationEvent) error {
	if ev.SentAt.IsZero() {
		ev.SentAt = time.Now().UTC()
	}
	return d.db.WithContext(ctx).Create(ev).Error
}

// ListNotifications returns the most recent notification history rows
func (d *Database) ListNotifications(ctx context.Context, limit int) ([]*NotificationEvent, error) {
	var evs []*NotificationEvent
	err := d.db.WithContext(ctx).Order("sent_at DESC, id DESC").Limit(limit).Find(&evs).Error
	return evs, err
}

// Stats returns row counts for the status endpoint
func (d *Database) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	db := d.db.WithContext(ctx)
	if err := db.Model(&WatchedItem{}).Count(&s.WatchedItems).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&WatchedItem{}).Where("enabled = ?", true).Count(&s.EnabledItems).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&ReleaseRecord{}).Count(&s.Releases).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&NotificationEvent{}).Count(&s.Notifications).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
