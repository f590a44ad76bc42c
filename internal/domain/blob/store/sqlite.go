package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"imgconv-server-go/internal/platform/errors"
	"imgconv-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db        *gorm.DB
	ttl       time.Duration
	threshold int
}

// NewSQLite builds a SQLite-backed blob store on an already migrated database.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, errors.New(errors.KindStorage, "blob.sqlite", "sqlite store requires database handle")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &sqliteStore{db: db, ttl: ttl, threshold: cfg.CompressThreshold}, nil
}

func (s *sqliteStore) Put(ctx context.Context, id string, blob *Blob) error {
	if err := validID("blob.put", id); err != nil {
		return err
	}
	b := stamp(blob, s.ttl)
	payload, encoding, err := compress(b.Data, s.threshold)
	if err != nil {
		return err
	}
	raw, err := marshalMeta(metaOf(b, encoding))
	if err != nil {
		return errors.Wrap(errors.KindStorage, "blob.put", "encode metadata", err)
	}

	record := &storage.BlobRecord{
		BlobID:    id,
		Name:      b.Name,
		MIME:      b.MIME,
		Size:      int64(len(b.Data)),
		Encoding:  encoding,
		Payload:   payload,
		Meta:      datatypes.JSON(raw),
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.ExpiresAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("blob_id = ?", id).Delete(&storage.BlobRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "blob.put", "sqlite write failed", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*Blob, error) {
	var record storage.BlobRecord
	err := s.db.WithContext(ctx).Where("blob_id = ?", id).First(&record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "blob.get", "sqlite read failed", err)
	}
	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return nil, ErrNotFound
	}

	data, err := decompress(record.Payload, record.Encoding)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Name:      record.Name,
		MIME:      record.MIME,
		Data:      data,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("blob_id = ?", id).Delete(&storage.BlobRecord{}).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "blob.delete", "sqlite delete failed", err)
	}
	return nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.BlobRecord{}).
		Error
	if err != nil {
		return errors.Wrap(errors.KindStorage, "blob.cleanup", "sqlite cleanup failed", err)
	}
	return nil
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	var row struct {
		Entries int64
		Bytes   int64
	}
	err := s.db.WithContext(ctx).Model(&storage.BlobRecord{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(LENGTH(payload)), 0) AS bytes").
		Scan(&row).Error
	if err != nil {
		return Stats{}, errors.Wrap(errors.KindStorage, "blob.stats", "sqlite stats failed", err)
	}
	return Stats{
		Driver:     DriverSQLite,
		Entries:    row.Entries,
		Bytes:      row.Bytes,
		TTLSeconds: int(s.ttl.Seconds()),
	}, nil
}

// Close 不关闭数据库，连接由创建方负责。
func (s *sqliteStore) Close() error {
	return nil
}
