package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/scholargraph/internal/errors"
)

const bucketName = "generations"

// keyLayout is fixed width so keys sort in time order
const keyLayout = "2006-01-02T15:04:05.000000000Z"

// GenerationRecord is one natural-language-to-Cypher attempt
type GenerationRecord struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UserInput      string    `json:"user_input"`
	GeneratedQuery string    `json:"generated_query,omitempty"`
	Model          string    `json:"model,omitempty"`
	Success        bool      `json:"success"`
	Step           string    `json:"step,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Store is an append-only log of generation attempts in a bbolt file.
// bbolt serializes writers, so a Store is safe for concurrent use.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the audit file at path
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.StorageError(err, "failed to create audit directory")
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.StorageError(err, fmt.Sprintf("failed to open audit log %s", path))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.StorageError(err, "failed to create audit bucket")
	}

	logger = logger.With("component", "audit")
	logger.Info("audit log opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Append stores a record, assigning ID and CreatedAt when they are empty
func (s *Store) Append(ctx context.Context, rec GenerationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.StorageError(err, "failed to encode audit record")
	}

	key := rec.CreatedAt.Format(keyLayout) + "_" + rec.ID
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		return bucket.Put([]byte(key), data)
	})
	if err != nil {
		return errors.StorageError(err, "failed to append audit record")
	}

	s.logger.Debug("audit record appended", "id", rec.ID, "success", rec.Success)
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns none.
func (s *Store) Recent(ctx context.Context, limit int) ([]GenerationRecord, error) {
	records := []GenerationRecord{}
	if limit <= 0 {
		return records, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}

		c := bucket.Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec GenerationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt audit record %s: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errors.StorageError(err, "failed to read audit records")
	}
	return records, nil
}

// Close closes the underlying bbolt file
func (s *Store) Close() error {
	return s.db.Close()
}
