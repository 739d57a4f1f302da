package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCaptures = []byte("captures")

// Capture is a message kept by the sandbox transport instead of delivered
type Capture struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	ReplyTo      string    `json:"reply_to,omitempty"`
	Subject      string    `json:"subject"`
	Data         []byte    `json:"data,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
	SimulatedErr string    `json:"simulated_error,omitempty"`
}

// CaptureStore keeps sandbox captures in a bbolt file, ordered by capture time
type CaptureStore struct {
	db *bolt.DB
}

// OpenCaptureStore opens (creating if needed) the capture database at path
func OpenCaptureStore(path string) (*CaptureStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open sandbox database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCaptures)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sandbox bucket: %w", err)
	}

	return &CaptureStore{db: db}, nil
}

// Close closes the underlying database
func (s *CaptureStore) Close() error {
	return s.db.Close()
}

// Save stores a capture
func (s *CaptureStore) Save(ctx context.Context, c *Capture) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal capture: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCaptures).Put(captureKey(c.CapturedAt, c.ID), data)
	})
}

// Get retrieves a capture by ID. It returns nil when no capture matches.
func (s *CaptureStore) Get(ctx context.Context, id string) (*Capture, error) {
	var found *Capture
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCaptures).Cursor()
		suffix := ":" + id
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !strings.HasSuffix(string(k), suffix) {
				continue
			}
			var m Capture
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to unmarshal capture: %w", err)
			}
			found = &m
			return nil
		}
		return nil
	})
	return found, err
}

// CaptureFilter narrows List results
type CaptureFilter struct {
	To     string
	Limit  int
	Offset int
}

// List returns captures newest first, without message data
func (s *CaptureStore) List(ctx context.Context, filter CaptureFilter) ([]*Capture, error) {
	var out []*Capture
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCaptures).Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var m Capture
			if err := json.Unmarshal(v, &m); err != nil {
				continue
			}
			if filter.To != "" && !strings.EqualFold(m.To, filter.To) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			m.Data = nil
			out = append(out, &m)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// Clear removes captures older than olderThan (all when zero) and returns
// how many were removed
func (s *CaptureStore) Clear(ctx context.Context, olderThan time.Duration) (int, error) {
	var count int
	cutoff := time.Now().Add(-olderThan)

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCaptures)
		var keys [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if olderThan > 0 {
				var m Capture
				if err := json.Unmarshal(v, &m); err == nil && m.CapturedAt.After(cutoff) {
					return nil
				}
			}
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func captureKey(t time.Time, id string) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano) + ":" + id)
}
