package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Garsondee/Pixel-Planet/internal/grid"
)

var bucketName = []byte("planet")

// BoltStore keeps the planet in a bbolt file. bbolt holds an exclusive file
// lock while a database is open, so the file is opened per transaction and
// closed again; that lets several processes take turns on the same file.
type BoltStore struct {
	path    string
	timeout time.Duration
	mu      sync.Mutex
}

// OpenBolt creates (if needed) and initializes the database at path.
// timeout bounds how long an operation waits for another process's lock.
func OpenBolt(path string, timeout time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &BoltStore{path: path, timeout: timeout}
	err := s.update(context.Background(), func(*bolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.timeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	return db, nil
}

func (s *BoltStore) update(ctx context.Context, fn func(*bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return fn(b)
	})
}

// view returns copies of the requested keys' values.
func (s *BoltStore) view(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	out := make(map[string][]byte, len(keys))
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		for _, k := range keys {
			if v := b.Get([]byte(k)); v != nil {
				out[k] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) LoadSnapshot(ctx context.Context) (grid.Snapshot, error) {
	vals, err := s.view(ctx, KeyPixels, KeyHistory)
	if err != nil {
		return grid.Snapshot{}, err
	}
	return DecodeSnapshot(vals[KeyPixels], vals[KeyHistory])
}

func (s *BoltStore) SaveSnapshot(ctx context.Context, snap grid.Snapshot) error {
	pixels, history, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.update(ctx, func(b *bolt.Bucket) error {
		if err := b.Put([]byte(KeyPixels), pixels); err != nil {
			return fmt.Errorf("put pixels: %w", err)
		}
		if err := b.Put([]byte(KeyHistory), history); err != nil {
			return fmt.Errorf("put history: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) LoadLabel(ctx context.Context) (string, error) {
	vals, err := s.view(ctx, KeyLabel)
	if err != nil {
		return "", err
	}
	return string(vals[KeyLabel]), nil
}

func (s *BoltStore) SaveLabel(ctx context.Context, label string) error {
	return s.update(ctx, func(b *bolt.Bucket) error {
		return b.Put([]byte(KeyLabel), []byte(label))
	})
}

func (s *BoltStore) WriteSignal(ctx context.Context, origin string, payload []byte) (uint64, error) {
	var seq uint64
	err := s.update(ctx, func(b *bolt.Bucket) error {
		var err error
		seq, err = b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		raw, err := appendSignal(b.Get([]byte(KeySignal)), Signal{Seq: seq, Origin: origin, Payload: payload})
		if err != nil {
			return err
		}
		return b.Put([]byte(KeySignal), raw)
	})
	return seq, err
}

func (s *BoltStore) ReadSignals(ctx context.Context) ([]Signal, error) {
	vals, err := s.view(ctx, KeySignal)
	if err != nil {
		return nil, err
	}
	return decodeSignals(vals[KeySignal])
}

// Close is a no-op: the file is only open during a transaction.
func (s *BoltStore) Close() error {
	return nil
}

// appendSignal adds sig to the encoded log in prev and trims it to
// SignalLogSize.
func appendSignal(prev []byte, sig Signal) ([]byte, error) {
	if len(sig.Payload) == 0 || !json.Valid(sig.Payload) {
		return nil, fmt.Errorf("encode signal: payload is not JSON")
	}
	log, err := decodeSignals(prev)
	if err != nil && !errors.Is(err, ErrNoSignal) {
		// Start over from an unreadable log.
		log = nil
	}
	log = append(log, sig)
	if n := len(log) - SignalLogSize; n > 0 {
		log = log[n:]
	}
	raw, err := json.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return raw, nil
}

func decodeSignals(raw []byte) ([]Signal, error) {
	if len(raw) == 0 {
		return nil, ErrNoSignal
	}
	var log []Signal
	if err := json.Unmarshal(raw, &log); err != nil {
		return nil, fmt.Errorf("decode signal: %w", err)
	}
	if len(log) == 0 {
		return nil, ErrNoSignal
	}
	return log, nil
}
