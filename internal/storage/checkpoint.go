// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// Checkpoint keys sort chronologically: prefix + zero-padded unix nanos.
const prefixCheckpoint = "checkpoint:"

// ErrCheckpointClosed is returned after Close.
var ErrCheckpointClosed = errors.New("checkpoint store closed")

// CheckpointConfig configures a CheckpointStore.
type CheckpointConfig struct {
	// Path is the BadgerDB directory.
	Path string

	// Retain is the number of checkpoints kept. 0 keeps everything.
	Retain int

	// InMemory runs badger without touching disk. Path is ignored.
	InMemory bool
}

// CheckpointStore persists risk-score snapshots in BadgerDB.
type CheckpointStore struct {
	db     *badger.DB
	retain int

	mu     sync.RWMutex
	closed bool
}

// OpenCheckpointStore opens (or creates) the badger directory.
func OpenCheckpointStore(cfg CheckpointConfig) (*CheckpointStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("retain", cfg.Retain).Msg("Checkpoint store opened")
	return &CheckpointStore{db: db, retain: cfg.Retain}, nil
}

func checkpointKey(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCheckpoint, ts.UnixNano()))
}

// SaveRiskScores writes a checkpoint of states taken at ts and prunes old
// entries beyond the retention count.
func (c *CheckpointStore) SaveRiskScores(ctx context.Context, ts time.Time, states []models.UserRiskState) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := models.RiskCheckpoint{
		Timestamp: ts.UTC(),
		Scores:    make(map[string]float64, len(states)),
		States:    states,
	}
	for _, st := range states {
		cp.Scores[st.UserID] = st.RiskScore
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(checkpointKey(ts), data))
	})
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	metrics.CheckpointsTotal.Inc()

	if c.retain > 0 {
		if err := c.prune(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to prune checkpoints")
		}
	}
	return nil
}

// Latest returns the newest checkpoint, or nil when none exist.
func (c *CheckpointStore) Latest(ctx context.Context) (*models.RiskCheckpoint, error) {
	cps, err := c.History(ctx, 1)
	if err != nil || len(cps) == 0 {
		return nil, err
	}
	return &cps[0], nil
}

// History returns up to limit checkpoints, newest first.
func (c *CheckpointStore) History(ctx context.Context, limit int) ([]models.RiskCheckpoint, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)
	out := make([]models.RiskCheckpoint, 0)

	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixCheckpoint)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must seek past the last possible key.
		seek := append([]byte(prefixCheckpoint), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix) && len(out) < limit; it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			var cp models.RiskCheckpoint
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &cp)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable checkpoint")
				continue
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}

// Count returns the number of stored checkpoints.
func (c *CheckpointStore) Count() (int, error) {
	keys, err := c.keys()
	return len(keys), err
}

func (c *CheckpointStore) keys() ([][]byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixCheckpoint)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// prune deletes the oldest checkpoints beyond the retention count.
func (c *CheckpointStore) prune(ctx context.Context) error {
	keys, err := c.keys()
	if err != nil {
		return err
	}
	excess := len(keys) - c.retain
	if excess <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys[:excess] {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunGC reclaims value-log space.
func (c *CheckpointStore) RunGC() error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for {
		err := c.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

func (c *CheckpointStore) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrCheckpointClosed
	}
	return nil
}

// Close closes the badger database. It is safe to call more than once.
func (c *CheckpointStore) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("Checkpoint store closed")
	return nil
}
