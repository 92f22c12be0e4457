// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package spill provides a disk-backed chunk cache on BadgerDB.
//
// When a totaling run touches more chunk data than the in-memory cache can
// hold, decoded chunks overflow to a local badger store instead of being
// reread and re-decompressed from their source files. The store implements
// dataset.ChunkCache, so it slots in as the second tier of a
// dataset.TieredCache:
//
//	Hot (LRU in RAM) → Warm (BadgerDB spill) → Cold (source .twd files)
//
// Losing the store is harmless. Every entry can be rebuilt from the inputs,
// so writes are asynchronous and entries carry a TTL.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
// This package follows Apache 2.0 guidelines for attribution and usage.
package spill

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for a spill store.
type Config struct {
	// Path is the directory for the badger files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes. Off by default: spill data
	// is reconstructible, so durability buys nothing.
	SyncWrites bool

	// TTL is the lifetime of each entry. Zero keeps entries until the
	// store is dropped or closed.
	TTL time.Duration

	// Logger receives badger's internal logging. If nil, badger logging
	// is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns defaults for a per-run spill directory.
//
// Outputs:
//
//	Config - Asynchronous writes, 24-hour entry TTL.
func DefaultConfig() Config {
	return Config{
		SyncWrites: false,
		TTL:        24 * time.Hour,
	}
}

// InMemoryConfig returns configuration optimized for testing.
//
// Outputs:
//
//	Config - InMemory mode, no TTL.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a badger-backed chunk cache.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open creates and opens a spill store with the given configuration.
//
// Description:
//
//	Opens a badger database at the configured path, or in memory if
//	InMemory is true. Creates the directory if it doesn't exist.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if path is invalid or the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent spill store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create spill directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spill store: %w", err)
	}

	return &Store{db: db, ttl: cfg.TTL, logger: cfg.Logger}, nil
}

// OpenWithPath opens a persistent spill store with defaults at path.
func OpenWithPath(path string) (*Store, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	return Open(cfg)
}

// OpenInMemory opens an in-memory spill store for testing.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Get returns the cached payload for key, if present.
//
// A read failure behaves as a miss: the caller falls back to the source
// file, so errors here are logged rather than surfaced.
func (s *Store) Get(key string) ([]byte, bool) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) && s.logger != nil {
			s.logger.Warn("spill read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Put stores a payload under key. Failures are logged and dropped; the
// cache contract has no error channel and the data is reconstructible.
func (s *Store) Put(key string, data []byte) {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("spill write failed", "key", key, "error", err)
	}
}

// GC rewrites the value log until less than ratio of it is garbage.
// Call between runs on a long-lived spill directory.
func (s *Store) GC(ratio float64) error {
	for {
		err := s.db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("spill value log gc: %w", err)
		}
	}
}

// Drop removes all entries.
func (s *Store) Drop() error {
	return s.db.DropAll()
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
