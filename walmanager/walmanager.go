// Package walmanager owns the lifecycle of the active write-ahead log
// segment: routing record writes to it, rotating to a freshly numbered
// segment once the active one crosses a size threshold, and recovering
// which segment was active across a restart by delegating numbering to
// storage.FileSet.
package walmanager

import (
	"fmt"
	"sync"

	"github.com/kvstorage/lsmcore/storage"
	"github.com/kvstorage/lsmcore/wal"
)

// Manager serializes writes to one active WAL segment and rotates to a new
// one once the active segment's size would exceed the configured
// threshold.
type Manager struct {
	mu sync.Mutex

	files     *storage.FileSet
	threshold int64

	activeNum    uint64
	activeWriter *wal.Writer
	activeFile   storage.SequentialWriter
	activeSize   int64
}

// Open recovers file numbering from dir via files and immediately rotates
// to a fresh segment, so the caller always starts with an empty active
// log. threshold is the approximate size, in bytes, past which AddRecord
// triggers a rotation before admitting the record that crossed it.
func Open(files *storage.FileSet, threshold int64) (*Manager, error) {
	m := &Manager{files: files, threshold: threshold}
	if err := m.rotateLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// AddRecord appends data to the active segment, rotating to a new segment
// first if admitting data would take a non-empty active segment past the
// configured threshold.
func (m *Manager) AddRecord(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeSize > 0 && m.activeSize+int64(len(data)) > m.threshold {
		if err := m.rotateLocked(); err != nil {
			return err
		}
	}
	if err := m.activeWriter.AddRecord(data); err != nil {
		return err
	}
	m.activeSize += int64(len(data))
	return nil
}

// Sync fsyncs the active segment.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWriter.Sync()
}

// ActiveSegment reports the file number currently being written to.
func (m *Manager) ActiveSegment() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeNum
}

// Rotate forces a rotation to a new segment regardless of the active
// segment's current size, e.g. once its memtable has been swapped out
// after a flush.
func (m *Manager) Rotate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotateLocked()
}

func (m *Manager) rotateLocked() error {
	if m.activeWriter != nil {
		if err := m.activeWriter.Close(); err != nil {
			return fmt.Errorf("walmanager: closing segment %d: %w", m.activeNum, err)
		}
	}

	num, path := m.files.Next(storage.KindLog)
	f, err := storage.Default.Create(path)
	if err != nil {
		return fmt.Errorf("walmanager: creating segment %d: %w", num, err)
	}

	m.activeNum = num
	m.activeFile = f
	m.activeWriter = wal.NewWriter(f)
	m.activeSize = 0
	return nil
}

// Close closes the active segment.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeWriter == nil {
		return nil
	}
	return m.activeWriter.Close()
}
