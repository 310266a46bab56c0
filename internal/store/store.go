// Package store owns the live room collection and its durable snapshot.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rakou1986/aochd-temporary-room-on-irc/internal/domain"
)

// Store keeps rooms in insertion order. Room numbers are a dense 1..N view
// over that order, reassigned after every Add/Remove. Only the session task
// mutates; the RWMutex exists for the read-only HTTP observers, and covers
// room field writes too: mutation of a room handed out by the finders must
// go through Update/Touch.
type Store struct {
	mu    sync.RWMutex
	rooms []*domain.Room
	path  string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// FindByMember returns the first room containing nickname, or nil.
func (s *Store) FindByMember(nickname string) *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.HasMember(nickname) {
			return room
		}
	}
	return nil
}

// FindByNumber returns the room whose current number equals n, or nil.
func (s *Store) FindByNumber(n int) *domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.Number == n {
			return room
		}
	}
	return nil
}

func (s *Store) Add(room *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, room)
	s.renumber()
}

func (s *Store) Remove(room *domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rooms {
		if r == room || r.ID == room.ID {
			s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
			break
		}
	}
	s.renumber()
}

// Update runs fn on room under the write lock. Every engine-side mutation
// of a room's fields goes through here so Snapshot never reads a field a
// racing mutation is writing.
func (s *Store) Update(room *domain.Room, fn func(*domain.Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(room)
}

// Touch records the announcement time under the write lock.
func (s *Store) Touch(room *domain.Room, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.LastAnnouncedAt = at
}

// renumber keeps numbers dense and unique. Caller holds the write lock.
func (s *Store) renumber() {
	for i, room := range s.rooms {
		room.Number = i + 1
	}
}

// All returns the live rooms in number order. Only the session task may
// touch the returned pointers.
func (s *Store) All() []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, len(s.rooms))
	copy(out, s.rooms)
	return out
}

// Open returns the rooms with spare capacity, in number order.
func (s *Store) Open() []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Room
	for _, room := range s.rooms {
		if !room.Full() {
			out = append(out, room)
		}
	}
	return out
}

// Snapshot returns a deep copy of the collection in number order, safe for
// concurrent readers.
func (s *Store) Snapshot() []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room.Clone())
	}
	return out
}

// Expired returns rooms created more than ttl ago.
func (s *Store) Expired(ttl time.Duration, now time.Time) []*domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Room
	for _, room := range s.rooms {
		if now.Sub(room.CreatedAt) > ttl {
			out = append(out, room)
		}
	}
	return out
}

// Load reads the snapshot file. A missing file means an empty collection,
// not an error.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read snapshot: %w", err)
	}
	var rooms []*domain.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = rooms
	s.renumber()
	return nil
}

// Save overwrites the snapshot with the whole collection. The write goes to
// a temp file first and is renamed over the snapshot so an interrupted save
// never truncates the previous one. Failures are logged, not fatal: the
// in-memory state stays authoritative.
func (s *Store) Save() {
	s.mu.RLock()
	data, err := json.Marshal(s.rooms)
	s.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Str("module", "store").Msg("encode snapshot")
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".rooms-*.json")
	if err != nil {
		log.Error().Err(err).Str("module", "store").Msg("create snapshot temp file")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.Error().Err(err).Str("module", "store").Msg("write snapshot")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		log.Error().Err(err).Str("module", "store").Msg("close snapshot temp file")
		return
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		log.Error().Err(err).Str("module", "store").Msg("replace snapshot")
	}
}
