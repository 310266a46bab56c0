// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// Capacity bounds for a room. Eight is the AoC lobby limit.
	MinCapacity     = 2
	MaxCapacity     = 8
	DefaultCapacity = 8

	// MaxRoomNumber bounds the number accepted by the join-by-number token.
	MaxRoomNumber = 1000
)

var (
	ErrRoomFull       = errors.New("room full")
	ErrNotHost        = errors.New("not the host")
	ErrNotMember      = errors.New("not a member")
	ErrAlreadyMember  = errors.New("already a member")
	ErrCapacityBounds = errors.New("capacity out of bounds")
	ErrCapacityTooLow = errors.New("capacity below member count")
	ErrCannotKickHost = errors.New("cannot kick the host")
)

type RoomID string

// Room is a bounded-capacity matchmaking group. Members keeps join order
// and Members[0] is always the host. Number is a dense 1..N view over the
// live collection, reassigned after every structural change; ID is the
// stable identity.
type Room struct {
	ID              RoomID    `json:"id"`
	Name            string    `json:"name"`
	Host            string    `json:"host"`
	Members         []string  `json:"members"`
	Capacity        int       `json:"capacity"`
	Number          int       `json:"number"`
	CreatedAt       time.Time `json:"created_at"`
	LastAnnouncedAt time.Time `json:"last_announced_at"`
}

// NewRoom avoids raw literals in the engine and keeps construction obvious.
func NewRoom(host, name string) *Room {
	now := time.Now()
	return &Room{
		ID:              RoomID(uuid.NewString()),
		Name:            name,
		Host:            host,
		Members:         []string{host},
		Capacity:        DefaultCapacity,
		CreatedAt:       now,
		LastAnnouncedAt: now,
	}
}

func (r *Room) HasMember(nickname string) bool {
	return slices.Contains(r.Members, nickname)
}

// Remaining is the number of free seats.
func (r *Room) Remaining() int {
	return r.Capacity - len(r.Members)
}

func (r *Room) Full() bool {
	return r.Remaining() <= 0
}

// Join appends nickname, rejecting overcap and duplicates.
func (r *Room) Join(nickname string) error {
	if r.Full() {
		return ErrRoomFull
	}
	if r.HasMember(nickname) {
		return ErrAlreadyMember
	}
	r.Members = append(r.Members, nickname)
	return nil
}

// RemoveMember drops nickname from the member list. The host cannot be
// removed this way; disbanding is the engine's job.
func (r *Room) RemoveMember(nickname string) error {
	if nickname == r.Host {
		return ErrCannotKickHost
	}
	i := slices.Index(r.Members, nickname)
	if i < 0 {
		return ErrNotMember
	}
	r.Members = slices.Delete(r.Members, i, i+1)
	return nil
}

// SetCapacity validates bounds and the current member count.
func (r *Room) SetCapacity(capacity int) error {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return ErrCapacityBounds
	}
	if capacity < len(r.Members) {
		return ErrCapacityTooLow
	}
	r.Capacity = capacity
	return nil
}

// SetHost promotes an existing member to host, moving them to the front of
// the member list and preserving the relative order of the rest.
func (r *Room) SetHost(nickname string) error {
	i := slices.Index(r.Members, nickname)
	if i < 0 {
		return ErrNotMember
	}
	r.Members = slices.Delete(r.Members, i, i+1)
	r.Members = slices.Insert(r.Members, 0, nickname)
	r.Host = nickname
	return nil
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (r *Room) Clone() *Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	return &c
}
