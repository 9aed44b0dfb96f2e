package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avrek/huddle/internal/domain"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room full")
	ErrAlreadyJoined = errors.New("already in room")
)

const privateRoomCap = 2

// RoomStore is the in-memory session store: one room per live call.
// The broker serializes all mutation; the store's own lock only covers
// direct readers (REST, check-active).
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	now   func() time.Time
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomID]*domain.Room),
		now:   time.Now,
	}
}

// newRoomID embeds kind, seed identities and a timestamp to aid
// debugging; the uuid suffix is what actually guarantees uniqueness.
func newRoomID(kind domain.CallKind, seed string) domain.RoomID {
	return domain.RoomID(fmt.Sprintf("%s_%s_%d_%s", kind, seed, time.Now().UnixMilli(), uuid.NewString()[:8]))
}

// CreatePrivate makes a ringing two-party room with the caller as sole
// participant. Presence of the callee is the broker's concern.
func (s *RoomStore) CreatePrivate(caller domain.Participant, callee domain.UserID, media domain.MediaKind) *domain.Room {
	room := &domain.Room{
		ID:           newRoomID(domain.KindPrivate, string(caller.ID)+"_"+string(callee)),
		Kind:         domain.KindPrivate,
		Media:        media,
		State:        domain.StateRinging,
		CallerID:     caller.ID,
		CalleeID:     callee,
		Participants: []domain.UserID{caller.ID},
		Display:      map[domain.UserID]domain.Participant{caller.ID: caller},
	}
	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("private room created")
	return room
}

// GetOrCreateGroup returns the active room for a group, creating one if
// absent. created=true means the caller should act as initiator and
// fan out invitations; false means it should join as a regular member.
func (s *RoomStore) GetOrCreateGroup(group domain.GroupID, groupName string, media domain.MediaKind) (*domain.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Kind == domain.KindGroup && r.Group == group {
			return r, false
		}
	}
	room := &domain.Room{
		ID:        newRoomID(domain.KindGroup, string(group)),
		Kind:      domain.KindGroup,
		Media:     media,
		State:     domain.StateActive,
		Group:     group,
		GroupName: groupName,
		Display:   make(map[domain.UserID]domain.Participant),
	}
	s.rooms[room.ID] = room
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("group", string(group)).Msg("group room created")
	return room, true
}

func (s *RoomStore) Get(id domain.RoomID) (*domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// AddParticipant appends an identity to the room, stamping StartedAt
// when the second participant arrives. Duplicates are rejected so the
// participant list stays a set.
func (s *RoomStore) AddParticipant(id domain.RoomID, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Has(p.ID) {
		return ErrAlreadyJoined
	}
	if room.Kind == domain.KindPrivate && len(room.Participants) >= privateRoomCap {
		return ErrRoomFull
	}
	room.Participants = append(room.Participants, p.ID)
	room.Display[p.ID] = p
	if len(room.Participants) == 2 {
		room.StartedAt = s.now()
	}
	return nil
}

// SetState records a state change under the store lock. The broker
// validates the transition; direct readers like List only ever see a
// value written here.
func (s *RoomStore) SetState(id domain.RoomID, state domain.CallState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[id]; ok {
		room.State = state
	}
}

// RemoveParticipant drops an identity and, when that empties the room,
// deletes it in the same operation: there is no observable empty room.
func (s *RoomStore) RemoveParticipant(id domain.RoomID, uid domain.UserID) (remaining []domain.UserID, deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, false, ErrRoomNotFound
	}
	kept := room.Participants[:0]
	for _, p := range room.Participants {
		if p != uid {
			kept = append(kept, p)
		}
	}
	room.Participants = kept
	delete(room.Display, uid)
	if len(room.Participants) == 0 {
		delete(s.rooms, id)
		log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room emptied, deleted")
		return nil, true, nil
	}
	out := make([]domain.UserID, len(room.Participants))
	copy(out, room.Participants)
	return out, false, nil
}

func (s *RoomStore) Delete(id domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// RoomsWith returns every room the identity currently participates in.
// Used by disconnect reconciliation; safe to call while removals run.
func (s *RoomStore) RoomsWith(uid domain.UserID) []domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RoomID
	for id, r := range s.rooms {
		if r.Has(uid) {
			out = append(out, id)
		}
	}
	return out
}

// ActiveGroupRoom answers the "is there a joinable call" discovery query.
func (s *RoomStore) ActiveGroupRoom(group domain.GroupID) (*domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.Kind == domain.KindGroup && r.Group == group && len(r.Participants) > 0 {
			return r, true
		}
	}
	return nil, false
}

// RoomInfo is the read-only view for the REST debug surface.
type RoomInfo struct {
	ID           domain.RoomID    `json:"roomId"`
	Kind         domain.CallKind  `json:"kind"`
	Media        domain.MediaKind `json:"callType"`
	State        domain.CallState `json:"state"`
	Participants int              `json:"participantCount"`
}

func (s *RoomStore) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, RoomInfo{
			ID:           r.ID,
			Kind:         r.Kind,
			Media:        r.Media,
			State:        r.State,
			Participants: len(r.Participants),
		})
	}
	return out
}
