package rooms

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ValidationError marks malformed client input: the caller is notified with
// the reason and no state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IsValidation reports whether err is a client-input validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Store owns every room and the registry binding each live peer to its room.
// One mutex serializes all mutations; expected concurrency is a handful of
// browser peers, so per-room locking would buy nothing.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	peers map[string]*Participant
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
		peers: make(map[string]*Participant),
	}
}

// Join binds peerID to roomID, creating the room on first join. The returned
// list is the membership at the moment of insertion, excluding the joining
// peer itself: joiners use it to decide whom to call, and calling yourself is
// never useful.
//
// Mic and camera start on; only the peer's own status updates change them.
func (s *Store) Join(peerID, roomID, displayName string, out chan []byte) (*Participant, []*Participant, error) {
	roomID = strings.TrimSpace(roomID)
	displayName = strings.TrimSpace(displayName)
	if roomID == "" || displayName == "" {
		return nil, nil, &ValidationError{Reason: "Room ID and display name required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.peers[peerID]; ok {
		return nil, nil, &ValidationError{Reason: fmt.Sprintf("peer %v already joined a room", peerID)}
	}

	r, ok := s.rooms[roomID]
	if !ok {
		r = &Room{ID: roomID}
		s.rooms[roomID] = r
	}

	others := r.snapshot()

	p := &Participant{
		ID:          peerID,
		DisplayName: displayName,
		IsMicOn:     true,
		IsCamOn:     true,
		Out:         out,
		room:        r,
	}
	r.Participants = append(r.Participants, p)
	s.peers[peerID] = p

	return p, others, nil
}

// Leave removes the peer from its room, deleting the room when it empties.
// It is idempotent: a peer without a binding is a no-op. The returned list is
// the remaining membership, for the departure broadcast.
func (s *Store) Leave(peerID string) (string, []*Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[peerID]
	if !ok {
		return "", nil, false
	}

	delete(s.peers, peerID)

	r := p.room
	r.remove(p)
	if len(r.Participants) == 0 {
		delete(s.rooms, r.ID)
	}

	return r.ID, r.snapshot(), true
}

// Get resolves a live peer regardless of room.
func (s *Store) Get(peerID string) (*Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.peers[peerID]
	return p, ok
}

// Roommates returns the other members of the peer's room, or nil if the peer
// has no binding.
func (s *Store) Roommates(peerID string) []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.peers[peerID]
	if !ok {
		return nil
	}

	out := make([]*Participant, 0, len(p.room.Participants)-1)
	for _, participant := range p.room.Participants {
		if participant != p {
			out = append(out, participant)
		}
	}
	return out
}

// Members returns every member of the peer's room, the peer included, or nil
// if the peer has no binding.
func (s *Store) Members(peerID string) []*Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.peers[peerID]
	if !ok {
		return nil
	}
	return p.room.snapshot()
}

// SetStatus applies a peer's own mic/camera announcement. Nil fields are
// left untouched.
func (s *Store) SetStatus(peerID string, mic, cam *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[peerID]
	if !ok {
		return
	}
	if mic != nil {
		p.IsMicOn = *mic
	}
	if cam != nil {
		p.IsCamOn = *cam
	}
}

// List snapshots the current rooms for discovery UIs.
func (s *Store) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RoomInfo, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, RoomInfo{RoomID: r.ID, Count: len(r.Participants)})
	}
	return out
}
