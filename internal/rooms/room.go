package rooms

import "fmt"

// Room is an ephemeral named group of peers. It is created lazily on first
// join and removed the instant its participant set becomes empty, so an
// existing room always has at least one participant.
//
// Rooms carry no lock of their own: all access is serialized by the owning
// Store.
type Room struct {
	ID           string
	Participants []*Participant
}

// RoomInfo is the discovery snapshot exposed by the rooms listing.
type RoomInfo struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

func (r *Room) String() string {
	return fmt.Sprintf("room=%v, participants=%v", r.ID, len(r.Participants))
}

func (r *Room) snapshot() []*Participant {
	out := make([]*Participant, len(r.Participants))
	copy(out, r.Participants)
	return out
}

func (r *Room) remove(p *Participant) {
	for i, participant := range r.Participants {
		if p == participant {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return
		}
	}
}
