package rooms

import "fmt"

// Participant is one connected peer inside a room. Out is the write channel
// owned by the peer's connection; the store only ever sends on it and never
// closes it.
type Participant struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	IsMicOn     bool        `json:"isMicOn"`
	IsCamOn     bool        `json:"isCamOn"`
	Out         chan []byte `json:"-"`

	room *Room
}

func (p *Participant) String() string {
	return fmt.Sprintf("peer=%v, room=%v", p.ID, p.room.ID)
}

// Room names the room the participant is bound to.
func (p *Participant) Room() string {
	return p.room.ID
}
