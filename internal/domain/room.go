package domain

import "time"

type (
	RoomID  string
	GroupID string
)

// Room is the server-side record of one live call. A room with zero
// participants does not exist: the store deletes it in the same
// operation that removed the last participant.
type Room struct {
	ID    RoomID
	Kind  CallKind
	Media MediaKind
	State CallState

	// CallerID/CalleeID are set for private rooms only.
	CallerID UserID
	CalleeID UserID

	// Group is set for group rooms only and answers "is there already
	// an active call for this group".
	Group     GroupID
	GroupName string

	// Participants is an ordered set: join order, no duplicates.
	Participants []UserID
	Display      map[UserID]Participant

	// StartedAt is stamped server-side the moment the second
	// participant joins. Zero means the call never connected.
	StartedAt time.Time
}

func (r *Room) Has(id UserID) bool {
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Others returns every participant except the given one, in join order.
func (r *Room) Others(id UserID) []UserID {
	out := make([]UserID, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

// DisplayList returns participant display info in join order.
func (r *Room) DisplayList() []Participant {
	out := make([]Participant, 0, len(r.Participants))
	for _, id := range r.Participants {
		if p, ok := r.Display[id]; ok {
			out = append(out, p)
		} else {
			out = append(out, Participant{ID: id})
		}
	}
	return out
}
