// presence.go
// Presence is keyed by participant id, not by connection. Announcing an id
// that is already present rebinds it to the announcing connection.

package main

import "time"

// Participant is one announced identity and the connection it is bound to.
type Participant struct {
	ID       string    `json:"participantId"`
	Nickname string    `json:"nickname"`
	Avatar   string    `json:"avatar"`
	Status   string    `json:"status"`
	ConnID   string    `json:"-"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Presence is the registry of announced participants. It is owned by the
// manager goroutine.
type Presence struct {
	participants map[string]Participant
}

// NewPresence returns an empty registry.
func NewPresence() *Presence {
	return &Presence{participants: make(map[string]Participant)}
}

// Announce inserts or overwrites the record for p.ID.
func (p *Presence) Announce(participant Participant) {
	p.participants[participant.ID] = participant
}

// Lookup returns the current record for participantID.
func (p *Presence) Lookup(participantID string) (Participant, bool) {
	participant, ok := p.participants[participantID]
	return participant, ok
}

// Remove deletes the record and reports whether it existed.
func (p *Presence) Remove(participantID string) bool {
	if _, ok := p.participants[participantID]; !ok {
		return false
	}
	delete(p.participants, participantID)
	return true
}

// BoundTo reports whether participantID is announced and still bound to
// connID. A connection whose id was taken over by a later announce is no
// longer bound.
func (p *Presence) BoundTo(participantID, connID string) bool {
	if participantID == "" {
		return false
	}
	participant, ok := p.participants[participantID]
	return ok && participant.ConnID == connID
}

// RemoveBinding deletes the record only while it is still bound to connID.
// A record that was re-announced from another connection is left in place.
func (p *Presence) RemoveBinding(participantID, connID string) bool {
	if !p.BoundTo(participantID, connID) {
		return false
	}
	return p.Remove(participantID)
}

// Count is the number of bound participants.
func (p *Presence) Count() int {
	return len(p.participants)
}
