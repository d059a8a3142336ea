// rooms.go
// Rooms are created on first join and keep a bounded history. An empty room
// keeps its history until Reclaim drops it, and Reclaim only runs when an
// idle TTL is configured.

package main

import (
	"time"

	"github.com/samber/lo"
)

const (
	defaultHistorySize = 100
	messageTimeLayout  = "15:04:05"
)

// RoomMessage is one entry of a room's history.
type RoomMessage struct {
	RoomID   string `json:"roomId"`
	From     string `json:"from"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"`
	Time     string `json:"time"`
}

type Room struct {
	ID         string
	members    map[string]struct{}
	history    []RoomMessage
	emptySince time.Time
}

func (r *Room) Members() []string {
	return lo.Keys(r.members)
}

type RoomDirectory struct {
	rooms       map[string]*Room
	presence    *Presence
	historySize int
}

func NewRoomDirectory(presence *Presence, historySize int) *RoomDirectory {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &RoomDirectory{
		rooms:       make(map[string]*Room),
		presence:    presence,
		historySize: historySize,
	}
}

// Join adds connID to the room, creating it if needed, and returns a copy of
// the history together with the current members.
func (d *RoomDirectory) Join(roomID, connID string) ([]RoomMessage, []string) {
	room, ok := d.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, members: make(map[string]struct{})}
		d.rooms[roomID] = room
	}
	room.members[connID] = struct{}{}
	room.emptySince = time.Time{}

	history := make([]RoomMessage, len(room.history))
	copy(history, room.history)
	return history, room.Members()
}

// Post resolves participantID through presence and appends the message. It
// returns false when the sender is not announced or the room does not exist.
func (d *RoomDirectory) Post(roomID, participantID, content string, now time.Time) (RoomMessage, []string, bool) {
	participant, ok := d.presence.Lookup(participantID)
	if !ok {
		return RoomMessage{}, nil, false
	}
	room, ok := d.rooms[roomID]
	if !ok {
		return RoomMessage{}, nil, false
	}

	msg := RoomMessage{
		RoomID:   roomID,
		From:     participant.ID,
		Nickname: participant.Nickname,
		Content:  content,
		Time:     now.Format(messageTimeLayout),
	}
	room.history = append(room.history, msg)
	if len(room.history) > d.historySize {
		room.history = room.history[len(room.history)-d.historySize:]
	}
	return msg, room.Members(), true
}

// Leave removes connID from the room and returns the remaining members. It
// returns false when the room or the membership does not exist.
func (d *RoomDirectory) Leave(roomID, connID string, now time.Time) ([]string, bool) {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	if !d.removeMember(room, connID, now) {
		return nil, false
	}
	return room.Members(), true
}

// DisconnectCleanup removes connID from every room it belongs to and returns
// the remaining members per affected room.
func (d *RoomDirectory) DisconnectCleanup(connID string, now time.Time) map[string][]string {
	affected := make(map[string][]string)
	for id, room := range d.rooms {
		if d.removeMember(room, connID, now) {
			affected[id] = room.Members()
		}
	}
	return affected
}

// Reclaim deletes rooms that have had no members for at least ttl. A zero
// ttl disables reclamation.
func (d *RoomDirectory) Reclaim(now time.Time, ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	var reclaimed []string
	for id, room := range d.rooms {
		if len(room.members) == 0 && !room.emptySince.IsZero() && now.Sub(room.emptySince) >= ttl {
			delete(d.rooms, id)
			reclaimed = append(reclaimed, id)
		}
	}
	return reclaimed
}

func (d *RoomDirectory) Room(roomID string) (*Room, bool) {
	room, ok := d.rooms[roomID]
	return room, ok
}

func (d *RoomDirectory) History(roomID string) []RoomMessage {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	history := make([]RoomMessage, len(room.history))
	copy(history, room.history)
	return history
}

func (d *RoomDirectory) Len() int {
	return len(d.rooms)
}

func (d *RoomDirectory) removeMember(room *Room, connID string, now time.Time) bool {
	if _, ok := room.members[connID]; !ok {
		return false
	}
	delete(room.members, connID)
	if len(room.members) == 0 {
		room.emptySince = now
	}
	return true
}
