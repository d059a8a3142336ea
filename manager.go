// manager.go

// Central event loop. Every inbound frame, registration, expiry callback,
// sweep tick and HTTP query is handled here, one at a time, so the relay
// state needs no locks. Handlers never block: sends go into each client's
// buffered channel and are dropped when the buffer is full.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultSweepInterval   = 60 * time.Second
	defaultSendBuffer      = 256
	defaultPingInterval    = 30 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultMaxMessageBytes = 64 << 10
	expiredBuffer          = 64
)

func NewClientManager(presence *Presence, bubbles *BubbleStore, rooms *RoomDirectory, direct *DirectRouter, opts Options, log *slog.Logger) *ClientManager {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	return &ClientManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		expired:    make(chan string, expiredBuffer),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		presence:   presence,
		bubbles:    bubbles,
		rooms:      rooms,
		direct:     direct,
		opts:       opts,
		validate:   validator.New(),
		log:        log,
	}
}

// Run processes events until ctx is cancelled, then closes every client's
// send channel so the write goroutines can say goodbye.
func (m *ClientManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("relay stopping", "clients", len(m.clients))
			for id, c := range m.clients {
				close(c.send)
				delete(m.clients, id)
			}
			close(m.done)
			return

		case c := <-m.register:
			m.handleRegister(c)

		case c := <-m.unregister:
			m.handleUnregister(c)

		case frame := <-m.inbound:
			m.dispatch(frame.client, frame.data)

		case id := <-m.expired:
			m.handleExpired(id)

		case <-ticker.C:
			m.sweep()

		case fn := <-m.queries:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (m *ClientManager) Done() <-chan struct{} {
	return m.done
}

// newClient builds a connection session with a buffered outbound channel.
func (m *ClientManager) newClient(id string) *Client {
	return &Client{id: id, send: make(chan []byte, m.opts.SendBuffer), manager: m}
}

func (m *ClientManager) Register(c *Client) error {
	select {
	case m.register <- c:
		return nil
	case <-m.done:
		return ErrRelayStopped
	}
}

func (m *ClientManager) Unregister(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.done:
	}
}

func (m *ClientManager) receive(c *Client, data []byte) bool {
	select {
	case m.inbound <- inboundFrame{client: c, data: data}:
		return true
	case <-m.done:
		return false
	}
}

// postExpiry is called from timer goroutines.
func (m *ClientManager) postExpiry(id string) {
	select {
	case m.expired <- id:
	case <-m.done:
	}
}

func (m *ClientManager) handleRegister(c *Client) {
	m.clients[c.id] = c
	m.log.Debug("client connected", "client", c.id, "clients", len(m.clients))
}

// handleUnregister is the disconnect path. It is safe to call twice for the
// same client.
func (m *ClientManager) handleUnregister(c *Client) {
	if current, ok := m.clients[c.id]; !ok || current != c {
		return
	}
	close(c.send)
	delete(m.clients, c.id)

	now := m.opts.Clock()
	for roomID, members := range m.rooms.DisconnectCleanup(c.id, now) {
		m.sendMany(members, EventRoomMemberCount, len(members))
		m.log.Debug("left room on disconnect", "client", c.id, "room", roomID)
	}
	if c.participant != "" && m.presence.RemoveBinding(c.participant, c.id) {
		m.broadcast(EventPresenceCount, m.presence.Count())
	}
	m.log.Debug("client disconnected", "client", c.id, "participant", c.participant)
}

func (m *ClientManager) dispatch(c *Client, data []byte) {
	if _, ok := m.clients[c.id]; !ok {
		return
	}
	var err error
	var env Envelope
	if err = json.Unmarshal(data, &env); err != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	} else {
		switch env.Event {
		case EventAnnounce:
			err = m.handleAnnounce(c, env.Data)
		case EventPublishContent:
			err = m.handlePublish(c, env.Data)
		case EventJoinRoom:
			err = m.handleJoinRoom(c, env.Data)
		case EventRoomMessage:
			err = m.handleRoomMessage(c, env.Data)
		case EventLeaveRoom:
			err = m.handleLeaveRoom(c, env.Data)
		case EventDirectMessage:
			err = m.handleDirectMessage(c, env.Data)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
		}
	}
	if err != nil {
		m.log.Debug("event dropped", "client", c.id, "event", env.Event, "error", err)
	}
}

func (m *ClientManager) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := m.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func (m *ClientManager) handleAnnounce(c *Client, data json.RawMessage) error {
	var p announcePayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	id := p.ParticipantID
	if id == "" {
		id = c.id
	}
	if c.participant != "" && c.participant != id {
		m.presence.RemoveBinding(c.participant, c.id)
	}
	c.participant = id

	now := m.opts.Clock()
	m.presence.Announce(Participant{
		ID:       id,
		Nickname: p.Nickname,
		Avatar:   p.Avatar,
		Status:   p.Status,
		ConnID:   c.id,
		JoinedAt: now,
	})
	m.log.Info("participant announced", "client", c.id, "participant", id)

	m.broadcast(EventPresenceCount, m.presence.Count())
	m.sendTo(c.id, EventContentSnapshot, m.bubbles.ActiveSnapshot(now))
	return nil
}

func (m *ClientManager) handlePublish(c *Client, data json.RawMessage) error {
	var p publishPayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	author := p.Author
	if author == "" && m.presence.BoundTo(c.participant, c.id) {
		author = c.participant
	}
	stored := m.bubbles.Publish(Bubble{
		Title:     p.Title,
		Body:      p.Body,
		Location:  p.Location,
		Author:    author,
		Duration:  p.Duration,
		IsPrivate: p.IsPrivate,
	}, m.opts.Clock(), m.postExpiry)
	m.log.Debug("bubble published", "client", c.id, "bubble", stored.ID, "duration", stored.Duration, "private", stored.IsPrivate)

	m.broadcast(EventContentPublished, stored)
	return nil
}

func (m *ClientManager) handleJoinRoom(c *Client, data json.RawMessage) error {
	var p roomPayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	history, members := m.rooms.Join(p.RoomID, c.id)
	m.sendTo(c.id, EventRoomHistory, history)
	m.sendMany(members, EventRoomMemberCount, len(members))
	return nil
}

func (m *ClientManager) handleRoomMessage(c *Client, data json.RawMessage) error {
	var p roomMessagePayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	if !m.presence.BoundTo(c.participant, c.id) {
		return ErrUnbound
	}
	msg, members, ok := m.rooms.Post(p.RoomID, c.participant, p.Content, m.opts.Clock())
	if !ok {
		return fmt.Errorf("room %q or participant %q not found", p.RoomID, c.participant)
	}
	m.sendMany(members, EventRoomMessagePosted, msg)
	return nil
}

func (m *ClientManager) handleLeaveRoom(c *Client, data json.RawMessage) error {
	var p roomPayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	members, ok := m.rooms.Leave(p.RoomID, c.id, m.opts.Clock())
	if !ok {
		return nil
	}
	m.sendMany(members, EventRoomMemberCount, len(members))
	return nil
}

func (m *ClientManager) handleDirectMessage(c *Client, data json.RawMessage) error {
	var p directMessagePayload
	if err := m.decode(data, &p); err != nil {
		return err
	}
	if !m.presence.BoundTo(c.participant, c.id) {
		return ErrUnbound
	}
	delivery, ok := m.direct.Send(c.participant, p.TargetParticipantID, p.Content, m.opts.Clock())
	if !ok {
		return fmt.Errorf("participant %q not found", c.participant)
	}
	if delivery.TargetConn != "" && delivery.TargetConn != c.id {
		m.sendTo(delivery.TargetConn, EventDirectMessageDelivered, delivery.Message)
	}
	m.sendTo(c.id, EventDirectMessageDelivered, delivery.Message)
	return nil
}

func (m *ClientManager) handleExpired(id string) {
	if !m.bubbles.Remove(id) {
		return
	}
	m.log.Debug("bubble expired", "bubble", id)
	m.broadcast(EventContentExpired, id)
}

func (m *ClientManager) sweep() {
	now := m.opts.Clock()
	expired := m.bubbles.Sweep(now)
	for _, b := range expired {
		m.broadcast(EventContentExpired, b.ID)
	}
	reclaimed := m.rooms.Reclaim(now, m.opts.RoomIdleTTL)
	if len(expired) > 0 || len(reclaimed) > 0 {
		m.log.Info("sweep", "expired", len(expired), "reclaimed_rooms", len(reclaimed))
	}
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}

// broadcast sends to every connection.
func (m *ClientManager) broadcast(event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		m.log.Error("encode failed", "event", event, "error", err)
		return
	}
	for _, c := range m.clients {
		m.deliver(c, event, msg)
	}
}

func (m *ClientManager) sendMany(ids []string, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		m.log.Error("encode failed", "event", event, "error", err)
		return
	}
	for _, id := range ids {
		if c, ok := m.clients[id]; ok {
			m.deliver(c, event, msg)
		}
	}
}

// sendTo is a no-op for an id that is no longer connected.
func (m *ClientManager) sendTo(id, event string, data any) {
	m.sendMany([]string{id}, event, data)
}

func (m *ClientManager) deliver(c *Client, event string, msg []byte) {
	select {
	case c.send <- msg:
	default:
		m.log.Warn("send buffer full, message dropped", "client", c.id, "event", event)
	}
}

// Status is what the HTTP status endpoint reports.
type Status struct {
	Online  int `json:"online"`
	Bubbles int `json:"bubbles"`
}

// query runs fn on the manager goroutine and waits for it.
func (m *ClientManager) query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case m.queries <- func() { fn(); close(finished) }:
	case <-m.done:
		return ErrRelayStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Run calls fn as soon as it is received, so this cannot hang.
	<-finished
	return nil
}

func (m *ClientManager) Status(ctx context.Context) (Status, error) {
	var s Status
	err := m.query(ctx, func() {
		s = Status{Online: m.presence.Count(), Bubbles: m.bubbles.Len()}
	})
	return s, err
}

func (m *ClientManager) ActiveBubbles(ctx context.Context) ([]Bubble, error) {
	var snapshot []Bubble
	err := m.query(ctx, func() {
		snapshot = m.bubbles.ActiveSnapshot(m.opts.Clock())
	})
	return snapshot, err
}

// RoomHistory returns the room's history and false when the room is not
// tracked.
func (m *ClientManager) RoomHistory(ctx context.Context, roomID string) ([]RoomMessage, bool, error) {
	var history []RoomMessage
	var found bool
	err := m.query(ctx, func() {
		if _, found = m.rooms.Room(roomID); found {
			history = m.rooms.History(roomID)
		}
	})
	return history, found, err
}

func (m *ClientManager) Conversation(ctx context.Context, a, b string) ([]DirectMessage, error) {
	var log []DirectMessage
	err := m.query(ctx, func() {
		log = m.direct.Conversation(a, b)
	})
	return log, err
}

// isStopped reports whether err means the relay is no longer running.
func isStopped(err error) bool {
	return errors.Is(err, ErrRelayStopped)
}
