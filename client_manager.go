// client_manager.go
package main

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// ClientManager owns every connection and all relay state. Only the Run
// goroutine touches the maps; everything else talks to it over channels.
type ClientManager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	expired    chan string
	queries    chan func()
	done       chan struct{}

	presence *Presence
	bubbles  *BubbleStore
	rooms    *RoomDirectory
	direct   *DirectRouter

	opts     Options
	validate *validator.Validate
	log      *slog.Logger
}

// Options tunes the relay. Zero values fall back to defaults.
type Options struct {
	SweepInterval   time.Duration
	RoomIdleTTL     time.Duration
	SendBuffer      int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	Clock           func() time.Time
}

// Client represents a single WebSocket connection. participant is set by
// announce and only read or written on the manager goroutine.
type Client struct {
	id          string
	participant string
	socket      *websocket.Conn
	send        chan []byte
	manager     *ClientManager
}

// inboundFrame is a raw frame read from a client.
type inboundFrame struct {
	client *Client
	data   []byte
}

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
