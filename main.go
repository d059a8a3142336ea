// main.go
// In main.go we wire everything together: load config, build the relay state,
// start the manager loop, and serve HTTP. Each WebSocket gets a client with a
// UUID, is registered with the manager, and gets its read/write goroutines.
// CheckOrigin is permissive; origin policy belongs to whatever fronts this.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (m *ClientManager) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := m.newClient(uuid.NewString())
	client.socket = conn
	if err := m.Register(client); err != nil {
		_ = conn.Close()
		return
	}

	go client.read()
	go client.write()
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		return exitConfig
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		return exitConfig
	}

	presence := NewPresence()
	bubbles := NewBubbleStore(afterFunc)
	rooms := NewRoomDirectory(presence, cfg.RoomHistorySize)
	direct := NewDirectRouter(presence, cfg.DirectLogEnabled)
	manager := NewClientManager(presence, bubbles, rooms, direct, cfg.managerOptions(), logger)
	geocoder := NewGeocoder(cfg.GeocoderURL, cfg.GeocoderKey, cfg.GeocoderRegion, cfg.GeocoderTimeout, logger)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go manager.Run(relayCtx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Addr, "error", err)
		return exitRuntime
	}
	srv := &http.Server{
		Handler:           newRouter(manager, geocoder, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()
	logger.Info("relay listening", "addr", ln.Addr().String(), "sweep_interval", cfg.SweepInterval)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"relay": func(ctx context.Context) error {
				stopRelay()
				select {
				case <-manager.Done():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	)

	code := <-wait
	logger.Info("relay exited", "code", code)
	if code != exitOK {
		return exitRuntime
	}
	return exitOK
}
