package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"tipchain/core/events"
	"tipchain/observability"
)

const wsWriteTimeout = 10 * time.Second

// streamFilter narrows the event stream. Empty fields match everything.
type streamFilter struct {
	types   map[string]struct{}
	account string
}

func parseStreamFilter(r *http.Request) (streamFilter, error) {
	filter := streamFilter{}
	for _, raw := range r.URL.Query()["type"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				if filter.types == nil {
					filter.types = make(map[string]struct{})
				}
				filter.types[part] = struct{}{}
			}
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("account")); raw != "" {
		addr, err := parseAddress("account", raw)
		if err != nil {
			return filter, err
		}
		filter.account = addr.String()
	}
	return filter, nil
}

func (f streamFilter) match(env events.Envelope) bool {
	if env.Event == nil {
		return false
	}
	if f.types != nil {
		if _, ok := f.types[env.Event.Type]; !ok {
			return false
		}
	}
	if f.account != "" {
		attrs := env.Event.Attributes
		if attrs["tipper"] != f.account && attrs["artist"] != f.account && attrs["owner"] != f.account {
			return false
		}
	}
	return true
}

// streamEvents pushes ledger events to a websocket client as JSON envelopes.
func (a *api) streamEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStreamFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	metrics := observability.Events()
	metrics.StreamOpened()
	defer metrics.StreamClosed()

	// The client never sends; CloseRead cancels ctx once it disconnects.
	ctx := conn.CloseRead(r.Context())
	if err := a.pumpEvents(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			a.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (a *api) pumpEvents(ctx context.Context, conn *websocket.Conn, filter streamFilter) error {
	updates, cancel := a.hub.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(env) {
				continue
			}
			if err := writeEnvelope(ctx, conn, env); err != nil {
				return err
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
