// Package collab runs a live editing session over websockets. One Hub owns
// the store; every client message, HTTP request and background-decode
// completion is handled on the hub goroutine, so the store and the
// per-client engines never see concurrent access.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/haxtrace/haxtrace/backend-go/internal/engine"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
	"github.com/haxtrace/haxtrace/backend-go/internal/typeid"
)

// ErrStopped is returned by Do after the hub has stopped.
var ErrStopped = errors.New("hub stopped")

// Options configures a Hub.
type Options struct {
	// Width and Height are the viewport given to a client until it
	// reports its own size.
	Width, Height float64
	// Decode turns background data URLs into bitmaps. Nil disables
	// background images.
	Decode engine.Decoder
}

type inbound struct {
	client *Client
	msg    *Message
}

type execRequest struct {
	fn   func(*store.Store)
	done chan struct{}
}

type Hub struct {
	store     *store.Store
	opts      Options
	sessionID string
	images    *engine.ImageCache

	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	changed  bool

	register   chan *Client
	unregister chan *Client
	inbox      chan inbound
	exec       chan execRequest
	redraw     chan struct{}
	quit       chan struct{}
	done       chan struct{}
}

func NewHub(s *store.Store, opts Options) *Hub {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1280, 720
	}
	h := &Hub{
		store:      s,
		opts:       opts,
		sessionID:  typeid.NewSessionID(),
		clients:    make(map[string]*Client),
		presence:   NewPresenceManager(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan inbound, 64),
		exec:       make(chan execRequest),
		redraw:     make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if opts.Decode != nil {
		h.images = engine.NewImageCache(opts.Decode, h.requestRedraw)
	}
	s.Subscribe(func(c store.Change) {
		if c&(store.ChangeDocument|store.ChangeSelection|store.ChangeTool|store.ChangePrefs) != 0 {
			h.changed = true
		}
	})
	return h
}

// SessionID identifies this editing session.
func (h *Hub) SessionID() string { return h.sessionID }

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.inbox:
			h.handleMessage(in.client, in.msg)
		case req := <-h.exec:
			h.changed = false
			req.fn(h.store)
			close(req.done)
			if h.changed {
				h.refreshAll()
			}
		case <-h.redraw:
			h.refreshAll()
		case <-h.quit:
			h.shutdown()
			return
		}
	}
}

// Stop ends the event loop after flushing any open gesture to storage, and
// closes every client's send queue.
func (h *Hub) Stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
	<-h.done
}

func (h *Hub) shutdown() {
	h.store.EndGesture()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	slog.Info("hub stopped", "session", h.sessionID)
}

// Do runs fn on the hub goroutine with exclusive access to the store and
// waits for it to finish. Clients are refreshed if fn changed anything.
func (h *Hub) Do(ctx context.Context, fn func(*store.Store)) error {
	req := execRequest{fn: fn, done: make(chan struct{})}
	select {
	case h.exec <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrStopped
	}
	<-req.done
	return nil
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver queues a message from client for the event loop. It reports false
// once the hub has stopped.
func (h *Hub) Deliver(client *Client, msg *Message) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- inbound{client: client, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) requestRedraw() {
	select {
	case h.redraw <- struct{}{}:
	default:
	}
}

func (h *Hub) addClient(client *Client) {
	client.engine = engine.New(h.store, engine.NewRenderer(h.opts.Width, h.opts.Height, h.images))
	h.clients[client.ClientID] = client

	client.sendPayload(TypeWelcome, WelcomePayload{
		ClientID:    client.ClientID,
		SessionID:   h.sessionID,
		DisplayName: client.DisplayName,
	})
	if stateMsg := h.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}
	h.refresh(client)

	h.presence.Update(client.ClientID, PresencePayload{DisplayName: client.DisplayName, Tool: string(h.store.Tool())})
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcast(&Message{
		Type:     TypePresenceJoin,
		ClientID: client.ClientID,
		UserID:   client.UserID,
		Payload:  joinPayload,
	}, client.ClientID)

	slog.Info("client joined", "client", client.ClientID, "name", client.DisplayName)
}

func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client.ClientID]; !ok {
		return
	}
	delete(h.clients, client.ClientID)
	close(client.send)
	h.presence.Remove(client.ClientID)

	// A drag cut off by a disconnect still lands as one history entry.
	if client.engine.DraggingVertex() >= 0 {
		client.engine.PointerLeave()
		h.refreshAll()
	}

	leavePayload, _ := json.Marshal(PresenceLeavePayload{ClientID: client.ClientID, UserID: client.UserID})
	h.broadcast(&Message{
		Type:     TypePresenceLeave,
		ClientID: client.ClientID,
		UserID:   client.UserID,
		Payload:  leavePayload,
	}, "")

	slog.Info("client left", "client", client.ClientID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if _, ok := h.clients[sender.ClientID]; !ok {
		return
	}
	if msg.Type == TypePresenceUpdate {
		h.handlePresenceUpdate(sender, msg)
		return
	}

	h.changed = false
	if err := h.apply(sender, msg); err != nil {
		slog.Warn("rejected message", "type", msg.Type, "client", sender.ClientID, "error", err)
		sender.sendError(err.Error())
		return
	}
	if h.changed {
		h.refreshAll()
	} else {
		h.refresh(sender)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		sender.sendError("invalid presence payload")
		return
	}

	merged := h.presence.Update(sender.ClientID, presence)

	outPayload, _ := json.Marshal(merged)
	h.broadcast(&Message{
		Type:     TypePresenceUpdate,
		ClientID: sender.ClientID,
		UserID:   sender.UserID,
		Payload:  outPayload,
	}, sender.ClientID)
}

// refresh sends client its current frame and state.
func (h *Hub) refresh(client *Client) {
	client.Send(&Message{Type: TypeFrame, Payload: json.RawMessage(client.engine.Render())})
	client.Send(&Message{Type: TypeState, Payload: json.RawMessage(client.engine.State())})
}

func (h *Hub) refreshAll() {
	for _, c := range h.clients {
		h.refresh(c)
	}
}

func (h *Hub) broadcast(msg *Message, excludeClientID string) {
	for _, c := range h.clients {
		if c.ClientID != excludeClientID {
			c.Send(msg)
		}
	}
}
