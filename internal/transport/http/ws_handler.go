package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"live-session-service/internal/app"
)

// WSHandler upgrades clients to websockets subscribed to one session channel.
// The socket is a pure event feed: mutations go through the REST API, and a
// client connected after an event was published never sees it.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS wires an upgraded connection into the session's event fan-out.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(event.Type()), Payload: event}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-writerDone:
				return
			case <-closeSignals:
				return
			}
		}
	}()

	// A send must never block on a full buffer once the writer has died,
	// or the read loop wedges and leaks the subscription.
	sendOrDrop := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	if sendOrDrop(outboundMessage[any]{Type: "subscribed", Payload: map[string]string{"sessionId": sessionID}}) {
	readLoop:
		for {
			var inbound struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			switch inbound.Type {
			case "ping":
				if !sendOrDrop(outboundMessage[any]{Type: "pong", Payload: nil}) {
					break readLoop
				}
			default:
				if !sendOrDrop(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}) {
					break readLoop
				}
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
