package http

import (
	"encoding/json"
	"log"
	"net/http"

	"empathy-assessment-service/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler streams per-turn progress of one assessment to a websocket client.
type WSHandler struct {
	service  *app.AssessmentService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and forwards progress until the session ends
// or the client disconnects. Clients may send {"type":"cancel"} to stop the run.
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

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
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
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg := outboundMessage[any]{Type: "progress", Payload: update}
				if update.Status.Terminal() {
					report, _ := h.service.Report(sessionID)
					msg = outboundMessage[any]{Type: "report", Payload: report}
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply *outboundMessage[any]
		switch inbound.Type {
		case "cancel":
			var payload cancelPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					reply = &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid cancel payload"}}
					break
				}
			}
			if err := h.service.Cancel(sessionID, payload.Reason); err != nil {
				reply = &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			reply = &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if reply != nil && !deliver(send, writerDone, *reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}


// deliver queues msg for the writer, giving up once the writer has exited.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
