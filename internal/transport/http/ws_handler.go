package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
	"interview-engine-service/internal/engine"
)

// EngineFactory builds a fresh engine for one candidate connection.
type EngineFactory func(candidateID string) *engine.Engine

type WSHandler struct {
	newEngine EngineFactory
	store     engine.SnapshotStore
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func NewWSHandler(factory EngineFactory, store engine.SnapshotStore, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		newEngine: factory,
		store:     store,
		log:       log.With().Str("component", "ws").Logger(),
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

type answerPayload struct {
	Text string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into an
// interview session. Passing a sessionId query parameter attempts to resume a
// persisted session; a missing or corrupt snapshot falls back to a fresh one.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	candidateID := r.URL.Query().Get("candidateId")
	resumeID := r.URL.Query().Get("sessionId")
	if candidateID == "" {
		http.Error(w, "missing candidateId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancelRun := context.WithCancel(r.Context())
	defer cancelRun()

	eng := h.newEngine(candidateID)
	defer eng.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	if resumeID != "" && h.store != nil {
		if err := h.resume(ctx, eng, resumeID, candidateID); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "session could not be resumed: " + err.Error()}}
		}
	}

	updates, cancelSub := eng.Subscribe()
	defer cancelSub()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(event.Type), Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if err := eng.Initialize(); err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	send <- outboundMessage[any]{Type: "snapshot", Payload: eng.Snapshot()}

	go eng.Run(ctx)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if err := eng.Start(ctx); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			if _, err := eng.Submit(ctx, payload.Text); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "pause":
			if err := eng.Pause(); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "resume":
			if err := eng.Resume(); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "state":
			send <- outboundMessage[any]{Type: "snapshot", Payload: eng.Snapshot()}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	cancelRun()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) resume(ctx context.Context, eng *engine.Engine, sessionID, candidateID string) error {
	record, err := h.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return err
	}
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("snapshot rejected")
		return err
	}
	if record.Session.CandidateID != candidateID {
		return errors.New("session belongs to another candidate")
	}
	return eng.Rehydrate(record)
}
