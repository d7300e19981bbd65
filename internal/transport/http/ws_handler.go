package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"psd-quiz-service/internal/app"
	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/validator"
)

type WSHandler struct {
	service  *app.QuizService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

const (
	msgSelectMode  = "selectMode"
	msgSelectRange = "selectRange"
	msgAnswer      = "answer"
	msgNext        = "next"
	msgPrevious    = "previous"
	msgCheckAnswer = "checkAnswer"
	msgResetAnswer = "resetAnswer"
	msgFinish      = "finish"
	msgRestart     = "restart"
	msgNavigate    = "navigate"

	msgState = "state"
	msgError = "error"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectModePayload struct {
	Mode string `json:"mode" validate:"required,oneof=exam practice"`
}

type selectRangePayload struct {
	Range string `json:"range" validate:"required"`
}

type answerPayload struct {
	Answers []int `json:"answers" validate:"dive,gte=0"`
}

type navigatePayload struct {
	Screen string `json:"screen" validate:"required,oneof=landing about quiz"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// errInvalidPayload marks client input that failed to decode or validate.
type errInvalidPayload struct {
	fields map[string]string
}

func (e errInvalidPayload) Error() string { return "invalid payload" }

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// session. Every connection sees the same session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("conn_id", uuid.NewString()).Logger()
	log.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	defer log.Info().Msg("client disconnected")

	updates, cancel := h.service.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !enqueue(send, writerDone, closeSignals, outboundMessage{Type: msgState, Payload: snap}) {
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
		if err := h.dispatch(r.Context(), inbound); err != nil {
			log.Debug().Err(err).Str("type", inbound.Type).Msg("message rejected")
			if !enqueue(send, writerDone, nil, outboundMessage{Type: msgError, Payload: toErrorPayload(err)}) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It reports false once the writer has
// exited or stop is closed; a nil stop never fires.
func enqueue(send chan<- outboundMessage, writerDone, stop <-chan struct{}, msg outboundMessage) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	case <-stop:
		return false
	}
}

func (h *WSHandler) dispatch(ctx context.Context, msg inboundMessage) error {
	switch msg.Type {
	case msgSelectMode:
		var p selectModePayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return h.service.SelectMode(ctx, domain.Mode(p.Mode))
	case msgSelectRange:
		var p selectRangePayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return h.service.SelectRange(ctx, p.Range)
	case msgAnswer:
		var p answerPayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return h.service.Answer(ctx, p.Answers)
	case msgNext:
		return h.service.Next(ctx)
	case msgPrevious:
		return h.service.Previous(ctx)
	case msgCheckAnswer:
		_, err := h.service.CheckAnswer()
		return err
	case msgResetAnswer:
		return h.service.ResetAnswer(ctx)
	case msgFinish:
		return h.service.Finish(ctx)
	case msgRestart:
		return h.service.Restart(ctx)
	case msgNavigate:
		var p navigatePayload
		if err := decode(msg.Payload, &p); err != nil {
			return err
		}
		return h.service.Navigate(ctx, domain.Screen(p.Screen))
	default:
		return errors.New("unsupported message type")
	}
}

func decode(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidPayload{fields: map[string]string{"detail": err.Error()}}
	}
	if err := validator.Struct(dst); err != nil {
		return errInvalidPayload{fields: validator.TranslateErrors(err)}
	}
	return nil
}

func toErrorPayload(err error) errorPayload {
	var invalid errInvalidPayload
	if errors.As(err, &invalid) {
		return errorPayload{Message: invalid.Error(), Fields: invalid.fields}
	}
	return errorPayload{Message: err.Error()}
}
