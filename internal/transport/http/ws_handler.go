package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"assessment-service/internal/app"
	"assessment-service/internal/assist"
	"assessment-service/internal/avatar"
	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
)

// AvatarSettings configures the per-connection feedback companion.
type AvatarSettings struct {
	FPS        int
	Easing     float64
	IdleAnchor avatar.Vec2
}

type WSHandler struct {
	service         *app.AssessmentService
	upgrader        websocket.Upgrader
	avatar          AvatarSettings
	defaultLanguage string
	log             *slog.Logger
}

func NewWSHandler(service *app.AssessmentService, settings AvatarSettings, defaultLanguage string, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		avatar:          settings,
		defaultLanguage: defaultLanguage,
		log:             log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Panel avatar.Rect `json:"panel"`
}

type indexPayload struct {
	Index int `json:"index"`
}

type answerPayload struct {
	Index  int `json:"index"`
	Option int `json:"option"`
}

type hoverPayload struct {
	Rect avatar.Rect `json:"rect"`
}

type answeredPayload struct {
	Index   int  `json:"index"`
	Option  int  `json:"option"`
	Correct bool `json:"correct"`
}

type hintPayload struct {
	Index int `json:"index"`
	assist.Hint
}

type eliminatedPayload struct {
	Index   int   `json:"index"`
	Options []int `json:"options"`
}

type resultPayload struct {
	Result scoring.Result       `json:"result"`
	Record domain.AttemptRecord `json:"record"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and drives one learner's
// assessment session plus its avatar over the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	lessonID := r.URL.Query().Get("lessonId")
	language := r.URL.Query().Get("lang")
	if userID == "" || lessonID == "" {
		http.Error(w, "missing userId or lessonId", http.StatusBadRequest)
		return
	}
	if language == "" {
		language = h.defaultLanguage
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	log := h.log.With("user", userID, "lesson", lessonID)

	send := make(chan outboundMessage[any], 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", "err", err)
				return
			}
		}
	}()

	// emit never blocks on a dead writer.
	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	machine := avatar.NewMachine(avatar.WithEasing(h.avatar.Easing), avatar.WithIdleAnchor(h.avatar.IdleAnchor))
	avatarCtx, stopAvatar := context.WithCancel(r.Context())
	avatarDone := make(chan struct{})
	go func() {
		defer close(avatarDone)
		var last *avatar.State
		machine.Run(avatarCtx, h.avatar.FPS, func(st avatar.State) {
			if last != nil && sameFrame(*last, st) {
				return
			}
			select {
			case send <- outboundMessage[any]{Type: "avatar", Payload: st}:
				last = &st
			default:
				// writer is behind; the next frame carries newer state anyway
			}
		})
	}()

	conv := &conversation{
		handler:  h,
		ctx:      r.Context(),
		userID:   userID,
		lessonID: lessonID,
		language: language,
		machine:  machine,
		emit:     emit,
		log:      log,
	}

	if gate, err := h.service.Gate(r.Context(), userID, lessonID); err != nil {
		emit(errorMessage(err))
	} else {
		emit(outboundMessage[any]{Type: "gate", Payload: gate})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !conv.handle(inbound) {
			break
		}
	}

	conv.end()
	stopAvatar()
	<-avatarDone
	close(send)
	<-writerDone
}

// conversation is the per-connection state. Only the read loop touches it.
type conversation struct {
	handler  *WSHandler
	ctx      context.Context
	userID   string
	lessonID string
	language string
	machine  *avatar.Machine
	emit     func(outboundMessage[any]) bool
	log      *slog.Logger

	sessionID   string
	unsubscribe func()
}

// handle processes one inbound message and reports whether to keep reading.
func (c *conversation) handle(in inboundMessage) bool {
	svc := c.handler.service
	switch in.Type {
	case "start":
		var p startPayload
		if !c.decode(in.Payload, &p) {
			return true
		}
		return c.start(p.Panel)
	case "navigate":
		var p indexPayload
		if !c.decode(in.Payload, &p) || !c.requireSession() {
			return true
		}
		if err := svc.Navigate(c.sessionID, p.Index); err != nil {
			return c.emit(errorMessage(err))
		}
		return c.emitView()
	case "answer":
		var p answerPayload
		if !c.decode(in.Payload, &p) || !c.requireSession() {
			return true
		}
		correct, err := svc.Answer(c.sessionID, p.Index, p.Option)
		if err != nil {
			return c.emit(errorMessage(err))
		}
		if !c.emit(outboundMessage[any]{Type: "answered", Payload: answeredPayload{Index: p.Index, Option: p.Option, Correct: correct}}) {
			return false
		}
		return c.emitView()
	case "hint":
		var p indexPayload
		if !c.decode(in.Payload, &p) || !c.requireSession() {
			return true
		}
		hint, err := svc.ToggleHint(c.sessionID, p.Index)
		if err != nil {
			return c.emit(errorMessage(err))
		}
		if !c.emit(outboundMessage[any]{Type: "hint", Payload: hintPayload{Index: p.Index, Hint: hint}}) {
			return false
		}
		return c.emitView()
	case "fiftyFifty":
		var p indexPayload
		if !c.decode(in.Payload, &p) || !c.requireSession() {
			return true
		}
		removed, err := svc.UseFiftyFifty(c.sessionID, p.Index)
		if err != nil {
			return c.emit(errorMessage(err))
		}
		if !c.emit(outboundMessage[any]{Type: "eliminated", Payload: eliminatedPayload{Index: p.Index, Options: removed}}) {
			return false
		}
		return c.emitView()
	case "hover":
		var p hoverPayload
		if !c.decode(in.Payload, &p) {
			return true
		}
		c.machine.OnOptionHover(p.Rect)
		return true
	case "leave":
		c.machine.OnOptionLeave()
		return true
	case "submit":
		if !c.requireSession() {
			return true
		}
		result, rec, err := svc.Submit(c.ctx, c.sessionID)
		if err != nil {
			return c.emit(errorMessage(err))
		}
		if !c.emit(outboundMessage[any]{Type: "result", Payload: resultPayload{Result: result, Record: rec}}) {
			return false
		}
		return c.emitView()
	case "close":
		c.end()
		return c.emitGate()
	case "request":
		req, err := svc.RequestAttempts(c.ctx, c.userID, c.lessonID)
		if err != nil {
			return c.emit(errorMessage(err))
		}
		return c.emit(outboundMessage[any]{Type: "request", Payload: req})
	default:
		return c.emit(errorMessage(errUnsupportedMessage))
	}
}

func (c *conversation) start(panel avatar.Rect) bool {
	if c.sessionID != "" {
		return c.emit(errorMessage(domain.ErrSessionAlreadyOpen))
	}
	svc := c.handler.service
	session, err := svc.StartSession(c.ctx, app.StartRequest{UserID: c.userID, LessonID: c.lessonID, Language: c.language})
	if errors.Is(err, domain.ErrAttemptLimitReached) {
		if !c.emit(errorMessage(err)) {
			return false
		}
		return c.emitGate()
	}
	if err != nil {
		return c.emit(errorMessage(err))
	}

	events, cancel, err := svc.Subscribe(session.ID())
	if err != nil {
		return c.emit(errorMessage(err))
	}
	c.sessionID = session.ID()
	c.unsubscribe = cancel
	go app.DriveAvatar(c.ctx, events, c.machine, panel)
	return c.emitView()
}

// end closes the open session, dropping unsubmitted work.
func (c *conversation) end() {
	if c.sessionID == "" {
		return
	}
	// Closing the session closes the event channel, which ends DriveAvatar
	// after it has applied the closed event.
	if err := c.handler.service.CloseSession(context.Background(), c.sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		c.log.Warn("close session failed", "session", c.sessionID, "err", err)
	}
	c.unsubscribe()
	c.sessionID = ""
	c.unsubscribe = nil
}

func (c *conversation) emitView() bool {
	session, err := c.handler.service.Session(c.sessionID)
	if err != nil {
		return c.emit(errorMessage(err))
	}
	return c.emit(outboundMessage[any]{Type: "session", Payload: session.View()})
}

func (c *conversation) emitGate() bool {
	gate, err := c.handler.service.Gate(c.ctx, c.userID, c.lessonID)
	if err != nil {
		return c.emit(errorMessage(err))
	}
	return c.emit(outboundMessage[any]{Type: "gate", Payload: gate})
}

func (c *conversation) requireSession() bool {
	if c.sessionID == "" {
		c.emit(errorMessage(domain.ErrSessionNotFound))
		return false
	}
	return true
}

func (c *conversation) decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.emit(errorMessage(fmt.Errorf("%w: invalid payload: %v", errBadRequest, err)))
		return false
	}
	return true
}

func sameFrame(a, b avatar.State) bool {
	if a.Emotion != b.Emotion || a.Mode != b.Mode || a.Position != b.Position || a.Target != b.Target {
		return false
	}
	if a.LookAt == nil || b.LookAt == nil {
		return a.LookAt == b.LookAt
	}
	return *a.LookAt == *b.LookAt
}
