package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"assessment-service/internal/app"
	"assessment-service/internal/avatar"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func TestWebSocketAssessmentFlow(t *testing.T) {
	service, _ := newTestService()
	server := newTestServer(service)
	defer server.Close()

	conn := dial(t, server, "u1", "lesson-1")
	defer conn.Close()

	var gate struct {
		CanStart bool `json:"canStart"`
		Allowed  int  `json:"allowed"`
	}
	readInto(t, conn, "gate", &gate)
	if !gate.CanStart || gate.Allowed != 2 {
		t.Fatalf("unexpected gate %+v", gate)
	}

	send(t, conn, "start", map[string]any{"panel": map[string]any{"x": 400, "y": 100, "width": 300, "height": 200}})
	var view app.SessionView
	readInto(t, conn, "session", &view)
	if len(view.Questions) != 3 || view.Submitted {
		t.Fatalf("unexpected session view %+v", view)
	}

	// The avatar perches left of the panel once the session starts.
	readMatching(t, conn, func(msg wsMessage) bool {
		if msg.Type != "avatar" {
			return false
		}
		var st avatar.State
		_ = json.Unmarshal(msg.Payload, &st)
		return st.Mode == avatar.ModeAssessment && st.Target == avatar.Vec2{X: 304, Y: 100}
	})

	for i := 0; i < 3; i++ {
		send(t, conn, "answer", map[string]any{"index": i, "option": i})
		var answered answeredPayload
		readInto(t, conn, "answered", &answered)
		if !answered.Correct || answered.Index != i {
			t.Fatalf("unexpected answered %+v", answered)
		}
	}

	send(t, conn, "submit", nil)
	var result struct {
		Result struct {
			Score  int  `json:"score"`
			Total  int  `json:"total"`
			Passed bool `json:"passed"`
		} `json:"result"`
		Record domain.AttemptRecord `json:"record"`
	}
	readInto(t, conn, "result", &result)
	if result.Result.Score != 3 || result.Result.Total != 3 || !result.Result.Passed {
		t.Fatalf("unexpected result %+v", result.Result)
	}
	if result.Record.ID == 0 {
		t.Fatalf("expected persisted record, got %+v", result.Record)
	}

	send(t, conn, "answer", map[string]any{"index": 0, "option": 1})
	var errMsg errorPayload
	readInto(t, conn, "error", &errMsg)
	if errMsg.Code != "submitted" {
		t.Fatalf("expected submitted error, got %+v", errMsg)
	}
}

func TestWebSocketAttemptLimit(t *testing.T) {
	service, store := newTestService(app.WithDefaultAllowedAttempts(1))
	if _, err := store.AppendAttemptRecord(context.Background(), domain.AttemptRecord{UserID: "u1", LessonID: "lesson-1", TotalQuestions: 3}); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	server := newTestServer(service)
	defer server.Close()

	conn := dial(t, server, "u1", "lesson-1")
	defer conn.Close()

	var gate struct {
		CanStart bool `json:"canStart"`
		Taken    int  `json:"taken"`
	}
	readInto(t, conn, "gate", &gate)
	if gate.CanStart || gate.Taken != 1 {
		t.Fatalf("expected closed gate, got %+v", gate)
	}

	send(t, conn, "start", nil)
	var errMsg errorPayload
	readInto(t, conn, "error", &errMsg)
	if errMsg.Code != "attempt_limit" {
		t.Fatalf("expected attempt_limit, got %+v", errMsg)
	}

	send(t, conn, "request", nil)
	var req domain.AttemptRequest
	readInto(t, conn, "request", &req)
	if req.Status != domain.RequestPending || req.LessonID != "lesson-1" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestWebSocketRequiresSessionBeforeAnswer(t *testing.T) {
	service, _ := newTestService()
	server := newTestServer(service)
	defer server.Close()

	conn := dial(t, server, "u1", "lesson-1")
	defer conn.Close()

	send(t, conn, "answer", map[string]any{"index": 0, "option": 0})
	var errMsg errorPayload
	readInto(t, conn, "error", &errMsg)
	if errMsg.Code != "no_session" {
		t.Fatalf("expected no_session, got %+v", errMsg)
	}

	send(t, conn, "dance", nil)
	readInto(t, conn, "error", &errMsg)
	if errMsg.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", errMsg)
	}
}

func TestWebSocketDisconnectDropsSession(t *testing.T) {
	service, store := newTestService()
	server := newTestServer(service)
	defer server.Close()

	conn := dial(t, server, "u1", "lesson-1")
	send(t, conn, "start", nil)
	var view app.SessionView
	readInto(t, conn, "session", &view)
	send(t, conn, "answer", map[string]any{"index": 0, "option": 0})
	conn.Close()

	// A fresh session can open once the server noticed the disconnect.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := service.StartSession(context.Background(), app.StartRequest{UserID: "u1", LessonID: "lesson-1", Language: "en"})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session was not released: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	n, _ := store.CountAttempts(context.Background(), "u1", "lesson-1")
	if n != 0 {
		t.Fatalf("abandoned session must not count, got %d", n)
	}
}

func TestWebSocketMissingParams(t *testing.T) {
	service, _ := newTestService()
	handler := NewWSHandler(service, AvatarSettings{}, "en", nil)

	rec := httptest.NewRecorder()
	handler.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws?userId=u1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(service *app.AssessmentService) *httptest.Server {
	ws := NewWSHandler(service, AvatarSettings{FPS: 50}, "en", nil)
	router := NewRouter(&Container{Service: service, WS: ws, Auth: NewAuthenticator("test-secret")})
	return httptest.NewServer(router)
}

func dial(t *testing.T, server *httptest.Server, userID, lessonID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + fmt.Sprintf("/ws?userId=%s&lessonId=%s&lang=en", userID, lessonID)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readMatching skips messages (mostly avatar frames) until match accepts one.
func readMatching(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func readInto(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	msg := readMatching(t, conn, func(m wsMessage) bool { return m.Type == typ })
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		t.Fatalf("decode %s: %v", typ, err)
	}
}

func newTestService(opts ...app.Option) (*app.AssessmentService, *memory.Store) {
	store := memory.NewStore()
	base := []app.Option{app.WithRandSource(7)}
	service := app.NewAssessmentService(store, contentRepo(), memory.NewSessionStore(), append(base, opts...)...)
	return service, store
}

func contentRepo() *memory.ContentRepository {
	lessons := make([]domain.Lesson, 0, 2)
	for _, id := range []string{"lesson-1", "lesson-2"} {
		lesson := domain.Lesson{ID: id, Language: "en"}
		for i := 0; i < 3; i++ {
			lesson.Questions = append(lesson.Questions, domain.Question{
				ID:                 fmt.Sprintf("%s-q%d", id, i),
				Prompt:             fmt.Sprintf("%s q%d", id, i),
				Options:            []string{"a", "b", "c", "d"},
				CorrectOptionIndex: i,
			})
		}
		lessons = append(lessons, lesson)
	}
	return memory.NewContentRepository(memory.NewStaticLessonLoader(lessons), time.Minute)
}
