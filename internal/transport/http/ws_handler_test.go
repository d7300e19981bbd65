package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"psd-quiz-service/internal/app"
	"psd-quiz-service/internal/domain"
	"psd-quiz-service/internal/infra/memory"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.QuizService) {
	t.Helper()
	source := memory.NewStaticQuestionSource(map[string][]domain.Question{"psd-i": sampleBank()})
	service := app.NewQuizService(
		memory.NewQuestionBank(source, time.Minute),
		app.NewExamSessionStore(memory.NewKVStore(), ""),
		zerolog.Nop(),
		app.Options{BankID: "psd-i", TickInterval: time.Hour},
	)
	if err := service.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	server := httptest.NewServer(NewRouter(service, zerolog.Nop()))
	t.Cleanup(func() {
		server.Close()
		service.Close()
	})
	return server, service
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketExamFlow(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	initial := readState(t, conn, func(s domain.Snapshot) bool { return true })
	if initial.Screen != domain.ScreenLanding || initial.BankSize != 2 {
		t.Fatalf("unexpected initial state %+v", initial)
	}

	send(t, conn, "selectMode", map[string]any{"mode": "exam"})
	snap := readState(t, conn, func(s domain.Snapshot) bool { return s.Screen == domain.ScreenQuiz })
	if snap.Total != 2 || snap.Timer == nil || snap.Question == nil {
		t.Fatalf("unexpected exam state %+v", snap)
	}

	for i := 0; i < 2; i++ {
		send(t, conn, "answer", map[string]any{"answers": correctAnswers(snap.Question.Question)})
		send(t, conn, "next", nil)
		snap = readState(t, conn, func(s domain.Snapshot) bool {
			return s.Screen == domain.ScreenResults || s.CurrentIndex == i+1
		})
	}
	if snap.Screen != domain.ScreenResults || snap.Result == nil {
		t.Fatalf("expected results, got %+v", snap)
	}
	if snap.Result.Percentage != 100 || !snap.Result.Passed {
		t.Fatalf("unexpected result %+v", snap.Result)
	}
}

func TestWebSocketRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)
	readState(t, conn, func(s domain.Snapshot) bool { return true })

	send(t, conn, "selectMode", map[string]any{"mode": "speedrun"})
	payload := readError(t, conn)
	if payload.Message != "invalid payload" || len(payload.Fields) == 0 {
		t.Fatalf("expected validation error, got %+v", payload)
	}

	send(t, conn, "answer", map[string]any{"answers": []int{0}})
	if payload := readError(t, conn); payload.Message != domain.ErrNoActiveQuiz.Error() {
		t.Fatalf("expected no active quiz error, got %+v", payload)
	}

	send(t, conn, "teleport", nil)
	if payload := readError(t, conn); payload.Message != "unsupported message type" {
		t.Fatalf("expected unsupported type error, got %+v", payload)
	}

	// the connection survives rejected messages
	send(t, conn, "selectMode", map[string]any{"mode": "practice"})
	readState(t, conn, func(s domain.Snapshot) bool { return s.Screen == domain.ScreenRangeSelection })
}

func TestWebSocketClientsShareSession(t *testing.T) {
	server, _ := newTestServer(t)
	first := dial(t, server)
	second := dial(t, server)
	readState(t, first, func(s domain.Snapshot) bool { return true })
	readState(t, second, func(s domain.Snapshot) bool { return true })

	send(t, first, "selectMode", map[string]any{"mode": "practice"})
	send(t, first, "selectRange", map[string]any{"range": "all"})
	snap := readState(t, second, func(s domain.Snapshot) bool { return s.Screen == domain.ScreenQuiz })
	if snap.Mode != domain.ModePractice || snap.Total != 2 {
		t.Fatalf("unexpected shared state %+v", snap)
	}

	send(t, second, "checkAnswer", nil)
	snap = readState(t, first, func(s domain.Snapshot) bool { return s.Feedback != nil })
	if snap.Feedback.Correct {
		t.Fatalf("an unanswered question cannot be correct")
	}
}

func TestStateAndHealthEndpoints(t *testing.T) {
	server, service := newTestServer(t)
	if err := service.SelectMode(context.Background(), domain.ModeExam); err != nil {
		t.Fatalf("select exam: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.Screen != domain.ScreenQuiz || snap.Timer == nil || snap.Timer.Formatted != "60:00" {
		t.Fatalf("unexpected state %+v", snap)
	}

	health, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer health.Body.Close()
	body, _ := io.ReadAll(health.Body)
	if string(body) != "ok" {
		t.Fatalf("expected ok, got %q", body)
	}

	post, err := http.Post(server.URL+"/api/state", "application/json", nil)
	if err != nil {
		t.Fatalf("post state: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", post.StatusCode)
	}
}

func TestEnqueueGivesUpWhenWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage, 1)
	writerDone := make(chan struct{})
	msg := outboundMessage{Type: msgError, Payload: errorPayload{Message: "invalid payload"}}

	if !enqueue(send, writerDone, nil, msg) {
		t.Fatalf("expected the first message to be queued")
	}
	close(writerDone)

	result := make(chan bool, 1)
	go func() { result <- enqueue(send, writerDone, nil, msg) }()
	select {
	case ok := <-result:
		if ok {
			t.Fatalf("expected enqueue to fail once the writer exited")
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full buffer with no writer")
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	var msg wireMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readState skips messages until a state snapshot satisfies match.
func readState(t *testing.T, conn *websocket.Conn, match func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := readNext(t, conn)
		if msg.Type != "state" {
			continue
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if match(snap) {
			return snap
		}
	}
	t.Fatalf("no matching state received")
	return domain.Snapshot{}
}

func readError(t *testing.T, conn *websocket.Conn) errorPayload {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := readNext(t, conn)
		if msg.Type != "error" {
			continue
		}
		var payload errorPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		return payload
	}
	t.Fatalf("no error received")
	return errorPayload{}
}

func correctAnswers(question string) []int {
	for _, q := range sampleBank() {
		if q.Question == question {
			return q.CorrectIndices()
		}
	}
	return nil
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{
			Question: "Who is accountable for maximizing the value of the product?",
			Options: []domain.Option{
				{Text: "Scrum Master"},
				{Text: "Product Owner", IsCorrect: true},
				{Text: "Developers"},
			},
		},
		{
			Question: "Which are Scrum artifacts?",
			Options: []domain.Option{
				{Text: "Product Backlog", IsCorrect: true},
				{Text: "Burndown chart"},
				{Text: "Increment", IsCorrect: true},
			},
		},
	}
}
