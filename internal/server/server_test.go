package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacebot-echo-show/internal/config"
	"spacebot-echo-show/internal/directive"
	"spacebot-echo-show/internal/prompt"
	"spacebot-echo-show/internal/turn"
	"spacebot-echo-show/internal/types"
	"spacebot-echo-show/internal/webhook"
)

type fakeTurner struct {
	calls   []turn.Request
	result  turn.Result
	err     error
	hasDead bool
}

func (f *fakeTurner) HandleTurn(ctx context.Context, req turn.Request) (turn.Result, error) {
	f.calls = append(f.calls, req)
	_, f.hasDead = ctx.Deadline()
	return f.result, f.err
}

var configured = config.Settings{
	BaseURL:            "https://spacebot.test",
	ConversationPrefix: config.DefaultConversationPrefix,
	PollInterval:       config.DefaultPollInterval,
	MaxWait:            config.DefaultMaxWait,
}

func postTurn(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, types.TurnResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/turn", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.Router().ServeHTTP(rec, req)

	var resp types.TurnResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	}
	return rec, resp
}

func newTestServer(settings config.Settings, ft *fakeTurner) *Server {
	return NewServer(config.Server{AllowedOrigin: "*"}, settings, ft, nil)
}

func sampleDirective() *directive.Directive {
	return &directive.Directive{Template: directive.TemplateContentList, Title: "Now", Items: []string{"A"}}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(configured, &fakeTurner{}).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTurnWithVisualDevice(t *testing.T) {
	ft := &fakeTurner{result: turn.Result{ConversationID: "echo_show:abc", SpeechText: "Here you go.", Directive: sampleDirective()}}
	s := newTestServer(configured, ft)

	rec, resp := postTurn(t, s, `{"appId":"a","userId":"u","deviceId":"d","requestId":"r1","utterance":"show list","deviceSupportsVisualRendering":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Here you go.", resp.SpeechText)
	assert.Equal(t, "Here you go.", resp.CardText)
	assert.Equal(t, sampleDirective(), resp.Directive)
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, "echo_show:abc", resp.ConversationID)

	require.Len(t, ft.calls, 1)
	assert.Equal(t, turn.Request{AppID: "a", UserID: "u", DeviceID: "d", RequestID: "r1", Utterance: "show list"}, ft.calls[0])
	assert.True(t, ft.hasDead, "turn must run under a deadline")
}

func TestTurnDropsDirectiveForVoiceOnlyDevice(t *testing.T) {
	ft := &fakeTurner{result: turn.Result{SpeechText: "Here you go.", Directive: sampleDirective()}}
	rec, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"show list","deviceSupportsVisualRendering":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, resp.Directive)
	assert.NotContains(t, rec.Body.String(), "directive")
}

func TestTurnGeneratesRequestID(t *testing.T) {
	ft := &fakeTurner{result: turn.Result{SpeechText: "ok"}}
	_, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"hi"}`)
	require.Len(t, ft.calls, 1)
	assert.NotEmpty(t, ft.calls[0].RequestID)
	assert.Equal(t, ft.calls[0].RequestID, resp.RequestID)
}

func TestTurnNotConfigured(t *testing.T) {
	ft := &fakeTurner{}
	rec, resp := postTurn(t, newTestServer(config.Settings{}, ft), `{"utterance":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notConfiguredSpeech, resp.SpeechText)
	assert.Empty(t, ft.calls, "no network I/O when not configured")
}

func TestTurnBlankUtterance(t *testing.T) {
	ft := &fakeTurner{}
	_, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"   "}`)
	assert.Equal(t, repromptSpeech, resp.SpeechText)
	assert.Empty(t, ft.calls)
}

func TestTurnFailureBecomesApology(t *testing.T) {
	ft := &fakeTurner{
		result: turn.Result{ConversationID: "echo_show:abc"},
		err:    errors.Join(errors.New("send utterance"), &webhook.TransportError{Op: "send", StatusCode: 500}),
	}
	rec, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"hi","deviceSupportsVisualRendering":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, apologySpeech, resp.SpeechText)
	assert.Equal(t, apologySpeech, resp.CardText)
	assert.Nil(t, resp.Directive)
	assert.Equal(t, "echo_show:abc", resp.ConversationID)
}

func TestTurnEmptySpeechFallback(t *testing.T) {
	ft := &fakeTurner{result: turn.Result{SpeechText: ""}}
	_, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"hi"}`)
	assert.Equal(t, noAnswerSpeech, resp.SpeechText)
}

func TestTurnTimedOutFlagPassedThrough(t *testing.T) {
	ft := &fakeTurner{result: turn.Result{SpeechText: "still working", TimedOut: true}}
	_, resp := postTurn(t, newTestServer(configured, ft), `{"utterance":"hi"}`)
	assert.True(t, resp.TimedOut)
}

func TestTurnInvalidJSON(t *testing.T) {
	rec, _ := postTurn(t, newTestServer(configured, &fakeTurner{}), `{"utterance":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())
}

func newOrchestrator(t *testing.T, settings config.Settings, backend turn.Backend) *turn.Orchestrator {
	t.Helper()
	builder, err := prompt.NewBuilder()
	require.NoError(t, err)
	extractor, err := directive.NewExtractor(nil)
	require.NoError(t, err)
	return turn.New(settings, backend, builder, extractor, nil)
}

func TestRespondEndToEndAgainstWebhook(t *testing.T) {
	reply := "Sure.\n```json\n" +
		`{"echo_show":{"template":"content_list_v1","title":"Today","items":["Standup"]}}` +
		"\n```"
	body, err := json.Marshal(map[string]any{
		"messages": []map[string]string{{"type": "text", "content": reply}},
	})
	require.NoError(t, err)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write(body)
	}))
	defer backend.Close()

	settings := config.Settings{
		BaseURL:            backend.URL,
		ConversationPrefix: "echo_show",
		PollInterval:       time.Millisecond,
		MaxWait:            time.Second,
	}
	orch := newOrchestrator(t, settings, webhook.NewClient(settings, webhook.WithHTTPClient(backend.Client())))
	s := NewServer(config.Server{AllowedOrigin: "*"}, settings, orch, nil)

	resp := s.Respond(context.Background(), types.TurnRequest{Utterance: "agenda", DeviceSupportsVisualRendering: true, RequestID: "r"})
	assert.Equal(t, "Sure.", resp.SpeechText)
	require.NotNil(t, resp.Directive)
	assert.Equal(t, "Today", resp.Directive.Title)
	assert.False(t, resp.TimedOut)
}
