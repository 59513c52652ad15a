package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotAlert(t *testing.T) {
	var gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/sendMessage", r.URL.Path)
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
	}))
	defer srv.Close()

	bot := NewBot("token", "-100123").WithBaseURL(srv.URL)
	require.NoError(t, bot.Alert(context.Background(), "receipt RCT-1 failed"))

	assert.Equal(t, "-100123", gotChat)
	assert.Equal(t, "receipt RCT-1 failed", gotText)
}

func TestBotReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewBot("token", "1").WithBaseURL(srv.URL).Alert(context.Background(), "x")
	assert.ErrorContains(t, err, "403")
}

func TestLogAlerter(t *testing.T) {
	logger, hook := test.NewNullLogger()
	require.NoError(t, LogAlerter{Logger: logger}.Alert(context.Background(), "disk full"))
	assert.Equal(t, "disk full", hook.LastEntry().Data["alert"])
}
