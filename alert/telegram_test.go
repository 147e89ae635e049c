package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsNopWhenUnconfigured(t *testing.T) {
	t.Parallel()

	assert.IsType(t, Nop{}, New("", "123", nil))
	assert.IsType(t, Nop{}, New("token", "", nil))
	assert.IsType(t, &Telegram{}, New("token", "123", nil))
}

func TestTelegramSend(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("secret-token", "42", nil)
	tg.baseURL = srv.URL

	require.NoError(t, tg.Send(context.Background(), "trading halted"))
	assert.Equal(t, "/botsecret-token/sendMessage", gotPath)
	assert.Equal(t, "42", gotBody["chat_id"])
	assert.Equal(t, "trading halted", gotBody["text"])
}

func TestTelegramSendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram("tok", "0", nil)
	tg.baseURL = srv.URL

	err := tg.Send(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNopSend(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Nop{}.Send(context.Background(), "ignored"))
}
