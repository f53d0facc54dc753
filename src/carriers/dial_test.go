package carriers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialClient(t *testing.T) {
	var gotForm map[string]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/call", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"to":            r.PostForm.Get("to"),
			"caller_id":     r.PostForm.Get("caller_id"),
			"websocket_url": r.PostForm.Get("websocket_url"),
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"call_id":"prov-42"}`))
	}))
	defer srv.Close()

	c := NewDialClient(srv.URL, "secret", nil)
	callID, err := c.Dial(context.Background(), "+919876543210", "+1 (800) 555-1234", "wss://core.example/carrier/telephony")
	require.NoError(t, err)

	assert.Equal(t, "prov-42", callID)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "+919876543210", gotForm["to"])
	assert.Equal(t, "5551234", gotForm["caller_id"])
	assert.Equal(t, "wss://core.example/carrier/telephony", gotForm["websocket_url"])
}

func TestDialClientProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDialClient(srv.URL, "secret", nil)
	_, err := c.Dial(context.Background(), "+919876543210", "5551234", "wss://x")
	assert.Error(t, err)
}
