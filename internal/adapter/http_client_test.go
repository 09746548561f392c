package adapter_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrochat/e2ee-client/internal/adapter"
	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/models"
)

func newTestClient(t *testing.T, handler http.Handler) adapter.DirectoryClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := adapter.NewHTTPDirectoryClient(adapter.HTTPClientConfig{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}, logger.Nop())
	client.SetToken("test-token")
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestHTTPClient_NoTokenRejectedLocally(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	client.SetToken("")

	_, err := client.FetchPeerKey(context.Background(), "user-1")
	require.ErrorIs(t, err, adapter.ErrNotAuthenticated)
	assert.Zero(t, hits.Load(), "request must not leave the process without a token")
}

func TestHTTPClient_FetchPeerKey(t *testing.T) {
	keyMaterial := []byte("peer key material 32 bytes long!")

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/keys/user-42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body models.KeyResponse
		body.Success = true
		body.Data.PublicKey = base64.StdEncoding.EncodeToString(keyMaterial)
		writeJSON(t, w, body)
	}))

	got, err := client.FetchPeerKey(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, keyMaterial, got)
}

func TestHTTPClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: adapter.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: adapter.ErrNotAuthenticated},
		{name: "server error", status: http.StatusInternalServerError, wantErr: adapter.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.FetchPeerKey(context.Background(), "user-1")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPClient_RetriesTransientThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body models.BackupCheckResponse
		body.Success = true
		body.Data.HasBackup = true
		writeJSON(t, w, body)
	}))

	has, err := client.CheckBackup(context.Background())
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPClient_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchPeerKey(context.Background(), "ghost")
	require.ErrorIs(t, err, adapter.ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPClient_PublishKey(t *testing.T) {
	keyMaterial := []byte("device key material 32 bytes ok!")

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/keys/upload", r.URL.Path)

		var req models.KeyUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString(keyMaterial), req.PublicKey)

		writeJSON(t, w, models.APIResponse{Success: true})
	}))

	require.NoError(t, client.PublishKey(context.Background(), keyMaterial))
}

func TestHTTPClient_BackupRoundTrip(t *testing.T) {
	var stored models.BackupBlob

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/keys/backup":
			var req models.BackupUploadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			stored = req.Backup
			writeJSON(t, w, models.APIResponse{Success: true})
		case r.Method == http.MethodGet && r.URL.Path == "/keys/backup":
			var body models.BackupResponse
			body.Success = true
			body.Data.Backup = stored
			writeJSON(t, w, body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	blob := models.BackupBlob{
		Salt:       "c2FsdA==",
		WrappedKey: "d3JhcHBlZA==",
		CreatedAt:  time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, client.UploadBackup(context.Background(), blob))

	got, err := client.FetchBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestHTTPClient_FetchMessageKey(t *testing.T) {
	keyMaterial := []byte("per message key material 32 b!!!")

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/conv-1/msg-7/decrypt-key", r.URL.Path)

		var body models.MessageKeyResponse
		body.Success = true
		body.Data.Key = base64.StdEncoding.EncodeToString(keyMaterial)
		writeJSON(t, w, body)
	}))

	got, err := client.FetchMessageKey(context.Background(), "conv-1", "msg-7")
	require.NoError(t, err)
	assert.Equal(t, keyMaterial, got)
}

func TestHTTPClient_UserIDFromToken(t *testing.T) {
	client := adapter.NewHTTPDirectoryClient(adapter.HTTPClientConfig{}, logger.Nop())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}).
		SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	client.SetToken(token)
	assert.Equal(t, "user-42", client.UserID())

	client.SetToken("not a jwt")
	assert.Empty(t, client.UserID())

	client.SetToken("")
	assert.Empty(t, client.UserID())
}

func TestHTTPClient_ServerErrorMessageSurfaced(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(t, w, models.APIResponse{Success: false, Error: "malformed key"})
	}))

	err := client.PublishKey(context.Background(), []byte("key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed key")
}
