package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatmemory/pkg/chatmemory"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/codec"
	"github.com/go-go-golems/chatmemory/pkg/chatmemory/repository"
	"github.com/go-go-golems/chatmemory/pkg/observability"
	"github.com/go-go-golems/chatmemory/pkg/persistence/chatstore"
)

func newTestServer(t *testing.T, backend chatstore.ListBackend, opts ...Option) *httptest.Server {
	t.Helper()
	a, err := chatstore.NewAdapter(backend)
	require.NoError(t, err)
	repo, err := repository.New(a, codec.New(codec.WithLogger(zerolog.Nop())), repository.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	ts := httptest.NewServer(New(repo, opts...).Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, u string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, u, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	out, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, out
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestServer(t, chatstore.NewInMemoryListBackend())
	convURL := ts.URL + "/v1/conversations/" + url.PathEscape("user/42")

	res, _ := doJSON(t, http.MethodPut, convURL, map[string]any{
		"messages": []map[string]any{
			{"role": "system", "text": "be brief"},
			{"role": "USER", "text": "hi", "metadata": map[string]any{"lang": "en"}},
			{"role": "ASSISTANT", "text": "hello"},
		},
	})
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body := doJSON(t, http.MethodGet, ts.URL+"/v1/conversations", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"conversation_ids":["user/42"]}`, string(body))

	res, body = doJSON(t, http.MethodGet, convURL, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{
		"conversation_id": "user/42",
		"messages": [
			{"role": "SYSTEM", "text": "be brief"},
			{"role": "USER", "text": "hi", "metadata": {"lang": "en"}},
			{"role": "ASSISTANT", "text": "hello"}
		]
	}`, string(body))

	res, body = doJSON(t, http.MethodPost, convURL+"/trim", map[string]any{"max_limit": 3, "delete_count": 2})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"before":3,"after":1,"removed":2,"trimmed":true}`, string(body))

	res, _ = doJSON(t, http.MethodDelete, convURL, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = doJSON(t, http.MethodDelete, convURL, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = doJSON(t, http.MethodGet, convURL, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"conversation_id":"user/42","messages":[]}`, string(body))
}

func TestConversationIDsWithPercentAreUsedVerbatim(t *testing.T) {
	for _, id := range []string{"x%41", "50%", "a/b%41", "100%25"} {
		t.Run(id, func(t *testing.T) {
			backend := chatstore.NewInMemoryListBackend()
			ts := newTestServer(t, backend)
			convURL := ts.URL + "/v1/conversations/" + url.PathEscape(id)

			res, _ := doJSON(t, http.MethodPut, convURL, map[string]any{
				"messages": []map[string]any{{"role": "USER", "text": "a"}, {"role": "USER", "text": "b"}},
			})
			require.Equal(t, http.StatusNoContent, res.StatusCode)

			keys, err := backend.Keys(context.Background(), chatstore.DefaultKeyPrefix)
			require.NoError(t, err)
			require.Equal(t, []string{chatstore.DefaultKeyPrefix + id}, keys)

			res, body := doJSON(t, http.MethodGet, convURL, nil)
			require.Equal(t, http.StatusOK, res.StatusCode)
			var got struct {
				ConversationID string               `json:"conversation_id"`
				Messages       []chatmemory.Message `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(body, &got))
			require.Equal(t, id, got.ConversationID)
			require.Len(t, got.Messages, 2)

			res, body = doJSON(t, http.MethodPost, convURL+"/trim", map[string]any{"max_limit": 2, "delete_count": 1})
			require.Equal(t, http.StatusOK, res.StatusCode)
			require.JSONEq(t, `{"before":2,"after":1,"removed":1,"trimmed":true}`, string(body))

			res, _ = doJSON(t, http.MethodDelete, convURL, nil)
			require.Equal(t, http.StatusNoContent, res.StatusCode)
			keys, err = backend.Keys(context.Background(), chatstore.DefaultKeyPrefix)
			require.NoError(t, err)
			require.Empty(t, keys)
		})
	}
}

func TestSaveMapsUnknownRolesToUser(t *testing.T) {
	ts := newTestServer(t, chatstore.NewInMemoryListBackend())
	convURL := ts.URL + "/v1/conversations/c1"

	res, _ := doJSON(t, http.MethodPut, convURL, map[string]any{
		"messages": []map[string]any{{"role": "tool", "text": "x"}, {"text": "no role"}},
	})
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body := doJSON(t, http.MethodGet, convURL, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{
		"conversation_id": "c1",
		"messages": [
			{"role": "USER", "text": "x"},
			{"role": "USER", "text": "no role"}
		]
	}`, string(body))
}

func TestErrorMapping(t *testing.T) {
	backend := chatstore.NewInMemoryListBackend()
	require.NoError(t, backend.Push(context.Background(), chatstore.DefaultKeyPrefix+"broken", "not json"))
	ts := newTestServer(t, backend)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"blank id", http.MethodGet, "/v1/conversations/%20", nil, http.StatusBadRequest, "invalid_argument"},
		{"missing messages", http.MethodPut, "/v1/conversations/c1", `{}`, http.StatusBadRequest, "invalid_argument"},
		{"null element", http.MethodPut, "/v1/conversations/c1", `{"messages":[null]}`, http.StatusBadRequest, "invalid_argument"},
		{"malformed body", http.MethodPut, "/v1/conversations/c1", `{"messages":`, http.StatusBadRequest, "invalid_request"},
		{"undecodable record", http.MethodGet, "/v1/conversations/broken", nil, http.StatusUnprocessableEntity, "decode_error"},
		{"trim without limit", http.MethodPost, "/v1/conversations/c1/trim", `{}`, http.StatusBadRequest, "invalid_request"},
		{"negative limit", http.MethodPost, "/v1/conversations/c1/trim", `{"max_limit":-1}`, http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, body := doJSON(t, tc.method, ts.URL+tc.path, tc.body)
			require.Equal(t, tc.status, res.StatusCode, string(body))
			var er errorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			require.Equal(t, tc.code, er.Code)
			require.NotEmpty(t, er.Error)
		})
	}
}

var errDown = stderrors.New("connection refused")

type downBackend struct{}

func (downBackend) Range(context.Context, string) ([]string, error) {
	return nil, errDown
}

func (downBackend) Push(context.Context, string, ...string) error {
	return errDown
}

func (downBackend) Delete(context.Context, string) error {
	return errDown
}

func (downBackend) Keys(context.Context, string) ([]string, error) {
	return nil, errDown
}

func (downBackend) Close() error {
	return nil
}

func TestStoreFailuresAreUnavailable(t *testing.T) {
	ts := newTestServer(t, downBackend{})
	res, body := doJSON(t, http.MethodGet, ts.URL+"/v1/conversations", nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.Contains(t, string(body), "connection refused")
}

func TestStatusFor(t *testing.T) {
	status, code := StatusFor(stderrors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "internal", code)

	status, _ = StatusFor(fmt.Errorf("wrapped: %w", chatmemory.WithKind(chatmemory.ErrStore, stderrors.New("x"))))
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, code = StatusFor(chatmemory.WithKind(chatmemory.ErrEncode, stderrors.New("bad metadata")))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "encode_error", code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewMetrics("chat_memory", reg).Trimmed(3)
	ts := newTestServer(t, chatstore.NewInMemoryListBackend(), WithMetrics(reg))

	res, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	res, body = doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "chat_memory_trimmed_messages_total 3")
}

func TestMetricsRouteIsOptional(t *testing.T) {
	ts := newTestServer(t, chatstore.NewInMemoryListBackend())
	res, _ := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	a, err := chatstore.NewAdapter(chatstore.NewInMemoryListBackend())
	require.NoError(t, err)
	repo, err := repository.New(a, nil, repository.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	srv := New(repo, WithLogger(zerolog.Nop()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, time.Second) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
