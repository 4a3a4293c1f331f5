package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dasmlab/aarogya/pkg/catalog"
	"github.com/dasmlab/aarogya/pkg/generate"
	"github.com/dasmlab/aarogya/pkg/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type prefixTranslator struct {
	calls atomic.Int32
}

func (p *prefixTranslator) Translate(ctx context.Context, text string, src, tgt catalog.Code) (string, error) {
	p.calls.Add(1)
	return string(tgt) + ":" + text, nil
}

type fixedLoaded []catalog.Direction

func (f fixedLoaded) Loaded() []catalog.Direction { return f }

func newTestServer(t *testing.T, gen service.Generator) (*httptest.Server, *prefixTranslator) {
	t.Helper()
	tr := &prefixTranslator{}
	o := service.NewOrchestrator(catalog.Default(), tr, gen, service.WithLogger(quietLogger()))
	loaded := fixedLoaded{{Source: "hi", Target: "en"}}
	srv := httptest.NewServer(NewHTTPServer(o, loaded, quietLogger(), 0).Handler())
	t.Cleanup(srv.Close)
	return srv, tr
}

func answering(answer string) service.Generator {
	return service.GeneratorFunc(func(ctx context.Context, p string, cfg generate.Config) (string, error) {
		return answer, nil
	})
}

func postChat(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestChatSuccess(t *testing.T) {
	srv, _ := newTestServer(t, answering("See a doctor if it persists."))

	resp, body := postChat(t, srv, `{"text":"I have a fever","lang":"en"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "en", body["lang"])
	assert.Equal(t, "See a doctor if it persists.", body["answer"])
	assert.Equal(t, map[string]interface{}{"normalized_en": "I have a fever"}, body["debug"])
	assert.NotContains(t, body, "warn")
}

func TestChatDefaultsToEnglish(t *testing.T) {
	srv, tr := newTestServer(t, answering("ok"))

	resp, body := postChat(t, srv, `{"text":"hello"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "en", body["lang"])
	assert.Equal(t, int32(0), tr.calls.Load())
}

func TestChatTranslatesBothWays(t *testing.T) {
	srv, tr := newTestServer(t, answering("answer"))

	resp, body := postChat(t, srv, `{"text":"question","lang":"PA"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pa", body["lang"])
	assert.Equal(t, "pa:answer", body["answer"])
	assert.Equal(t, map[string]interface{}{"normalized_en": "en:question"}, body["debug"])
	assert.Equal(t, int32(2), tr.calls.Load())
}

func TestChatSoftFailure(t *testing.T) {
	var calls atomic.Int32
	gen := service.GeneratorFunc(func(ctx context.Context, p string, cfg generate.Config) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("sampling unstable")
		}
		return "fallback answer", nil
	})
	srv, _ := newTestServer(t, gen)

	resp, body := postChat(t, srv, `{"text":"I have a fever","lang":"en"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "fallback answer", body["answer"])
	assert.Contains(t, body["warn"], "sampling unstable")
	assert.NotContains(t, body, "debug")
}

func TestChatHardFailure(t *testing.T) {
	gen := service.GeneratorFunc(func(ctx context.Context, p string, cfg generate.Config) (string, error) {
		return "", errors.New("engine down")
	})
	srv, _ := newTestServer(t, gen)

	resp, body := postChat(t, srv, `{"text":"I have a fever","lang":"en"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	assert.Contains(t, body["error"], "engine down")
	assert.NotContains(t, body, "answer")
}

func TestChatValidation(t *testing.T) {
	var calls atomic.Int32
	gen := service.GeneratorFunc(func(ctx context.Context, p string, cfg generate.Config) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	srv, tr := newTestServer(t, gen)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty text", `{"text":"","lang":"en"}`, "Empty text"},
		{"blank text", `{"text":"   ","lang":"hi"}`, "Empty text"},
		{"unsupported", `{"text":"hello","lang":"fr"}`, "Unsupported lang 'fr'. Use one of: [en hi pa]"},
		{"bad json", `{"text":`, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postChat(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, map[string]interface{}{"error": tt.want}, body)
		})
	}

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int32(0), tr.calls.Load())
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]interface{}{"en": "English", "hi": "Hindi", "pa": "Punjabi"}, body["langs"])
	assert.Equal(t, []interface{}{"hi->en"}, body["translators"])
}

func TestLanguages(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))

	resp, err := http.Get(srv.URL + "/languages")
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body["languages"], 3)
	assert.ElementsMatch(t, []interface{}{"en->hi", "en->pa", "hi->en", "pa->en"}, body["directions"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, answering("x"))
	postChat(t, srv, `{"text":"hello","lang":"en"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "aarogya_chat_requests_total")
}
