package corehttp

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domsolutions/corehttp/internal/config"
)

type recordingResponseWriter struct {
	status  int
	headers map[string]string
	body    []byte
}

func newRecordingResponseWriter() *recordingResponseWriter {
	return &recordingResponseWriter{headers: map[string]string{}}
}

func (w *recordingResponseWriter) SetStatus(code int)          { w.status = code }
func (w *recordingResponseWriter) SetHeader(key, value string) { w.headers[key] = value }
func (w *recordingResponseWriter) Write(p []byte) (int, error) {
	w.body = append(w.body, p...)
	return len(p), nil
}

func newTestServer(authCfg *AuthConfig) *Server {
	s := New(config.Default(), nil, func(ctx context.Context, req *Request, w ResponseWriter) {
		w.SetStatus(200)
		w.Write([]byte("ok"))
	})
	s.AuthConfig = authCfg
	return s
}

func TestInvokeHandlerRejectsMissingCredentials(t *testing.T) {
	s := newTestServer(&AuthConfig{
		Credentials: map[string]string{"alice": "hunter2"},
	})
	w := newRecordingResponseWriter()

	s.invokeHandler(context.Background(), &Request{Headers: map[string][]string{}}, w, false)

	require.Equal(t, 401, w.status)
	require.Equal(t, `Basic realm="corehttp"`, w.headers["WWW-Authenticate"])
}

func TestInvokeHandlerAcceptsValidBasicAuth(t *testing.T) {
	s := newTestServer(&AuthConfig{
		Credentials: map[string]string{"alice": "hunter2"},
	})
	w := newRecordingResponseWriter()

	creds := base64.StdEncoding.EncodeToString([]byte("alice:hunter2"))
	req := &Request{
		Headers: map[string][]string{"Authorization": {"Basic " + creds}},
	}
	s.invokeHandler(context.Background(), req, w, false)

	require.Equal(t, 200, w.status)
	require.Equal(t, "ok", string(w.body))
}

func TestInvokeHandlerAPIKeyTakesPrecedence(t *testing.T) {
	s := newTestServer(&AuthConfig{
		Credentials: map[string]string{"alice": "hunter2"},
		APIKeys:     map[string]struct{}{"secret-key": {}},
	})
	w := newRecordingResponseWriter()

	creds := base64.StdEncoding.EncodeToString([]byte("alice:wrong-password"))
	req := &Request{
		Headers: map[string][]string{
			"Authorization": {"Basic " + creds},
			"X-API-Key":     {"secret-key"},
		},
	}
	s.invokeHandler(context.Background(), req, w, false)

	require.Equal(t, 200, w.status)
}

func TestInvokeHandlerSkipsAuthWhenUnconfigured(t *testing.T) {
	s := newTestServer(nil)
	w := newRecordingResponseWriter()

	s.invokeHandler(context.Background(), &Request{Headers: map[string][]string{}}, w, false)

	require.Equal(t, 200, w.status)
}
