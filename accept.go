package corehttp

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/domsolutions/corehttp/internal/h1"
	"github.com/domsolutions/corehttp/internal/h2conn"
	"github.com/domsolutions/corehttp/internal/hpack"
	"github.com/domsolutions/corehttp/internal/router"
	"github.com/domsolutions/corehttp/internal/scheduler"
)

// taskTracker retains every scheduler.Task submitted on behalf of one
// connection so they can all be cancelled together once that connection
// closes, per spec §4.10's connection-close cancellation contract.
// Cancelling an already-finished task is harmless (execute() only
// consults the cancelled flag before running it), so tasks are never
// individually removed — the tracker's lifetime is bounded by the
// connection's.
type taskTracker struct {
	mu    sync.Mutex
	tasks []*scheduler.Task
}

func (t *taskTracker) add(task *scheduler.Task) {
	t.mu.Lock()
	t.tasks = append(t.tasks, task)
	t.mu.Unlock()
}

func (t *taskTracker) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, task := range t.tasks {
		task.Cancel()
	}
}

// Serve runs the accept loop on ln until it returns an error (e.g. the
// listener was closed by Shutdown). Each accepted connection is handed to
// its own goroutine, matching the teacher's one-goroutine-per-connection
// dispatch; request handling itself is admission-controlled by
// s.Scheduler.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		s.Metrics.ActiveConns.Inc()
		go func() {
			defer s.Metrics.ActiveConns.Dec()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.NewString()
	logger := s.Logger.With(zap.String("conn_id", connID))

	_, isTLS := conn.(*tls.Conn)

	br := bufio.NewReaderSize(conn, 16*1024)
	conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	proto, err := router.Classify(br, len(h2conn.Preface))
	conn.SetReadDeadline(time.Time{})
	if err != nil && err != io.EOF {
		logger.Debug("protocol classification failed", zap.Error(err))
		return
	}

	if !s.rateLimitAllow(clientID(conn)) {
		logger.Debug("connection rate-limited")
		return
	}

	switch proto {
	case router.ProtoHTTP2:
		s.serveHTTP2(conn, br, isTLS, logger)
	default:
		s.serveHTTP1(conn, br, isTLS, logger)
	}
}

func clientID(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *Server) rateLimitAllow(id string) bool {
	if !s.Config.RateLimitEnabled {
		return true
	}
	res := s.RateLimiter.TryAcquire(id)
	if !res.Allowed {
		s.Metrics.RateLimitedTotal.Inc()
	}
	return res.Allowed
}

// --- HTTP/2 ---------------------------------------------------------------

func (s *Server) serveHTTP2(conn net.Conn, br *bufio.Reader, isTLS bool, logger *zap.Logger) {
	rw := &bufReadWriteConn{br: br, conn: conn}
	tracker := &taskTracker{}
	h2 := h2conn.New(rw, h2conn.Config{
		Logger: logger,
		Handler: func(ctx context.Context, req *h2conn.Request, w h2conn.ResponseWriter) {
			s.dispatchH2(ctx, req, w, isTLS, conn, tracker)
		},
	})
	_ = h2.Serve(context.Background())
	tracker.cancelAll()
}

type bufReadWriteConn struct {
	br   *bufio.Reader
	conn net.Conn
}

func (b *bufReadWriteConn) Read(p []byte) (int, error)  { return b.br.Read(p) }
func (b *bufReadWriteConn) Write(p []byte) (int, error) { return b.conn.Write(p) }

func (s *Server) dispatchH2(ctx context.Context, req *h2conn.Request, w h2conn.ResponseWriter, isTLS bool, conn net.Conn, tracker *taskTracker) {
	creq := &Request{
		Headers:    make(map[string][]string),
		Body:       req.Body,
		RemoteAddr: conn.RemoteAddr().String(),
		TLS:        isTLS,
	}
	for _, f := range req.Headers {
		switch f.Name {
		case ":method":
			creq.Method = f.Value
		case ":path":
			if idx := strings.IndexByte(f.Value, '?'); idx >= 0 {
				creq.Path, creq.Query = f.Value[:idx], f.Value[idx+1:]
			} else {
				creq.Path = f.Value
			}
		case ":authority":
			creq.Host = f.Value
		default:
			creq.Headers[f.Name] = append(creq.Headers[f.Name], f.Value)
		}
	}

	rw := &h2ResponseWriter{w: w, status: 200, headers: map[string]string{}}

	task, err := s.Scheduler.Submit(func(taskCtx context.Context) {
		s.invokeHandler(taskCtx, creq, rw, isTLS)
		rw.flush(true)
	})
	if err != nil {
		rw.status = 503
		rw.flush(true)
		return
	}
	tracker.add(task)
}

type h2ResponseWriter struct {
	w          h2conn.ResponseWriter
	status     int
	headers    map[string]string
	headersSet bool
}

func (w *h2ResponseWriter) SetStatus(code int)          { w.status = code }
func (w *h2ResponseWriter) SetHeader(key, value string) { w.headers[key] = value }

func (w *h2ResponseWriter) Write(p []byte) (int, error) {
	if !w.headersSet {
		w.sendHeaders(false)
	}
	if err := w.w.WriteData(p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *h2ResponseWriter) sendHeaders(endStream bool) {
	w.headersSet = true
	fields := []hpack.HeaderField{{Name: ":status", Value: strconv.Itoa(w.status)}}
	for k, v := range w.headers {
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(k), Value: v})
	}
	w.w.WriteHeaders(fields, endStream)
}

func (w *h2ResponseWriter) flush(endStream bool) {
	if !w.headersSet {
		w.sendHeaders(endStream)
		return
	}
	if endStream {
		w.w.WriteData(nil, true)
	}
}

// --- HTTP/1.x ---------------------------------------------------------------

func (s *Server) serveHTTP1(conn net.Conn, br *bufio.Reader, isTLS bool, logger *zap.Logger) {
	bw := bufio.NewWriter(conn)
	cfg := router.DefaultKeepAliveConfig()
	cfg.Enabled = s.Config.KeepAliveEnabled
	if s.Config.KeepAliveTimeout > 0 {
		cfg.Timeout = s.Config.KeepAliveTimeout
	}
	if s.Config.KeepAliveMaxRequests > 0 {
		cfg.MaxRequests = s.Config.KeepAliveMaxRequests
	}

	tracker := &taskTracker{}
	router.ServeHTTP1(context.Background(), conn, br, cfg,
		func(ctx context.Context, req *h1.Request, _ []byte, conn net.Conn, keepAlive bool, meta router.KeepAliveMeta) bool {
			return s.dispatchH1(ctx, req, br, bw, conn, isTLS, keepAlive, meta, tracker)
		}, logger)
	tracker.cancelAll()
}

func (s *Server) dispatchH1(ctx context.Context, req *h1.Request, br *bufio.Reader, bw *bufio.Writer, conn net.Conn, isTLS, keepAlive bool, meta router.KeepAliveMeta, tracker *taskTracker) bool {
	if len(s.WSRoutes) > 0 && s.tryWebSocketUpgrade(ctx, req, br, bw, conn) {
		return false
	}

	bodyExpected := req.Method == "POST" || req.Method == "PUT" || req.Method == "PATCH"
	framing, declared, err := h1.DetermineBodyFraming(req, req.Minor == 0 && bodyExpected)
	if err != nil {
		writeH1Error(bw, 400, "Bad Request")
		return false
	}
	bodyReader, err := h1.BodyReader(br, framing, declared, s.Config.RequestBodyMaxBytes)
	if err != nil {
		writeH1Error(bw, 413, "Payload Too Large")
		return false
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		writeH1Error(bw, 400, "Bad Request")
		return false
	}

	path, query := req.Target, ""
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path, query = path[:idx], path[idx+1:]
	}
	host, _ := req.Get("Host")

	creq := &Request{
		Method:     req.Method,
		Path:       path,
		Query:      query,
		Host:       host,
		Headers:    make(map[string][]string),
		Body:       body,
		RemoteAddr: "",
		TLS:        isTLS,
	}
	for _, h := range req.Headers {
		creq.Headers[h.Name] = append(creq.Headers[h.Name], h.Value)
	}

	rw := &h1ResponseWriter{bw: bw, status: 200, headers: map[string]string{}}

	done := make(chan struct{})
	task, serr := s.Scheduler.Submit(func(taskCtx context.Context) {
		defer close(done)
		s.invokeHandler(taskCtx, creq, rw, isTLS)
	})
	if serr != nil {
		writeH1Error(bw, 503, "Service Unavailable")
		return false
	}
	tracker.add(task)
	<-done

	rw.flush(req.Major, req.Minor, keepAlive, meta)
	return true
}

func (s *Server) invokeHandler(ctx context.Context, req *Request, w ResponseWriter, isTLS bool) {
	ApplySecurityHeaders(w, isTLS, nil)

	if s.AuthConfig != nil {
		result := authenticateRequest(s.AuthConfig, req)
		if !result.Authenticated {
			w.SetHeader("WWW-Authenticate", `Basic realm="corehttp"`)
			w.SetStatus(401)
			w.Write([]byte("unauthorized\n"))
			return
		}
	}

	if len(s.Config.VirtualHosts) > 0 && s.staticFile(req, w) {
		return
	}
	if s.Handler != nil {
		s.Handler(ctx, req, w)
	}
}

// authenticateRequest extracts the Authorization/X-API-Key headers spec §6
// recognizes from req and delegates to Authenticate.
func authenticateRequest(cfg *AuthConfig, req *Request) AuthResult {
	var apiKey string
	if v := req.Headers["X-API-Key"]; len(v) > 0 {
		apiKey = v[0]
	}

	var basicUser, basicPass string
	var hasBasic bool
	if v := req.Headers["Authorization"]; len(v) > 0 {
		if u, p, ok := parseBasicAuth(v[0]); ok {
			basicUser, basicPass, hasBasic = u, p, true
		}
	}

	return Authenticate(cfg, apiKey, basicUser, basicPass, hasBasic)
}

// parseBasicAuth decodes an "Authorization: Basic <base64(user:pass)>"
// header value.
func parseBasicAuth(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	idx := strings.IndexByte(string(raw), ':')
	if idx < 0 {
		return "", "", false
	}
	return string(raw[:idx]), string(raw[idx+1:]), true
}

type h1ResponseWriter struct {
	bw         *bufio.Writer
	status     int
	headers    map[string]string
	body       []byte
}

func (w *h1ResponseWriter) SetStatus(code int)          { w.status = code }
func (w *h1ResponseWriter) SetHeader(key, value string) { w.headers[key] = value }
func (w *h1ResponseWriter) Write(p []byte) (int, error) {
	w.body = append(w.body, p...)
	return len(p), nil
}

func (w *h1ResponseWriter) flush(major, minor int, keepAlive bool, meta router.KeepAliveMeta) {
	status := w.status
	if status == 0 {
		status = 200
	}
	w.bw.WriteString("HTTP/" + strconv.Itoa(major) + "." + strconv.Itoa(minor) + " " + strconv.Itoa(status) + " " + statusText(status) + "\r\n")
	for k, v := range w.headers {
		w.bw.WriteString(k + ": " + v + "\r\n")
	}
	w.bw.WriteString("Content-Length: " + strconv.Itoa(len(w.body)) + "\r\n")
	if keepAlive {
		w.bw.WriteString("Connection: keep-alive\r\n")
		w.bw.WriteString("Keep-Alive: " + router.KeepAliveHeaderValue(meta) + "\r\n")
	} else {
		w.bw.WriteString("Connection: close\r\n")
	}
	w.bw.WriteString("\r\n")
	w.bw.Write(w.body)
	w.bw.Flush()
}

func writeH1Error(bw *bufio.Writer, status int, text string) {
	body := text
	bw.WriteString("HTTP/1.1 " + strconv.Itoa(status) + " " + text + "\r\n")
	bw.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	bw.WriteString("Connection: close\r\n\r\n")
	bw.WriteString(body)
	bw.Flush()
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 414:
		return "URI Too Long"
	case 429:
		return "Too Many Requests"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	}
	return "Unknown"
}
