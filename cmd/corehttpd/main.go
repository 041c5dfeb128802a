// Command corehttpd is a demo entrypoint wiring corehttp.Server to a real
// net.Listener, with flag-based overrides of internal/config's defaults
// and a small fasthttp/router-backed ops mux for /health and
// /health/metrics (kept off the core request path per spec §9: the ops
// surface is administrative, not part of C5/C6).
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/domsolutions/corehttp"
	"github.com/domsolutions/corehttp/internal/config"
	"github.com/domsolutions/corehttp/internal/logging"
)

func main() {
	port := flag.Int("port", 8080, "listen port")
	opsPort := flag.Int("ops-port", 8081, "health/metrics listen port")
	webroot := flag.String("webroot", ".", "directory served for the demo handler")
	certFile := flag.String("tls-cert", "", "TLS certificate path (enables TLS)")
	keyFile := flag.String("tls-key", "", "TLS key path")
	autocertDomain := flag.String("autocert-domain", "", "domain to provision via ACME instead of -tls-cert/-tls-key")
	requestTimeout := flag.Duration("request-timeout", 5*time.Second, "handler deadline")
	flag.Parse()

	logger := logging.New(logging.DefaultOptions())
	defer logger.Sync()

	cfg := config.Default()
	cfg.Port = *port
	cfg.RequestTimeout = *requestTimeout
	cfg.VirtualHosts = map[string]string{"": *webroot}

	srv := corehttp.New(cfg, logger, demoHandler())

	go serveOps(*opsPort, srv, logger)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}

	if *autocertDomain != "" {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(*autocertDomain),
			Cache:      autocert.DirCache("autocert-cache"),
		}
		ln = tls.NewListener(ln, m.TLSConfig())
	} else if *certFile != "" && *keyFile != "" {
		cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	logger.Info("corehttpd listening", zap.Int("port", cfg.Port))
	if err := srv.Serve(ln); err != nil {
		logger.Warn("serve stopped", zap.Error(err))
	}
}

// demoHandler runs only when staticFile found nothing under -webroot for
// the request path; it exists so corehttpd is useful even against an
// empty directory.
func demoHandler() corehttp.Handler {
	return func(ctx context.Context, req *corehttp.Request, w corehttp.ResponseWriter) {
		w.SetStatus(404)
		w.SetHeader("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("not found: " + req.Method + " " + req.Path + "\n"))
	}
}

// serveOps runs a small fasthttp/router mux exposing the health and
// metrics endpoints spec §6 requires, deliberately isolated from the main
// request path: operational scraping must not compete with application
// traffic for the same scheduler/rate-limit budget.
func serveOps(port int, srv *corehttp.Server, logger *zap.Logger) {
	r := router.New()
	r.GET("/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(http.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/health/metrics", func(ctx *fasthttp.RequestCtx) {
		rec := &fasthttpResponseRecorder{ctx: ctx, header: make(http.Header)}
		srv.Metrics.Handler().ServeHTTP(rec, &http.Request{Method: "GET"})
	})

	addr := fmt.Sprintf(":%d", port)
	if err := fasthttp.ListenAndServe(addr, r.Handler); err != nil {
		logger.Error("ops listener stopped", zap.Error(err))
		os.Exit(1)
	}
}

// fasthttpResponseRecorder adapts fasthttp.RequestCtx to http.ResponseWriter
// so the stdlib-shaped promhttp handler can write through it.
type fasthttpResponseRecorder struct {
	ctx    *fasthttp.RequestCtx
	header http.Header
}

func (r *fasthttpResponseRecorder) Header() http.Header { return r.header }
func (r *fasthttpResponseRecorder) Write(p []byte) (int, error) {
	r.ctx.Write(p)
	return len(p), nil
}
func (r *fasthttpResponseRecorder) WriteHeader(statusCode int) {
	r.ctx.SetStatusCode(statusCode)
}
