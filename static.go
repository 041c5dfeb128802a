package corehttp

import (
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/domsolutions/corehttp/internal/compress"
)

// staticFile serves a file out of the webroot configured for req.Host in
// Config.VirtualHosts (falling back to the "" catch-all entry), applying
// the ETag (C7) and CompressionDecider (C8) pipeline from spec §4.7/§4.8.
// It reports whether it served the request; a false return means the
// caller's Handler should run instead (no matching virtual host, no file,
// or a directory).
func (s *Server) staticFile(req *Request, w ResponseWriter) bool {
	root, ok := s.Config.VirtualHosts[req.Host]
	if !ok {
		root, ok = s.Config.VirtualHosts[""]
	}
	if !ok || root == "" {
		return false
	}

	cleanPath, err := url.PathUnescape(req.Path)
	if err != nil {
		return false
	}
	cleanPath = filepath.Clean("/" + cleanPath)
	fullPath := filepath.Join(root, cleanPath)
	if !strings.HasPrefix(fullPath, filepath.Clean(root)+string(filepath.Separator)) && fullPath != filepath.Clean(root) {
		return false
	}

	fi, err := os.Stat(fullPath)
	if err != nil || fi.IsDir() {
		return false
	}

	etag, err := s.ETagCache.Get(fullPath)
	if err != nil {
		return false
	}

	for _, v := range req.Headers["If-None-Match"] {
		if v == etag {
			w.SetHeader("ETag", etag)
			w.SetStatus(304)
			return true
		}
	}

	mimeType := mime.TypeByExtension(filepath.Ext(fullPath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if threshold := s.Config.ZeroCopyThresholdBytes; threshold > 0 && fi.Size() >= threshold {
		return s.streamStaticFile(fullPath, etag, mimeType, fi, w)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false
	}

	acceptEncoding := ""
	if v := req.Headers["Accept-Encoding"]; len(v) > 0 {
		acceptEncoding = v[0]
	}

	decision := compress.Decide(acceptEncoding, mimeType, fi.Size(), fullPath, s.Config.CompressionMinBytes)
	body := data
	if decision.Compress {
		mtime := fi.ModTime().UnixNano()
		// one cache entry per (path, codec), so each encoding is kept apart
		key := fullPath + "\x00" + decision.Codec.String()
		if cached, ok := s.CompressionCache.Get(key, mtime, fi.Size()); ok {
			body = cached
		} else if compressed, err := s.CompressionCache.Coalesce(key, func() ([]byte, error) {
			return compress.Compress(decision.Codec, data)
		}); err == nil {
			s.CompressionCache.Put(key, compressed, mtime, fi.Size())
			body = compressed
		}
		if body != nil {
			w.SetHeader("Content-Encoding", decision.Codec.String())
		}
	}

	w.SetHeader("ETag", etag)
	w.SetHeader("Content-Type", mimeType)
	w.SetStatus(200)
	_, _ = w.Write(body)
	return true
}

const zeroCopyChunkBytes = 64 * 1024

// streamStaticFile serves files at or above Config.ZeroCopyThresholdBytes
// by copying directly from the open file in bounded chunks instead of
// buffering the whole file, per spec §2/§6's zero-copy requirement for
// large static responses. Compression is skipped for these responses
// since CompressionDecider operates on an in-memory buffer; caching a
// blob this large would also defeat CompressionCache's own size cap.
func (s *Server) streamStaticFile(path, etag, mimeType string, fi os.FileInfo, w ResponseWriter) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	w.SetHeader("ETag", etag)
	w.SetHeader("Content-Type", mimeType)
	w.SetStatus(200)

	buf := make([]byte, zeroCopyChunkBytes)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return true
			}
		}
		if rerr != nil {
			break
		}
	}
	return true
}
