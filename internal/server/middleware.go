package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"strings"

	"tasktracker/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

const minCompressSize = 1024

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (b *gzipBody) Close() error {
	gzErr := b.Reader.Close()
	if err := b.body.Close(); err != nil {
		return err
	}
	return gzErr
}

// GzipRequestDecompress transparently inflates request bodies sent with
// Content-Encoding: gzip.
func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidGzipRequest.Error()})
			return
		}
		ctx.Request.Body = &gzipBody{Reader: gr, body: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1

		ctx.Next()
	}
}

// bufferedWriter holds the body back until the handler chain returns so the
// encoding can be chosen once the full size is known.
type bufferedWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bufferedWriter) Write(data []byte) (int, error) { return w.buf.Write(data) }

func (w *bufferedWriter) WriteString(s string) (int, error) { return w.buf.WriteString(s) }

// GzipResponseCompress gzips JSON and text responses of at least
// minCompressSize bytes for clients that accept it.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		bw := &bufferedWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = bw
		ctx.Next()
		ctx.Writer = bw.ResponseWriter

		addVary(bw.Header())
		if bw.buf.Len() == 0 {
			return
		}

		body := bw.buf.Bytes()
		if len(body) >= minCompressSize && compressible(bw.Status(), bw.Header()) {
			if compressed, err := gzipBytes(body); err != nil {
				log.Printf("[WARN] %s: %v", errors.ErrGzipCompressionFailed.Error(), err)
			} else {
				bw.Header().Set("Content-Encoding", "gzip")
				bw.Header().Del("Content-Length")
				body = compressed
			}
		}

		if _, err := bw.ResponseWriter.Write(body); err != nil {
			_ = ctx.Error(err)
		}
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var out bytes.Buffer
	gw := gzip.NewWriter(&out)
	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func addVary(h http.Header) {
	vary := h.Get("Vary")
	switch {
	case vary == "":
		h.Set("Vary", "Accept-Encoding")
	case !strings.Contains(vary, "Accept-Encoding"):
		h.Set("Vary", vary+", Accept-Encoding")
	}
}

func compressible(status int, h http.Header) bool {
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified {
		return false
	}
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	for _, prefix := range []string{"application/json", "text/plain", "text/html"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}
