package middleware

import (
	"bytes"
	"net/http"
)

// captureWriter records what a handler wrote: the status, the byte count
// and, when body is non-nil, a copy of the body.
type captureWriter struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
	body        *bytes.Buffer
}

func newCaptureWriter(w http.ResponseWriter, keepBody bool) *captureWriter {
	cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
	if keepBody {
		cw.body = &bytes.Buffer{}
	}
	return cw
}

func (c *captureWriter) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.status = code
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.body != nil {
		c.body.Write(b)
	}
	n, err := c.ResponseWriter.Write(b)
	c.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *captureWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// Chain wraps h so the first middleware is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
