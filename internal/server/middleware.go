package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"pkg.jsn.cam/logmate/pkg/logmate/httpx"
	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

const (
	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"
	csrfBytes  = 32
)

func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) error {
	buf := make([]byte, csrfBytes)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := hex.EncodeToString(buf)

	// Readable by browser code so it can echo the token in csrfHeader.
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookie,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	httpx.JSON(w, http.StatusOK, protocol.CSRFTokenResponse{CSRFToken: token})
	return nil
}

// requireCSRF rejects requests whose csrfHeader does not match the
// csrfCookie. It is a no-op when CSRF checks are disabled.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	if !s.opts.CSRF {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(csrfCookie)
		header := r.Header.Get(csrfHeader)
		if err != nil || cookie.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			httpx.Error(w, http.StatusForbidden, "CSRF verification failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeader)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) bool {
	return s.origins["*"] || s.origins[origin]
}

// checkOrigin lets non-browser clients (no Origin header) and allowed
// origins open the websocket.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.allowOrigin(origin) || origin == "http://"+r.Host || origin == "https://"+r.Host
}

// countUploads records the response status of every upload.
func (s *Server) countUploads(next http.Handler) http.Handler {
	if s.deps.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.deps.Metrics.ObserveUpload(rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
