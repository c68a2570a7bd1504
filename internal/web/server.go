// Package web serves a drill session over HTTP.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/conorfennell/hashcards/internal/drill"
	apperrors "github.com/conorfennell/hashcards/internal/errors"
	"github.com/conorfennell/hashcards/internal/scheduler"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// maxBodyBytes bounds answer request bodies.
const maxBodyBytes = 4 << 10

// Session is the drill runtime the server drives.
type Session interface {
	Peek(ctx context.Context) (drill.View, error)
	Answer(ctx context.Context, hash string, grade scheduler.Grade) (drill.View, error)
	Skip(ctx context.Context) (drill.View, error)
	Progress() drill.Progress
	StartedAt() time.Time
	Controls() scheduler.AnswerControls
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	session   Session
	router    *mux.Router
	templates *template.Template
}

// NewServer creates and configures a new server.
func NewServer(session Session) (*Server, error) {
	tpl, err := template.New("").Funcs(template.FuncMap{
		"ago":    humanize.Time,
		"plural": english.Plural,
		"inc":    func(i int) int { return i + 1 },
	}).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		session:   session,
		router:    mux.NewRouter(),
		templates: tpl,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Use(logRequests, abortOnPanic)
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", fileServer))

	s.router.Methods(http.MethodGet).Path("/").HandlerFunc(s.handleIndex)
	s.router.Methods(http.MethodGet).Path("/api/card").HandlerFunc(s.handleGetCard)
	s.router.Methods(http.MethodPost).Path("/api/answer").HandlerFunc(s.handlePostAnswer)
	s.router.Methods(http.MethodPost).Path("/api/skip").HandlerFunc(s.handlePostSkip)
	s.router.Methods(http.MethodGet).Path("/api/progress").HandlerFunc(s.handleGetProgress)
	return nil
}

// logRequests logs every request at debug level once it has been served.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		slog.Debug("handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"bytes", m.Written,
		)
	})
}

// exit is replaced in tests.
var exit = os.Exit

// abortOnPanic ends the process when a handler panics instead of letting
// net/http recover and keep serving. A panic here is a broken scheduler
// invariant.
func abortOnPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			slog.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
			exit(2)
		}()
		next.ServeHTTP(w, r)
	})
}

// cardResponse is the body of every endpoint that moves the session along.
type cardResponse struct {
	Kind string `json:"kind"`
	*drill.CardView
	Progress *drill.Progress `json:"progress,omitempty"`
	Stats    *drill.Progress `json:"stats,omitempty"`
}

func newCardResponse(v drill.View) cardResponse {
	if v.Completed() {
		return cardResponse{Kind: "completed", Stats: &v.Progress}
	}
	return cardResponse{Kind: "card", CardView: v.Card, Progress: &v.Progress}
}

type answerRequest struct {
	Fingerprint string `json:"fingerprint"`
	Grade       string `json:"grade"`
}

type pageData struct {
	Progress  drill.Progress
	StartedAt time.Time
	Controls  string
	Grades    []scheduler.Grade
}

// handleIndex renders the drill shell, or the summary page once there is
// nothing left to review.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.Peek(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := pageData{
		Progress:  v.Progress,
		StartedAt: s.session.StartedAt(),
		Controls:  s.session.Controls().String(),
		Grades:    s.session.Controls().Grades(),
	}
	name := "drill"
	if v.Completed() {
		name = "done"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render page", "template", name, "err", err)
	}
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.Peek(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardResponse(v))
}

func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeClientBadRequest, "malformed answer body", err))
		return
	}
	if req.Fingerprint == "" {
		s.writeError(w, r, apperrors.New(apperrors.CodeClientBadRequest, "missing fingerprint"))
		return
	}
	grade, err := scheduler.ParseGrade(req.Grade)
	if err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.CodeClientBadGrade, "unknown grade "+req.Grade, err))
		return
	}

	v, err := s.session.Answer(r.Context(), req.Fingerprint, grade)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardResponse(v))
}

func (s *Server) handlePostSkip(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.Skip(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCardResponse(v))
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Progress())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	ID    string `json:"id,omitempty"`
}

// writeError replies with the status the error maps to. Internal errors are
// logged under an opaque id that is the only detail the client gets.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		slog.Debug("client error", "path", r.URL.Path, "status", status, "err", err)
		writeJSON(w, status, errorResponse{Error: apperrors.GetMessage(err), Code: apperrors.GetCode(err)})
		return
	}

	id := uuid.New().String()
	slog.Error("request failed", "id", id, "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, status, errorResponse{Error: "internal error", ID: id})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", "err", err)
	}
}
