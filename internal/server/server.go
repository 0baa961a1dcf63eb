// Package server exposes the publish and reconcile operations over HTTP.
//
// Every response is a JSON envelope: {"status":"ok","data":...} or
// {"status":"error","error":{"code":...,"message":...}}. Error messages
// pass through bridge.UserMessage, so transport details never reach the
// caller.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/config"
	"github.com/roach88/hivepress/internal/metrics"
	"github.com/roach88/hivepress/internal/reconcile"
)

// Publisher is the publish bridge.
type Publisher interface {
	Publish(ctx context.Context, postID int64) (bridge.PublishRecord, error)
	FetchPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error)
}

// Reconciler reconciles one post.
type Reconciler interface {
	Reconcile(ctx context.Context, postID int64, autoApprove bool) (reconcile.Result, error)
}

// Sweeper reconciles every published post.
type Sweeper interface {
	Sweep(ctx context.Context, autoApprove bool) (reconcile.SweepResult, error)
}

// ReplyFetcher reads remote reply trees.
type ReplyFetcher interface {
	FetchAllReplies(ctx context.Context, author, permlink string, startIndex, maxCount int) ([]bridge.RemoteReply, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the operations the server exposes.
type Deps struct {
	Publisher  Publisher
	Reconciler Reconciler
	Sweeper    Sweeper
	Replies    ReplyFetcher
	Health     Pinger
	Metrics    *metrics.Metrics

	// AutoApprove is used when a request omits auto_approve.
	AutoApprove bool

	Logger *slog.Logger
}

// Server routes HTTP requests to the bridge operations.
type Server struct {
	deps Deps
	log  *slog.Logger
}

// New creates a Server.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{deps: deps, log: log}
}

// Response is the JSON envelope.
type Response struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError is returned by handlers; the router writes it as the response.
type HTTPError struct {
	Status int
	Code   string
	Err    error
}

// handler is a route body. On success data becomes the envelope's data.
type handler func(r *http.Request) (any, *HTTPError)

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/posts/{id:[0-9]+}/publish", s.handle(s.publish)).Methods(http.MethodPost)
	r.Handle("/posts/{id:[0-9]+}/record", s.handle(s.record)).Methods(http.MethodGet)
	r.Handle("/posts/{id:[0-9]+}/reconcile", s.handle(s.reconcile)).Methods(http.MethodPost)
	r.Handle("/sweep", s.handle(s.sweep)).Methods(http.MethodPost)
	r.Handle("/replies/{author}/{permlink}", s.handle(s.replies)).Methods(http.MethodGet)
	r.Handle("/healthz", s.handle(s.health)).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handle(h handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		data, herr := h(r)
		if herr != nil {
			if herr.Status >= http.StatusInternalServerError {
				s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", herr.Err)
			} else {
				s.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "error", herr.Err)
			}
			s.write(w, herr.Status, Response{
				Status: "error",
				Error:  &ErrorBody{Code: herr.Code, Message: bridge.UserMessage(herr.Err)},
			})
			return
		}
		s.write(w, http.StatusOK, Response{Status: "ok", Data: data})
	})
}

func (s *Server) write(w http.ResponseWriter, status int, resp Response) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

// fromError maps the bridge taxonomy onto HTTP statuses.
func fromError(err error) *HTTPError {
	code := bridge.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case bridge.ErrCodeValidation:
		status = http.StatusBadRequest
	case bridge.ErrCodeNotPublished:
		status = http.StatusConflict
	case bridge.ErrCodeRemoteRejection:
		status = http.StatusUnprocessableEntity
	case bridge.ErrCodeTransport:
		status = http.StatusBadGateway
	case bridge.ErrCodeConfiguration:
		status = http.StatusServiceUnavailable
	case "":
		code = "INTERNAL"
		err = errors.New("internal error")
	}
	return &HTTPError{Status: status, Code: string(code), Err: err}
}

func postID(r *http.Request) (int64, *HTTPError) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fromError(bridge.NewValidationError("invalid post id %q", mux.Vars(r)["id"]))
	}
	return id, nil
}

func (s *Server) autoApprove(r *http.Request) (bool, *HTTPError) {
	raw := r.URL.Query().Get("auto_approve")
	if raw == "" {
		return s.deps.AutoApprove, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fromError(bridge.NewValidationError("invalid auto_approve %q", raw))
	}
	return v, nil
}

func intParam(r *http.Request, name string) (int, *HTTPError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fromError(bridge.NewValidationError("invalid %s %q", name, raw))
	}
	return v, nil
}

func (s *Server) publish(r *http.Request) (any, *HTTPError) {
	id, herr := postID(r)
	if herr != nil {
		return nil, herr
	}
	rec, err := s.deps.Publisher.Publish(r.Context(), id)
	if err != nil {
		return nil, fromError(err)
	}
	return rec, nil
}

func (s *Server) record(r *http.Request) (any, *HTTPError) {
	id, herr := postID(r)
	if herr != nil {
		return nil, herr
	}
	rec, ok, err := s.deps.Publisher.FetchPublishRecord(r.Context(), id)
	if err != nil {
		return nil, fromError(err)
	}
	if !ok {
		return nil, &HTTPError{
			Status: http.StatusNotFound,
			Code:   "NOT_FOUND",
			Err:    errors.New("no publish record for this post"),
		}
	}
	return rec, nil
}

func (s *Server) reconcile(r *http.Request) (any, *HTTPError) {
	id, herr := postID(r)
	if herr != nil {
		return nil, herr
	}
	approve, herr := s.autoApprove(r)
	if herr != nil {
		return nil, herr
	}
	res, err := s.deps.Reconciler.Reconcile(r.Context(), id, approve)
	if err != nil {
		return nil, fromError(err)
	}
	return res, nil
}

// SweepResponse carries a sweep result plus per-post failures.
type SweepResponse struct {
	reconcile.SweepResult
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) sweep(r *http.Request) (any, *HTTPError) {
	approve, herr := s.autoApprove(r)
	if herr != nil {
		return nil, herr
	}
	res, err := s.deps.Sweeper.Sweep(r.Context(), approve)
	if err == nil {
		return SweepResponse{SweepResult: res}, nil
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return nil, fromError(err)
	}
	out := SweepResponse{SweepResult: res}
	for _, e := range merr.Errors {
		out.Errors = append(out.Errors, bridge.UserMessage(e))
	}
	return out, nil
}

func (s *Server) replies(r *http.Request) (any, *HTTPError) {
	vars := mux.Vars(r)
	start, herr := intParam(r, "start")
	if herr != nil {
		return nil, herr
	}
	maxCount, herr := intParam(r, "max")
	if herr != nil {
		return nil, herr
	}
	replies, err := s.deps.Replies.FetchAllReplies(r.Context(), vars["author"], vars["permlink"], start, maxCount)
	if err != nil {
		return nil, fromError(err)
	}
	return replies, nil
}

func (s *Server) health(r *http.Request) (any, *HTTPError) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			return nil, &HTTPError{Status: http.StatusServiceUnavailable, Code: "UNAVAILABLE", Err: errors.New("storage unavailable")}
		}
	}
	return map[string]string{"version": config.Version}, nil
}
