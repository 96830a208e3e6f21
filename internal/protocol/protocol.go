// Package protocol implements the line-delimited JSON command protocol.
//
// Each input line is one request object; each request produces exactly one
// response line. A failed request is reported in its response and never stops
// the loop.
package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/rcliao/memstore/internal/engine"
	"github.com/rcliao/memstore/internal/logging"
	"github.com/rcliao/memstore/internal/model"
	"github.com/rcliao/memstore/internal/search"
)

// maxLineSize bounds a single request line.
const maxLineSize = 16 << 20

// Actions understood by the server.
const (
	ActionStore        = "store"
	ActionStoreWithKey = "store_with_key"
	ActionRetrieve     = "retrieve"
	ActionList         = "list"
	ActionSearch       = "search"
	ActionStats        = "stats"
	ActionContext      = "context"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one command.
type Request struct {
	Action   string         `json:"action"`
	Key      string         `json:"key,omitempty"`
	Content  string         `json:"content,omitempty"`
	Metadata model.Metadata `json:"metadata,omitempty"`
	Query    string         `json:"query,omitempty"`
	Mode     string         `json:"mode,omitempty"`
	Limit    *int           `json:"limit,omitempty"`
	Budget   int            `json:"budget,omitempty"`
}

// Response is the reply to one Request. Only the fields relevant to the
// action are set.
type Response struct {
	Status    string                `json:"status"`
	Key       string                `json:"key,omitempty"`
	Record    *model.Record         `json:"record,omitempty"`
	Records   []model.Summary       `json:"records,omitzero"`
	Results   []model.Result        `json:"results,omitzero"`
	Stats     *model.Stats          `json:"stats,omitempty"`
	Context   *engine.ContextResult `json:"context,omitempty"`
	ErrorKind string                `json:"error_kind,omitempty"`
	Message   string                `json:"message,omitempty"`
}

// Engine is the subset of the memory engine the server drives.
type Engine interface {
	Store(ctx context.Context, content string, meta model.Metadata) (string, error)
	StoreWithKey(ctx context.Context, key, content string, meta model.Metadata) (string, error)
	Retrieve(ctx context.Context, key string) (*model.Record, error)
	List(ctx context.Context) ([]model.Summary, error)
	Search(ctx context.Context, p engine.SearchParams) ([]model.Result, error)
	Stats(ctx context.Context) (*model.Stats, error)
	Context(ctx context.Context, query string, budget int) (*engine.ContextResult, error)
}

// Server answers protocol requests against an Engine.
type Server struct {
	engine Engine
}

// NewServer creates a Server.
func NewServer(e Engine) *Server {
	return &Server{engine: e}
}

// Serve reads requests from r until EOF or ctx is cancelled and writes one
// response line per request to w. Blank lines are ignored.
//
// Cancellation is honoured even while a read is pending. The reading
// goroutine then stays parked in r.Read until r yields data or is closed,
// which for stdin means process exit.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	lines, readErr := readLines(ctx, r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return goerr.Wrap(err, "read request")
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			resp := s.Handle(ctx, line)
			if err := enc.Encode(resp); err != nil {
				return goerr.Wrap(err, "write response")
			}
		}
	}
}

// readLines scans r on its own goroutine. The error channel receives exactly
// one value, before lines is closed.
func readLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- bytes.Clone(scanner.Bytes()):
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// Handle decodes and executes a single request line.
func (s *Server) Handle(ctx context.Context, line []byte) Response {
	logger := logging.From(ctx).With("request_id", uuid.NewString())
	ctx = logging.With(ctx, logger)

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return fail(ctx, goerr.Wrap(model.ErrInvalidInput, "malformed request", goerr.V("cause", err.Error())))
	}
	logger.Debug("request", "action", req.Action)

	resp, err := s.dispatch(ctx, req)
	if err != nil {
		return fail(ctx, err)
	}
	resp.Status = StatusSuccess
	return resp
}

func (s *Server) dispatch(ctx context.Context, req Request) (Response, error) {
	switch req.Action {
	case ActionStore:
		key, err := s.engine.Store(ctx, req.Content, req.Metadata)
		return Response{Key: key}, err

	case ActionStoreWithKey:
		key, err := s.engine.StoreWithKey(ctx, req.Key, req.Content, req.Metadata)
		return Response{Key: key}, err

	case ActionRetrieve:
		rec, err := s.engine.Retrieve(ctx, req.Key)
		return Response{Record: rec}, err

	case ActionList:
		records, err := s.engine.List(ctx)
		return Response{Records: records}, err

	case ActionSearch:
		mode, err := search.ParseMode(req.Mode)
		if err != nil {
			return Response{}, err
		}
		p := engine.SearchParams{Query: req.Query, Mode: mode}
		if req.Limit != nil {
			if *req.Limit <= 0 {
				return Response{}, goerr.Wrap(model.ErrInvalidInput, "limit must be positive", goerr.V("limit", *req.Limit))
			}
			p.Limit = *req.Limit
		}
		results, err := s.engine.Search(ctx, p)
		return Response{Results: results}, err

	case ActionStats:
		st, err := s.engine.Stats(ctx)
		return Response{Stats: st}, err

	case ActionContext:
		res, err := s.engine.Context(ctx, req.Query, req.Budget)
		return Response{Context: res}, err

	case "":
		return Response{}, goerr.Wrap(model.ErrInvalidInput, "action is required")
	default:
		return Response{}, goerr.Wrap(model.ErrInvalidInput, "unknown action", goerr.V("action", req.Action))
	}
}

func fail(ctx context.Context, err error) Response {
	kind := model.KindOf(err)
	logger := logging.From(ctx)
	if kind == model.KindInternalStorage {
		logger.Error("request failed", "error", err)
	} else {
		logger.Info("request rejected", "kind", kind, "error", err)
	}
	return Response{Status: StatusError, ErrorKind: kind, Message: err.Error()}
}
