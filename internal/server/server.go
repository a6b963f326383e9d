// Package server accepts TCP connections and answers one static-file request per connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"github.com/f4ah6o/ferris-serve-go/internal/config"
	"github.com/f4ah6o/ferris-serve-go/internal/request"
	"github.com/f4ah6o/ferris-serve-go/internal/response"
)

const (
	maxAcceptDelay = time.Second
	// bounds the discard of unread request bytes after an early response
	lingerTimeout = 500 * time.Millisecond
	lingerBytes   = 4 << 20
)

// Server serves a response.Builder over raw TCP connections.
type Server struct {
	cfg     config.Config
	builder *response.Builder
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// New creates a Server. cfg is expected to have passed Validate.
func New(cfg config.Config, builder *response.Builder, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		builder: builder,
		log:     log,
	}
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln,
// waits for in-flight connections and returns nil. Serve takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Mode == config.ModeConcurrent && s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("mode", s.cfg.Mode).
		Int("max_conns", s.cfg.MaxConns).
		Msg("listening")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("shutting down")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}
			delay = nextDelay(delay)
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("accept error")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		if s.cfg.Mode == config.ModeSequential {
			s.handle(conn)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn) // handle takes the ownership of conn
		}()
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(2*d, maxAcceptDelay)
}

// handle reads one request from conn, writes the response and closes conn.
// Failures only affect this connection.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	log := s.log.With().
		Str("conn_id", uuid.NewString()).
		Str("remote", remoteAddr(conn)).
		Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connection handler panicked")
		}
	}()

	start := time.Now()
	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout)); err != nil {
			log.Warn().Err(err).Msg("set read deadline")
			return
		}
	}

	var (
		req request.Request
		res *response.Response
	)
	head, err := request.ReadHead(conn, s.cfg.MaxHeadBytes)
	switch {
	case err == nil:
		req = request.Parse(head)
		res = s.builder.Build(req)
	case errors.Is(err, request.ErrHeadTooLarge):
		req = request.Parse(head)
		res = s.builder.Error(http.StatusRequestHeaderFieldsTooLarge, err)
	case errors.Is(err, io.EOF):
		log.Debug().Msg("connection closed before request")
		return
	default:
		connError(log, err).Msg("read request")
		return
	}

	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			log.Warn().Err(err).Msg("set write deadline")
			return
		}
	}
	n, err := res.WriteTo(conn)
	if err != nil {
		connError(log, err).Int64("bytes", n).Msg("write response")
		return
	}
	if res.Status == http.StatusRequestHeaderFieldsTooLarge {
		linger(conn)
	}

	level := zerolog.InfoLevel
	switch {
	case res.Status >= 500:
		level = zerolog.ErrorLevel
	case res.Status >= 400:
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", res.Status).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Err(res.Err).
		Msg("request")
}

// linger discards what the client is still sending, so the close does not
// reset the connection before the response is read. Conns from
// netutil.LimitListener hide CloseWrite; for those the read deadline alone
// ends the drain.
func linger(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	if err := conn.SetReadDeadline(time.Now().Add(lingerTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, lingerBytes))
}

// connError picks the level for a socket error: timeouts and resets are
// routine, anything else is a warning.
func connError(log zerolog.Logger, err error) *zerolog.Event {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, net.ErrClosed) || isReset(err) {
		return log.Debug().Err(err)
	}
	return log.Warn().Err(err)
}

func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
