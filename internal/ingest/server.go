package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"encmirror/internal/codec"
	"encmirror/internal/event"
	"encmirror/internal/logging"
)

// ErrNoCollaborator is returned by Forward when no encode server is connected.
var ErrNoCollaborator = errors.New("no encode server connected")

// Sink receives decoded events in delivery order.
type Sink interface {
	Apply(evt event.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(evt event.Event) error

func (f SinkFunc) Apply(evt event.Event) error { return f(evt) }

// Server accepts collaborator connections on a Unix domain socket.
type Server struct {
	path     string
	sink     Sink
	logger   *slog.Logger
	listener net.Listener

	// deliverMu keeps delivery strictly ordered across session handover.
	deliverMu sync.Mutex

	mu      sync.Mutex
	active  *session
	nextSID uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type session struct {
	id      uint64
	conn    net.Conn
	writeMu sync.Mutex
	enc     *codec.Encoder
}

// NewServer listens on path, removing any stale socket first.
func NewServer(ctx context.Context, path string, sink Sink, logger *slog.Logger) (*Server, error) {
	if sink == nil {
		return nil, errors.New("ingest server requires sink")
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		sink:     sink,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Path returns the socket location.
func (s *Server) Path() string { return s.path }

// Serve starts accepting collaborator connections until Close.
func (s *Server) Serve() {
	s.logger.Debug("ingest socket listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String("impact", "encode server cannot push updates"),
				)
				continue
			}
			sess := s.replace(conn)
			if sess == nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.readLoop(sess)
			}()
		}
	}()
}

// Connected reports whether a collaborator session is active.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Forward sends cmd to the connected collaborator.
func (s *Server) Forward(cmd event.Command) error {
	env, err := event.WrapCommand(cmd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return ErrNoCollaborator
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.enc.Encode(env); err != nil {
		return fmt.Errorf("forward %s: %w", cmd.Verb, err)
	}
	s.logger.Debug("command forwarded",
		logging.String("verb", string(cmd.Verb)),
		logging.String(logging.FieldRequestID, cmd.RequestID),
	)
	return nil
}

// Close stops accepting, drops the active session, and removes the socket.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	_ = s.listener.Close()
	s.mu.Lock()
	if s.active != nil {
		_ = s.active.conn.Close()
		s.active = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

func (s *Server) replace(conn net.Conn) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		_ = conn.Close()
		return nil
	}
	s.nextSID++
	sess := &session{id: s.nextSID, conn: conn, enc: codec.NewEncoder(conn)}
	if prev := s.active; prev != nil {
		s.logger.Info("encode server reconnected, replacing session",
			logging.Uint64("previous_session", prev.id),
			logging.Uint64("session", sess.id),
		)
		_ = prev.conn.Close()
	} else {
		s.logger.Info("encode server connected", logging.Uint64("session", sess.id))
	}
	s.active = sess
	return sess
}

func (s *Server) detach(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == sess {
		s.active = nil
		s.logger.Info("encode server disconnected", logging.Uint64("session", sess.id))
	}
	_ = sess.conn.Close()
}

func (s *Server) readLoop(sess *session) {
	defer s.detach(sess)
	dec := codec.NewDecoder(sess.conn)
	for {
		var env event.Envelope
		if err := dec.Decode(&env); err != nil {
			if isClosed(err) {
				return
			}
			var typeErr *codec.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				s.logger.Warn("skipping undecodable frame", logging.Error(err))
				continue
			}
			s.logger.Warn("ingest stream corrupt, dropping session",
				logging.Uint64("session", sess.id),
				logging.Error(err),
			)
			return
		}
		if !s.deliver(sess, env) {
			return
		}
	}
}

// deliver hands one frame to the sink. It reports false once sess has been
// replaced; frames the old session still had buffered are dropped so they
// never interleave with the new session's stream.
func (s *Server) deliver(sess *session, env event.Envelope) bool {
	if env.Kind == event.KindCommand {
		s.logger.Warn("ignoring command frame from encode server")
		return true
	}
	evt, err := event.Unwrap(env)
	if err != nil {
		s.logger.Warn("skipping undecodable frame",
			logging.String(logging.FieldEventKind, string(env.Kind)),
			logging.Error(err),
		)
		return true
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	current := s.active == sess
	s.mu.Unlock()
	if !current {
		s.logger.Debug("dropping frame from replaced session",
			logging.Uint64("session", sess.id),
			logging.String(logging.FieldEventKind, string(env.Kind)),
		)
		return false
	}
	if err := s.sink.Apply(evt); err != nil {
		s.logger.Debug("event rejected by sink",
			logging.String(logging.FieldEventKind, string(env.Kind)),
			logging.Error(err),
		)
	}
	return true
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
