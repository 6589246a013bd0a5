package redis

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kubewise-ai/kubewise/state"
)

type PoolOption func(*goredis.Options)

func WithPoolSize(size int) PoolOption {
	return func(o *goredis.Options) {
		if size > 0 {
			o.PoolSize = size
		}
	}
}

func WithDialTimeout(timeout time.Duration) PoolOption {
	return func(o *goredis.Options) {
		if timeout > 0 {
			o.DialTimeout = timeout
		}
	}
}

func WithPassword(password string) PoolOption {
	return func(o *goredis.Options) {
		if password != "" {
			o.Password = password
		}
	}
}

func WithDB(db int) PoolOption {
	return func(o *goredis.Options) {
		o.DB = db
	}
}

// NewPool parses a redis URL (redis://host:port/db) into a pooled client.
// The client lends one live connection per store operation via Acquire.
func NewPool(rawURL string, opts ...PoolOption) (*goredis.Client, error) {
	options, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", state.ErrInvalidAddress, err)
	}
	for _, opt := range opts {
		opt(options)
	}
	return goredis.NewClient(options), nil
}

// ScopedConn is a connection handle whose Release is safe to call on every
// exit path. A connection borrowed from a pool is returned on Release; a
// pre-existing connection is left untouched.
type ScopedConn struct {
	cmd      goredis.Cmdable
	release  func() error
	released bool
}

// Cmd exposes the live connection for command execution.
func (s *ScopedConn) Cmd() goredis.Cmdable {
	return s.cmd
}

// Release returns a borrowed connection to its pool. Idempotent.
func (s *ScopedConn) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true
	if s.release == nil {
		return nil
	}
	return s.release()
}

// Acquire produces a usable connection handle regardless of whether the
// caller supplied a pooled client or an already-open connection. A
// *goredis.Conn passes through with a no-op release; a *goredis.Client lends
// one dedicated connection from its pool. Anything else is a caller bug.
func Acquire(source any) (*ScopedConn, error) {
	switch src := source.(type) {
	case *goredis.Conn:
		if src == nil {
			return nil, fmt.Errorf("%w: connection is nil", state.ErrInvalidArgument)
		}
		return &ScopedConn{cmd: src}, nil
	case *goredis.Client:
		if src == nil {
			return nil, fmt.Errorf("%w: client is nil", state.ErrInvalidArgument)
		}
		conn := src.Conn()
		return &ScopedConn{cmd: conn, release: conn.Close}, nil
	case nil:
		return nil, fmt.Errorf("%w: connection source is nil", state.ErrInvalidArgument)
	default:
		return nil, fmt.Errorf("%w: unsupported connection source %T", state.ErrInvalidArgument, source)
	}
}
