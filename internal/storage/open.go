package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects a backend for Open.
type Options struct {
	Backend      string
	DSN          string
	Namespace    string
	PollInterval time.Duration
}

// Open returns a context on the configured medium. The "none" backend
// returns a nil Storage, meaning state is kept in memory only.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Backend {
	case "none":
		return nil, nil
	case "memory":
		return NewMemoryBackend().Open(), nil
	case "sqlite":
		return checked(NewSQLite(opts.DSN, opts.PollInterval))
	case "file":
		return checked(NewFile(opts.DSN))
	case "redis":
		return checked(NewRedis(ctx, &redis.Options{Addr: opts.DSN}, opts.Namespace+":"))
	case "nats":
		return checked(NewNATS(ctx, opts.DSN, opts.Namespace))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// checked keeps a failed constructor from leaking a typed nil pointer.
func checked[S Storage](s S, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
