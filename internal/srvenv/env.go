package srvenv

import (
	"context"
	"net/http"

	"github.com/go-sod/pkd/internal/database"
	"github.com/go-sod/pkd/internal/group/grpcnet"
	"github.com/go-sod/pkd/internal/runner"
)

type Option func(*SrvEnv) *SrvEnv

func New(opts ...Option) *SrvEnv {
	env := &SrvEnv{}
	for _, f := range opts {
		env = f(env)
	}

	return env
}

type SrvEnv struct {
	database  *database.DB
	runner    runner.ProvideFn
	transport grpcnet.ProvideFn
	metrics   http.Handler
}

func (s *SrvEnv) ProvideRunner() runner.ProvideFn {
	return s.runner
}

func (s *SrvEnv) ProvideTransport() grpcnet.ProvideFn {
	return s.transport
}

// MetricHandler is nil when metrics are disabled.
func (s *SrvEnv) MetricHandler() http.Handler {
	return s.metrics
}

func (s *SrvEnv) Database() *database.DB {
	return s.database
}

func WithRunner(fn runner.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.runner = fn
		return s
	}
}

func WithTransport(fn grpcnet.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.transport = fn
		return s
	}
}

func WithMetricHandler(h http.Handler) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.metrics = h
		return s
	}
}

func WithDatabase(db *database.DB) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.database = db
		return s
	}
}

func (s *SrvEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	if s.database != nil {
		return s.database.Close(ctx)
	}
	return nil
}
