// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/syncspace/spacesync/internal/engine"
	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/internal/transport"
	"github.com/syncspace/spacesync/models"
)

const defaultTickInterval = time.Second

// request is one externally-delivered engine operation, acknowledged
// synchronously through reply.
type request struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// SpaceSyncer runs one sync engine to completion: it owns the connection
// reader goroutine and the single loop that feeds the engine inbound
// messages, idle ticks and external requests one at a time. The engine
// itself never sees concurrency.
type SpaceSyncer struct {
	engine *engine.Engine
	conn   Conn
	store  io.Closer
	tick   time.Duration
	log    *logger.Logger

	requests chan request

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSpaceSyncer wires an engine to its connection. store may be nil when
// the caller manages the store handle itself; otherwise it is closed when
// the syncer stops. A non-positive tick defaults to one second.
func NewSpaceSyncer(eng *engine.Engine, conn Conn, store io.Closer, tick time.Duration, log *logger.Logger) *SpaceSyncer {
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &SpaceSyncer{
		engine:   eng,
		conn:     conn,
		store:    store,
		tick:     tick,
		log:      log,
		requests: make(chan request),
	}
}

// Start stops any previous run and launches the sync loop in the
// background. The loop exits when ctx is cancelled, Stop is called, or the
// session terminates.
func (s *SpaceSyncer) Start(ctx context.Context) {
	s.Stop()

	s.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.run(runCtx)
	}()
}

// Stop cancels the running loop and blocks until it has fully exited. The
// loop announces departure to the remote on its way out. Safe to call when
// the syncer is not running.
func (s *SpaceSyncer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Done is closed when the sync loop has exited, whether by Stop, context
// cancellation, a remote bye, or a fatal protocol error.
func (s *SpaceSyncer) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// StartSync forces a fresh convergence round.
func (s *SpaceSyncer) StartSync(ctx context.Context) error {
	return s.do(ctx, s.engine.StartSync)
}

// UpdateDeviceInfo records and re-announces device metadata.
func (s *SpaceSyncer) UpdateDeviceInfo(ctx context.Context, token, deviceType string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.engine.UpdateDeviceInfo(ctx, token, deviceType)
	})
}

// do delivers fn to the sync loop and waits for its acknowledgment.
func (s *SpaceSyncer) do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return engine.ErrSessionClosed
	}

	req := request{fn: fn, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
		return <-req.reply
	case <-done:
		return engine.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SpaceSyncer) run(ctx context.Context) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	defer func() {
		// Best-effort departure: a no-op when the session already
		// terminated, a bye to the remote otherwise.
		if err := s.engine.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("announce departure")
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close sync connection")
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.log.Debug().Err(err).Msg("close space store")
			}
		}
		close(done)
	}()

	if err := s.engine.Start(ctx); err != nil {
		s.log.Error().Err(err).Msg("start sync session")
		return
	}

	msgs := make(chan models.Message)
	recvErrs := make(chan error, 1)
	go func() {
		for {
			msg, err := s.conn.Receive(ctx)
			if err != nil {
				recvErrs <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-recvErrs:
			if !errors.Is(err, transport.ErrConnClosed) && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("sync connection failed")
			}
			return

		case msg := <-msgs:
			if err := s.engine.HandleMessage(ctx, msg); err != nil {
				s.log.Error().Err(err).Str("kind", string(msg.Kind())).Msg("handle sync message")
			}
			if s.engine.Terminated() {
				return
			}

		case <-ticker.C:
			if err := s.engine.IdleTick(ctx); err != nil {
				s.log.Error().Err(err).Msg("sync idle tick")
			}
			if s.engine.Terminated() {
				return
			}

		case req := <-s.requests:
			req.reply <- req.fn(ctx)
			if s.engine.Terminated() {
				return
			}
		}
	}
}
