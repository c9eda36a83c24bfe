/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gateway is the TCP front end: one listening socket per device
// profile, an IMEI handshake per connection, then the frame/ack loop
// feeding the connection's worker.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/handlers"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
	"github.com/comcast/fleetgw/worker"
	"github.com/nrednav/cuid2"
	"go.uber.org/zap"
)

// ackTimeout bounds ack writes; a device that cannot take 4 bytes within
// a minute is effectively gone, but the read loop keeps going.
const ackTimeout = 60 * time.Second

var generateConnID, _ = cuid2.Init(cuid2.WithLength(16))

// Server accepts device connections for one listener profile.
type Server struct {
	profile  listener.Listener
	api      *vehicleapi.Client
	registry *handlers.Registry
	worker   worker.Config

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func New(profile listener.Listener, api *vehicleapi.Client, registry *handlers.Registry, workerCfg worker.Config) *Server {
	return &Server{
		profile:  profile,
		api:      api,
		registry: registry,
		worker:   workerCfg,
	}
}

// ListenAndServe binds the profile's port and serves until ctx is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.profile.Port))
	if err != nil {
		return fmt.Errorf("binding %s on port %d: %w", s.profile.Name, s.profile.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on an existing listener; tests pass an
// ephemeral one.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := zap.L()

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	log.Info("listening for devices",
		zap.String("listener", s.profile.Name),
		zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				// clean shutdown; wait for connections to drain
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accepting on %s: %w", s.profile.Name, err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Addr returns the bound address, for tests using ephemeral ports.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// an idle device blocks in ReadFrame with no deadline; closing the
	// transport on shutdown is what unblocks the loop
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connID := generateConnID()
	log := zap.L().With(
		zap.String("listener", s.profile.Name),
		zap.String("conn_id", connID),
		zap.String("peer", conn.RemoteAddr().String()),
	)

	codec := avl.NewCodec(conn)

	imei, err := codec.ReadIMEI()
	if err != nil {
		log.Warn("handshake rejected", zap.Error(err))
		if errors.Is(err, avl.ErrInvalidIMEI) {
			codec.WriteIMEIAck(false)
		}
		handshakesRejected.WithLabelValues(s.profile.Name).Inc()
		return
	}

	if err := codec.WriteIMEIAck(true); err != nil {
		log.Warn("writing handshake ack", zap.Error(err))
		return
	}

	log = log.With(zap.String("imei", imei))
	log.Info("device connected")
	connectionsActive.WithLabelValues(s.profile.Name).Inc()
	defer connectionsActive.WithLabelValues(s.profile.Name).Dec()

	resolver := vehicleapi.NewResolver(s.api, imei)
	w := worker.New(imei, s.profile, resolver, s.registry, s.worker)
	go w.Run(ctx)

	s.frameLoop(ctx, conn, codec, w, log)

	// peer is gone; let the worker finish the backlog
	w.Close()
	select {
	case <-w.Done():
	case <-ctx.Done():
	}
	log.Info("device disconnected")
}

func (s *Server) frameLoop(ctx context.Context, conn net.Conn, codec *avl.Codec, w *worker.Worker, log *zap.Logger) {
	for {
		frame, err := codec.ReadFrame()

		switch {
		case err == nil:

		case errors.Is(err, avl.ErrInvalidFrame):
			// ask the device to resend and keep the connection
			log.Warn("frame rejected", zap.Error(err))
			framesRejected.WithLabelValues(s.profile.Name).Inc()
			if ackErr := s.writeAck(conn, codec, 0); ackErr != nil {
				log.Warn("writing reject ack", zap.Error(ackErr))
				return
			}
			continue

		case errors.Is(err, io.EOF):
			return

		default:
			// shutdown closes the transport under us; not worth a warning
			if ctx.Err() == nil {
				log.Warn("connection read failed", zap.Error(err))
			}
			return
		}

		framesAccepted.WithLabelValues(s.profile.Name).Inc()

		if err := s.writeAck(conn, codec, len(frame.Records)); err != nil {
			// a timed-out ack is logged but does not drop the frame
			log.Warn("writing frame ack", zap.Error(err))
		}

		// blocks when the worker queue is full: backpressure to the device
		w.Enqueue(frame)

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) writeAck(conn net.Conn, codec *avl.Codec, count int) error {
	conn.SetWriteDeadline(time.Now().Add(ackTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return codec.WriteFrameAck(count)
}
