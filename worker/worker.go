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

// Package worker runs the per-connection processing loop. One worker per
// device connection, fed by one bounded channel, is what keeps all API
// calls and store writes for an IMEI in frame order without locks.
package worker

import (
	"context"
	"time"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/handlers"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
	"go.uber.org/zap"
)

const (
	// DefaultQueueSize bounds the frame channel; a full channel blocks
	// the connection's read loop, which is the backpressure we want.
	DefaultQueueSize = 4000

	// DefaultFrameDelay is the pause between frames; it keeps a single
	// chatty device from monopolizing the API.
	DefaultFrameDelay = 5 * time.Second
)

// Worker owns one device's frame queue and processes it sequentially.
type Worker struct {
	imei       string
	profile    listener.Listener
	resolver   *vehicleapi.Resolver
	registry   *handlers.Registry
	frames     chan *avl.Frame
	done       chan struct{}
	frameDelay time.Duration
	purgeChunk int
}

// Config tunes a worker; zero values fall back to defaults.
type Config struct {
	QueueSize  int
	FrameDelay time.Duration
	PurgeChunk int
}

func New(imei string, profile listener.Listener, resolver *vehicleapi.Resolver, registry *handlers.Registry, cfg Config) *Worker {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Worker{
		imei:       imei,
		profile:    profile,
		resolver:   resolver,
		registry:   registry,
		frames:     make(chan *avl.Frame, queueSize),
		done:       make(chan struct{}),
		frameDelay: cfg.FrameDelay,
		purgeChunk: cfg.PurgeChunk,
	}
}

// Enqueue hands a frame to the worker. It blocks when the queue is full
// so backpressure reaches the device's TCP window.
func (w *Worker) Enqueue(frame *avl.Frame) {
	w.frames <- frame
}

// Close tells the worker no more frames are coming. The worker drains
// what is queued and exits; Done is closed when it has.
func (w *Worker) Close() {
	close(w.frames)
}

// Done is closed once the worker has drained its queue and exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run is the worker loop; the owner starts it in its own goroutine.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	log := zap.L()

	for frame := range w.frames {
		trackable := w.resolver.Trackable(ctx)

		w.registry.HandleFrame(ctx, frame, trackable, w.profile, w.imei)

		// opportunistic replay of this device's backlog
		w.registry.Purge(ctx, w.imei, trackable, w.purgeChunk)

		if w.frameDelay > 0 {
			select {
			case <-time.After(w.frameDelay):
			case <-ctx.Done():
				log.Debug("worker context cancelled", zap.String("imei", w.imei))
			}
		}
	}
}
