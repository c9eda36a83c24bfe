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

// Package purge replays the failed-event backlog for devices that are
// not currently connected. Connected devices purge their own backlog
// from the worker loop; the sweeper covers everyone else.
package purge

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/comcast/fleetgw/handlers"
	"github.com/comcast/fleetgw/pool"
	"github.com/comcast/fleetgw/store"
	"github.com/comcast/fleetgw/vehicleapi"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 5 * time.Minute
	DefaultConcurrency = 4

	// imeisPerSweep caps one sweep pass; the rest wait for the next tick.
	imeisPerSweep = 100
)

// Sweeper periodically replays failed events grouped by IMEI.
type Sweeper struct {
	store       *store.Store
	registry    *handlers.Registry
	api         *vehicleapi.Client
	interval    time.Duration
	chunk       int
	concurrency int
}

func NewSweeper(st *store.Store, registry *handlers.Registry, api *vehicleapi.Client, interval time.Duration, chunk, concurrency int) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Sweeper{
		store:       st,
		registry:    registry,
		api:         api,
		interval:    interval,
		chunk:       chunk,
		concurrency: concurrency,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: most recently failed devices first, one replay
// task per IMEI.
func (s *Sweeper) Sweep(ctx context.Context) {
	log := zap.L()

	imeis, err := s.failedIMEIs(ctx)
	if err != nil {
		log.Error("listing devices with failed events", zap.Error(err))
		return
	}
	if len(imeis) == 0 {
		return
	}

	log.Info("sweeping failed events", zap.Int("devices", len(imeis)))

	tasks := make([]*pool.Task, 0, len(imeis))
	for _, imei := range imeis {
		imei := imei
		tasks = append(tasks, pool.NewTask(imei, func() error {
			return s.replayIMEI(ctx, imei)
		}))
	}

	p := pool.NewPool(tasks, s.concurrency)
	p.Run()

	for _, task := range tasks {
		if task.Err != nil {
			log.Warn("sweep task failed",
				zap.String("imei", task.IMEI),
				zap.Error(task.Err))
		}
	}
}

// failedIMEIs retries transient store reads with exponential backoff.
func (s *Sweeper) failedIMEIs(ctx context.Context) ([]string, error) {
	var imeis []string

	operation := func() error {
		var err error
		imeis, err = s.store.FailedIMEIs(ctx, imeisPerSweep)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return imeis, nil
}

func (s *Sweeper) replayIMEI(ctx context.Context, imei string) error {
	trackable, err := s.api.GetTrackable(ctx, imei)
	if err != nil {
		if errors.Is(err, vehicleapi.ErrNotFound) {
			// device still unregistered; its rows stay queued
			return nil
		}
		return err
	}

	s.registry.Purge(ctx, imei, trackable, s.chunk)
	return nil
}
