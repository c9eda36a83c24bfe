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

package handlers

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/store"
	"github.com/comcast/fleetgw/vehicleapi"
	"go.uber.org/zap"
)

// Registry holds the fixed-order handler set plus the implicit location
// path, and routes records through them. A failed send never fails the
// frame: the event lands in the store and the next handler still runs.
type Registry struct {
	api      *vehicleapi.Client
	store    *store.Store
	location Handler
	handlers []Handler
	byName   map[string]Handler
}

func NewRegistry(api *vehicleapi.Client, st *store.Store) *Registry {
	r := &Registry{
		api:      api,
		store:    st,
		location: &locationHandler{api: api},
		handlers: []Handler{
			&speedHandler{api: api},
			&odometerHandler{api: api},
			&driverCardHandler{api: api},
			&driveStateHandler{api: api},
			&temperatureHandler{api: api},
		},
	}

	r.byName = map[string]Handler{r.location.Name(): r.location}
	for _, h := range r.handlers {
		r.byName[h.Name()] = h
	}
	return r
}

// ByName resolves the handler a failed-event row belongs to.
func (r *Registry) ByName(name string) Handler {
	return r.byName[name]
}

// HandleFrame routes every record of a frame: the location path first,
// then each registered handler in registry order.
func (r *Registry) HandleFrame(ctx context.Context, frame *avl.Frame, trackable *vehicleapi.Trackable, profile listener.Listener, imei string) {
	log := zap.L()

	for i := range frame.Records {
		rec := &frame.Records[i]
		recordsTotal.WithLabelValues(profile.Name).Inc()

		if vin, ok := decodeVIN(rec); ok {
			log.Debug("vin reported", zap.String("imei", imei), zap.String("vin", vin))
		}

		for _, ev := range r.location.Decode(rec, profile, imei) {
			r.dispatch(ctx, r.location, ev, trackable, imei)
		}

		for _, h := range r.handlers {
			if !gated(h, rec, profile) {
				continue
			}
			for _, ev := range h.Decode(rec, profile, imei) {
				r.dispatch(ctx, h, ev, trackable, imei)
			}
		}
	}
}

// dispatch delivers one event or persists it: exactly one of the two
// outcomes holds when it returns, unless the store itself fails, which is
// the single lossy path and is logged at error.
func (r *Registry) dispatch(ctx context.Context, h Handler, ev Event, trackable *vehicleapi.Trackable, imei string) {
	log := zap.L()

	if trackable == nil {
		r.persist(ctx, h, ev, imei)
		return
	}

	if !h.AppliesTo(trackable.Type) {
		return
	}

	if err := h.Send(ctx, ev, trackable); err != nil {
		log.Warn("event send failed, caching for replay",
			zap.String("imei", imei),
			zap.String("handler", h.Name()),
			zap.Error(err))
		r.persist(ctx, h, ev, imei)
		return
	}

	eventsSent.WithLabelValues(h.Name()).Inc()
}

func (r *Registry) persist(ctx context.Context, h Handler, ev Event, imei string) {
	data, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("dropping event, marshal failed",
			zap.String("imei", imei),
			zap.String("handler", h.Name()),
			zap.Error(err))
		eventsDropped.WithLabelValues(h.Name()).Inc()
		return
	}

	if _, err := r.store.Persist(ctx, imei, h.Name(), ev.EventTime(), data); err != nil {
		// stalling the pipeline would be worse than losing the event
		zap.L().Error("dropping event, failed-event store unavailable",
			zap.String("imei", imei),
			zap.String("handler", h.Name()),
			zap.Error(err))
		eventsDropped.WithLabelValues(h.Name()).Inc()
		return
	}

	eventsPersisted.WithLabelValues(h.Name()).Inc()
}

// Purge replays up to limit failed events for an IMEI, location rows
// first, matching the live path's ordering. Nothing happens while the
// trackable is still unknown. Delivered rows are deleted; failed ones get
// their attempted_at advanced.
func (r *Registry) Purge(ctx context.Context, imei string, trackable *vehicleapi.Trackable, limit int) {
	if trackable == nil {
		return
	}

	rows, err := r.store.List(ctx, imei, limit)
	if err != nil {
		zap.L().Error("listing failed events", zap.String("imei", imei), zap.Error(err))
		return
	}

	for pass := 0; pass < 2; pass++ {
		for _, row := range rows {
			isLocation := row.HandlerName == r.location.Name()
			if (pass == 0) != isLocation {
				continue
			}
			r.replay(ctx, row, trackable)
		}
	}
}

func (r *Registry) replay(ctx context.Context, row store.FailedEvent, trackable *vehicleapi.Trackable) {
	log := zap.L()

	h := r.ByName(row.HandlerName)
	if h == nil {
		log.Error("failed event names unknown handler, skipping",
			zap.Int64("id", row.ID),
			zap.String("handler", row.HandlerName))
		if err := r.store.UpdateAttemptedAt(ctx, row.ID, time.Now()); err != nil {
			log.Error("updating attempted_at", zap.Int64("id", row.ID), zap.Error(err))
		}
		return
	}

	ev, err := h.Unmarshal([]byte(row.EventData))
	if err != nil {
		// a row that cannot decode will never replay; delete it
		log.Error("deleting undecodable failed event",
			zap.Int64("id", row.ID),
			zap.String("handler", row.HandlerName),
			zap.Error(err))
		if err := r.store.Delete(ctx, row.ID); err != nil {
			log.Error("deleting failed event", zap.Int64("id", row.ID), zap.Error(err))
		}
		return
	}

	if h.AppliesTo(trackable.Type) {
		if err := h.Send(ctx, ev, trackable); err != nil {
			log.Warn("replay send failed",
				zap.Int64("id", row.ID),
				zap.String("imei", row.IMEI),
				zap.String("handler", row.HandlerName),
				zap.Error(err))
			replayFailed.WithLabelValues(h.Name()).Inc()
			if err := r.store.UpdateAttemptedAt(ctx, row.ID, time.Now()); err != nil {
				log.Error("updating attempted_at", zap.Int64("id", row.ID), zap.Error(err))
			}
			return
		}
	}

	replaySucceeded.WithLabelValues(h.Name()).Inc()
	if err := r.store.Delete(ctx, row.ID); err != nil {
		log.Error("deleting replayed event", zap.Int64("id", row.ID), zap.Error(err))
	}
}

// decodeVIN assembles the VIN from IO parts 233/234/235. Identity comes
// from the IMEI lookup; the VIN is logged for debugging only.
func decodeVIN(rec *avl.Record) (string, bool) {
	var out []byte
	for _, id := range []uint16{ioVINPart1, ioVINPart2, ioVINPart3} {
		el, ok := rec.Elements[id]
		if !ok {
			continue
		}
		if el.Data != nil {
			out = append(out, el.Data...)
			continue
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], el.Value)
		for _, b := range buf {
			if b != 0 {
				out = append(out, b)
			}
		}
	}
	if len(out) == 0 {
		return "", false
	}
	return string(out), true
}
