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
	"encoding/json"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
)

// locationHandler is the implicit per-record path: every record carries a
// GPS fix, so this handler is invoked ahead of the registry without any
// gating.
type locationHandler struct {
	api *vehicleapi.Client
}

func (h *locationHandler) Name() string { return "location" }

func (h *locationHandler) EventIDs(listener.Listener) []uint16 { return nil }

func (h *locationHandler) TriggerEventIDs() []uint16 { return nil }

func (h *locationHandler) RequireAllEvents() bool { return true }

func (h *locationHandler) AppliesTo(t vehicleapi.TrackableType) bool {
	return t == vehicleapi.TrackableTypeTruck
}

func (h *locationHandler) Decode(rec *avl.Record, _ listener.Listener, _ string) []Event {
	return []Event{vehicleapi.TruckLocation{
		Timestamp: rec.Timestamp.Unix(),
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Heading:   float64(rec.Angle),
	}}
}

func (h *locationHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	return h.api.CreateLocation(ctx, trackable.ID, ev.(vehicleapi.TruckLocation))
}

func (h *locationHandler) Unmarshal(data []byte) (Event, error) {
	var loc vehicleapi.TruckLocation
	err := json.Unmarshal(data, &loc)
	return loc, err
}
