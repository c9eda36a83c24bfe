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

type speedHandler struct {
	api *vehicleapi.Client
}

func (h *speedHandler) Name() string { return "speed" }

func (h *speedHandler) EventIDs(listener.Listener) []uint16 { return []uint16{ioSpeed} }

func (h *speedHandler) TriggerEventIDs() []uint16 { return nil }

func (h *speedHandler) RequireAllEvents() bool { return true }

// Towables have no speed sensor of their own; their speed is the truck's.
func (h *speedHandler) AppliesTo(t vehicleapi.TrackableType) bool {
	return t == vehicleapi.TrackableTypeTruck
}

func (h *speedHandler) Decode(rec *avl.Record, _ listener.Listener, _ string) []Event {
	v, ok := rec.Uint(ioSpeed)
	if !ok {
		return nil
	}
	return []Event{vehicleapi.TruckSpeed{
		Timestamp: rec.Timestamp.Unix(),
		Speed:     float64(v),
	}}
}

func (h *speedHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	return h.api.CreateSpeed(ctx, trackable.ID, ev.(vehicleapi.TruckSpeed))
}

func (h *speedHandler) Unmarshal(data []byte) (Event, error) {
	var speed vehicleapi.TruckSpeed
	err := json.Unmarshal(data, &speed)
	return speed, err
}
