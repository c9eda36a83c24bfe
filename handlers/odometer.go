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

type odometerHandler struct {
	api *vehicleapi.Client
}

func (h *odometerHandler) Name() string { return "odometer" }

func (h *odometerHandler) EventIDs(listener.Listener) []uint16 { return []uint16{ioOdometer} }

func (h *odometerHandler) TriggerEventIDs() []uint16 { return nil }

func (h *odometerHandler) RequireAllEvents() bool { return true }

func (h *odometerHandler) AppliesTo(t vehicleapi.TrackableType) bool {
	return t == vehicleapi.TrackableTypeTruck
}

func (h *odometerHandler) Decode(rec *avl.Record, _ listener.Listener, _ string) []Event {
	v, ok := rec.Uint(ioOdometer)
	if !ok {
		return nil
	}
	return []Event{vehicleapi.TruckOdometerReading{
		Timestamp:  rec.Timestamp.Unix(),
		Kilometers: float64(uint32(v)),
	}}
}

func (h *odometerHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	return h.api.CreateOdometerReading(ctx, trackable.ID, ev.(vehicleapi.TruckOdometerReading))
}

func (h *odometerHandler) Unmarshal(data []byte) (Event, error) {
	var reading vehicleapi.TruckOdometerReading
	err := json.Unmarshal(data, &reading)
	return reading, err
}
