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

// driveStateHandler reports the tachograph working state of driver 1. A
// record without a real driver card is dropped; an anonymous drive state
// is not attributable.
type driveStateHandler struct {
	api *vehicleapi.Client
}

func (h *driveStateHandler) Name() string { return "driver_one_drive_state" }

func (h *driveStateHandler) EventIDs(listener.Listener) []uint16 {
	return []uint16{ioDriveState, ioCardMSB, ioCardLSB}
}

func (h *driveStateHandler) TriggerEventIDs() []uint16 { return nil }

func (h *driveStateHandler) RequireAllEvents() bool { return true }

func (h *driveStateHandler) AppliesTo(t vehicleapi.TrackableType) bool {
	return t == vehicleapi.TrackableTypeTruck
}

func (h *driveStateHandler) Decode(rec *avl.Record, _ listener.Listener, _ string) []Event {
	raw, ok := rec.Uint(ioDriveState)
	if !ok {
		return nil
	}

	id, ok := cardID(rec)
	if !ok {
		return nil
	}

	return []Event{vehicleapi.TruckDriveState{
		Timestamp:    rec.Timestamp.Unix(),
		State:        driveState(raw),
		DriverCardID: id,
	}}
}

func (h *driveStateHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	return h.api.CreateDriveState(ctx, trackable.ID, ev.(vehicleapi.TruckDriveState))
}

func (h *driveStateHandler) Unmarshal(data []byte) (Event, error) {
	var state vehicleapi.TruckDriveState
	err := json.Unmarshal(data, &state)
	return state, err
}

// driveState maps the wire value of IO 184 to the tachograph state.
func driveState(v uint64) vehicleapi.DriveState {
	switch v {
	case 0:
		return vehicleapi.DriveStateRest
	case 1:
		return vehicleapi.DriveStateDriverAvailable
	case 2:
		return vehicleapi.DriveStateWork
	case 3:
		return vehicleapi.DriveStateDrive
	case 4:
		return vehicleapi.DriveStateError
	default:
		return vehicleapi.DriveStateNotAvailable
	}
}
