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

// Package handlers turns AVL records into Vehicle Management API calls.
// Each handler owns one semantic event type end to end: the wire ids it
// needs, the decode into an API payload, the send, and the retry rows
// written under its name when the send fails.
package handlers

import (
	"context"
	"time"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
)

// wire IO ids shared by every listener profile
const (
	ioSpeed        uint16 = 191
	ioOdometer     uint16 = 192
	ioCardPresence uint16 = 187
	ioDriveState   uint16 = 184
	ioCardMSB      uint16 = 195
	ioCardLSB      uint16 = 196
	ioVINPart1     uint16 = 233
	ioVINPart2     uint16 = 234
	ioVINPart3     uint16 = 235
)

// Event is a decoded, JSON-serializable semantic event. Every event
// carries its own timestamp so replays stay self-describing.
type Event interface {
	EventTime() time.Time
}

// Handler binds one semantic event type to its wire gating, decode, send
// and retry key.
type Handler interface {
	// Name is the stable key used for failed-event rows.
	Name() string

	// EventIDs lists the wire ids this handler reads from a record.
	EventIDs(profile listener.Listener) []uint16

	// TriggerEventIDs restricts the handler to records produced by these
	// wire triggers. Empty means any trigger.
	TriggerEventIDs() []uint16

	// RequireAllEvents tells whether every id from EventIDs must be
	// present (true) or any one of them suffices (false).
	RequireAllEvents() bool

	// AppliesTo reports whether events of this type are sent for the
	// given trackable type. A handler that does not apply short-circuits
	// to success.
	AppliesTo(t vehicleapi.TrackableType) bool

	// Decode extracts zero or more events from a gated record. It is
	// pure; insufficient or semantically null payloads yield nothing.
	Decode(rec *avl.Record, profile listener.Listener, imei string) []Event

	// Send delivers one event. Idempotent response codes (409 create,
	// 404 delete) are success.
	Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error

	// Unmarshal decodes a persisted event payload for replay.
	Unmarshal(data []byte) (Event, error)
}

// gated applies a handler's trigger and event-id gates to a record.
func gated(h Handler, rec *avl.Record, profile listener.Listener) bool {
	if triggers := h.TriggerEventIDs(); len(triggers) > 0 {
		found := false
		for _, t := range triggers {
			if rec.TriggerEventID == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	ids := h.EventIDs(profile)
	if len(ids) == 0 {
		return true
	}
	if h.RequireAllEvents() {
		return rec.Has(ids...)
	}
	return rec.HasAny(ids...)
}
