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
	"github.com/comcast/fleetgw/vehicleapi"
)

const (
	triggerCardRemoved  uint16 = 187
	triggerCardInserted uint16 = 195

	cardInserted uint64 = 1
	cardRemoved  uint64 = 0
)

// driverCardHandler tracks driver-1 card insertions and removals. The
// card identifier travels as two u64 IO values, each holding 8 big-endian
// ASCII bytes; a zero half means no card is present.
type driverCardHandler struct {
	api *vehicleapi.Client
}

func (h *driverCardHandler) Name() string { return "driver_one_card" }

func (h *driverCardHandler) EventIDs(listener.Listener) []uint16 {
	return []uint16{ioCardMSB, ioCardLSB, ioCardPresence}
}

func (h *driverCardHandler) TriggerEventIDs() []uint16 {
	return []uint16{triggerCardRemoved, triggerCardInserted}
}

// A removal record carries only the presence event, so any of the card
// ids is enough to enter decode.
func (h *driverCardHandler) RequireAllEvents() bool { return false }

func (h *driverCardHandler) AppliesTo(t vehicleapi.TrackableType) bool {
	return t == vehicleapi.TrackableTypeTruck
}

func (h *driverCardHandler) Decode(rec *avl.Record, _ listener.Listener, _ string) []Event {
	presence, ok := rec.Uint(ioCardPresence)
	if !ok {
		return nil
	}

	switch rec.TriggerEventID {
	case triggerCardInserted:
		if presence != cardInserted {
			return nil
		}
		id, ok := cardID(rec)
		if !ok {
			return nil
		}
		return []Event{vehicleapi.TruckDriverCard{
			ID:        id,
			Timestamp: rec.Timestamp.Unix(),
		}}

	case triggerCardRemoved:
		if presence != cardRemoved {
			return nil
		}
		// the server resolves the currently inserted card; we only say when
		return []Event{vehicleapi.TruckDriverCard{
			Timestamp: rec.Timestamp.Unix(),
			RemovedAt: rec.Timestamp.UTC().Format(time.RFC3339),
		}}
	}

	return nil
}

func (h *driverCardHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	card := ev.(vehicleapi.TruckDriverCard)
	if card.RemovedAt != "" {
		removedAt, err := time.Parse(time.RFC3339, card.RemovedAt)
		if err != nil {
			removedAt = card.EventTime()
		}
		return h.api.DeleteDriverCard(ctx, trackable.ID, card.ID, removedAt)
	}
	return h.api.CreateDriverCard(ctx, trackable.ID, card)
}

func (h *driverCardHandler) Unmarshal(data []byte) (Event, error) {
	var card vehicleapi.TruckDriverCard
	err := json.Unmarshal(data, &card)
	return card, err
}

// cardID assembles the 16-character identifier from the MSB and LSB
// halves. A zero half means the slot is empty and there is no card.
func cardID(rec *avl.Record) (string, bool) {
	msb, okMSB := rec.Uint(ioCardMSB)
	lsb, okLSB := rec.Uint(ioCardLSB)
	if !okMSB || !okLSB || msb == 0 || lsb == 0 {
		return "", false
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], msb)
	binary.BigEndian.PutUint64(buf[8:], lsb)
	return string(buf[:]), true
}
