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
	"strconv"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
)

// temperatureHandler emits one reading per populated sensor slot of the
// listener profile. Raw values come in tenths of a degree Celsius.
type temperatureHandler struct {
	api *vehicleapi.Client
}

func (h *temperatureHandler) Name() string { return "temperature_sensors" }

func (h *temperatureHandler) EventIDs(profile listener.Listener) []uint16 {
	ids := make([]uint16, 0, len(profile.TempSensors)*2)
	for _, pair := range profile.TempSensors {
		ids = append(ids, pair.SensorID, pair.ReadingID)
	}
	return ids
}

func (h *temperatureHandler) TriggerEventIDs() []uint16 { return nil }

// Sensor slots are optional equipment; whatever subset is present gets
// decoded.
func (h *temperatureHandler) RequireAllEvents() bool { return false }

// Both trucks and towables carry temperature sensors.
func (h *temperatureHandler) AppliesTo(vehicleapi.TrackableType) bool { return true }

func (h *temperatureHandler) Decode(rec *avl.Record, profile listener.Listener, imei string) []Event {
	var events []Event
	for _, pair := range profile.TempSensors {
		sensorID, ok := rec.Uint(pair.SensorID)
		if !ok || sensorID == 0 {
			continue
		}
		raw, ok := rec.Uint(pair.ReadingID)
		if !ok {
			continue
		}

		events = append(events, vehicleapi.TemperatureReading{
			SourceIMEI:       imei,
			HardwareSensorID: strconv.FormatUint(sensorID, 10),
			Value:            float64(uint16(raw)) * 0.1,
			Timestamp:        rec.Timestamp.Unix(),
		})
	}
	return events
}

// Send stamps the source type at delivery time; a reading persisted
// before the trackable was known gets typed on replay.
func (h *temperatureHandler) Send(ctx context.Context, ev Event, trackable *vehicleapi.Trackable) error {
	reading := ev.(vehicleapi.TemperatureReading)
	reading.SourceType = trackable.Type
	return h.api.CreateTemperatureReading(ctx, reading)
}

func (h *temperatureHandler) Unmarshal(data []byte) (Event, error) {
	var reading vehicleapi.TemperatureReading
	err := json.Unmarshal(data, &reading)
	return reading, err
}
