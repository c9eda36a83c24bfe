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
	"testing"
	"time"

	"github.com/comcast/fleetgw/avl"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/vehicleapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(trigger uint16, elements map[uint16]uint64) *avl.Record {
	rec := &avl.Record{
		Timestamp:      time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
		Latitude:       52.520008,
		Longitude:      13.404954,
		Angle:          270,
		TriggerEventID: trigger,
		Elements:       make(map[uint16]avl.IOElement),
	}
	for id, v := range elements {
		rec.Elements[id] = avl.IOElement{ID: id, Value: v}
	}
	return rec
}

func TestSpeedDecode(t *testing.T) {
	h := &speedHandler{}
	events := h.Decode(record(0, map[uint16]uint64{191: 63}), listener.FMC650, "imei")

	require.Len(t, events, 1)
	speed := events[0].(vehicleapi.TruckSpeed)
	assert.Equal(t, float64(63), speed.Speed)
	assert.Equal(t, int64(1696161600), speed.Timestamp)
}

func TestSpeedSkippedForTowable(t *testing.T) {
	h := &speedHandler{}
	assert.True(t, h.AppliesTo(vehicleapi.TrackableTypeTruck))
	assert.False(t, h.AppliesTo(vehicleapi.TrackableTypeTowable))
}

func TestOdometerDecode(t *testing.T) {
	h := &odometerHandler{}
	events := h.Decode(record(0, map[uint16]uint64{192: 123456}), listener.FMC650, "imei")

	require.Len(t, events, 1)
	reading := events[0].(vehicleapi.TruckOdometerReading)
	assert.Equal(t, float64(123456), reading.Kilometers)
}

func TestDriverCardInsert(t *testing.T) {
	h := &driverCardHandler{}
	rec := record(195, map[uint16]uint64{
		187: 1,
		184: 5,
		195: 3544392526090811699,
		196: 3689908453225017393,
	})

	events := h.Decode(rec, listener.FMC650, "imei")
	require.Len(t, events, 1)

	card := events[0].(vehicleapi.TruckDriverCard)
	assert.Equal(t, "1069619335000001", card.ID)
	assert.Equal(t, int64(1696161600), card.Timestamp)
	assert.Empty(t, card.RemovedAt)
}

func TestDriverCardRemove(t *testing.T) {
	h := &driverCardHandler{}
	rec := record(187, map[uint16]uint64{187: 0})

	events := h.Decode(rec, listener.FMC650, "imei")
	require.Len(t, events, 1)

	card := events[0].(vehicleapi.TruckDriverCard)
	assert.Empty(t, card.ID)
	assert.Equal(t, "2023-10-01T12:00:00Z", card.RemovedAt)
}

func TestDriverCardZeroHalfIsNoCard(t *testing.T) {
	h := &driverCardHandler{}

	rec := record(195, map[uint16]uint64{187: 1, 195: 0, 196: 3689908453225017393})
	assert.Empty(t, h.Decode(rec, listener.FMC650, "imei"))

	rec = record(195, map[uint16]uint64{187: 1, 195: 3544392526090811699, 196: 0})
	assert.Empty(t, h.Decode(rec, listener.FMC650, "imei"))
}

func TestDriverCardPresenceMismatch(t *testing.T) {
	h := &driverCardHandler{}

	// insertion trigger but card reported absent
	rec := record(195, map[uint16]uint64{187: 0, 195: 1, 196: 1})
	assert.Empty(t, h.Decode(rec, listener.FMC650, "imei"))

	// removal trigger but card reported present
	rec = record(187, map[uint16]uint64{187: 1})
	assert.Empty(t, h.Decode(rec, listener.FMC650, "imei"))
}

func TestDriverCardGating(t *testing.T) {
	h := &driverCardHandler{}

	// removal frames carry only the presence event
	rec := record(187, map[uint16]uint64{187: 0})
	assert.True(t, gated(h, rec, listener.FMC650))

	// other triggers never reach the handler
	rec = record(0, map[uint16]uint64{187: 1, 195: 1, 196: 1})
	assert.False(t, gated(h, rec, listener.FMC650))
}

func TestDriveStateDecode(t *testing.T) {
	h := &driveStateHandler{}
	rec := record(0, map[uint16]uint64{
		184: 3,
		195: 3544392526090811699,
		196: 3689908453225017393,
	})

	events := h.Decode(rec, listener.FMC650, "imei")
	require.Len(t, events, 1)

	state := events[0].(vehicleapi.TruckDriveState)
	assert.Equal(t, vehicleapi.DriveStateDrive, state.State)
	assert.Equal(t, "1069619335000001", state.DriverCardID)
}

func TestDriveStateDroppedWithoutCard(t *testing.T) {
	h := &driveStateHandler{}
	rec := record(0, map[uint16]uint64{184: 3, 195: 0, 196: 0})
	assert.Empty(t, h.Decode(rec, listener.FMC650, "imei"))
}

func TestDriveStateMapping(t *testing.T) {
	tests := []struct {
		raw  uint64
		want vehicleapi.DriveState
	}{
		{0, vehicleapi.DriveStateRest},
		{1, vehicleapi.DriveStateDriverAvailable},
		{2, vehicleapi.DriveStateWork},
		{3, vehicleapi.DriveStateDrive},
		{4, vehicleapi.DriveStateError},
		{5, vehicleapi.DriveStateNotAvailable},
		{99, vehicleapi.DriveStateNotAvailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, driveState(tt.raw))
	}
}

func TestTemperatureDecodeFMC234(t *testing.T) {
	h := &temperatureHandler{}
	rec := record(0, map[uint16]uint64{
		76: 5044040395603323408,
		72: 251,
		73: 0, 74: 0, 75: 0,
		77: 0, 79: 0, 71: 0,
	})

	events := h.Decode(rec, listener.FMC234, "354895074321654")
	require.Len(t, events, 1)

	reading := events[0].(vehicleapi.TemperatureReading)
	assert.Equal(t, "5044040395603323408", reading.HardwareSensorID)
	assert.InDelta(t, 25.1, reading.Value, 1e-9)
	assert.Equal(t, int64(1696161600), reading.Timestamp)
	assert.Equal(t, "354895074321654", reading.SourceIMEI)
}

func TestTemperatureSkipsZeroSensorIDs(t *testing.T) {
	h := &temperatureHandler{}
	rec := record(0, map[uint16]uint64{
		62: 0, 72: 100,
		63: 7, 73: 200,
	})

	events := h.Decode(rec, listener.FMC650, "imei")
	require.Len(t, events, 1)

	reading := events[0].(vehicleapi.TemperatureReading)
	assert.Equal(t, "7", reading.HardwareSensorID)
	assert.InDelta(t, 20.0, reading.Value, 1e-9)
}

func TestTemperatureMultipleSensors(t *testing.T) {
	h := &temperatureHandler{}
	rec := record(0, map[uint16]uint64{
		62: 11, 72: 150,
		63: 12, 73: 250,
		5: 13, 6: 305,
	})

	events := h.Decode(rec, listener.FMC650, "imei")
	require.Len(t, events, 3)
}

func TestTemperatureGatingAnyID(t *testing.T) {
	h := &temperatureHandler{}

	assert.False(t, h.RequireAllEvents())
	assert.True(t, gated(h, record(0, map[uint16]uint64{76: 1}), listener.FMC234))
	assert.False(t, gated(h, record(0, map[uint16]uint64{191: 1}), listener.FMC234))
}

func TestLocationDecode(t *testing.T) {
	h := &locationHandler{}
	events := h.Decode(record(0, nil), listener.FMC650, "imei")

	require.Len(t, events, 1)
	loc := events[0].(vehicleapi.TruckLocation)
	assert.InDelta(t, 52.520008, loc.Latitude, 1e-6)
	assert.InDelta(t, 13.404954, loc.Longitude, 1e-6)
	assert.Equal(t, float64(270), loc.Heading)
	assert.Equal(t, int64(1696161600), loc.Timestamp)
}

func TestDecodeVIN(t *testing.T) {
	rec := record(0, map[uint16]uint64{
		233: 0x57414C544F4E4131, // "WALTONA1"
		234: 0x3233343536373839, // "23456789"
	})

	vin, ok := decodeVIN(rec)
	require.True(t, ok)
	assert.Equal(t, "WALTONA123456789", vin)

	_, ok = decodeVIN(record(0, nil))
	assert.False(t, ok)
}
