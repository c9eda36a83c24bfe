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

package vehicleapi

import (
	"time"

	"github.com/google/uuid"
)

// TrackableType tells which kind of fleet asset a device is mounted on.
type TrackableType string

const (
	TrackableTypeTruck   TrackableType = "Truck"
	TrackableTypeTowable TrackableType = "Towable"
)

// Trackable is the server-side identity a device's data belongs to.
type Trackable struct {
	ID   uuid.UUID     `json:"id"`
	IMEI string        `json:"imei"`
	Type TrackableType `json:"trackableType"`
}

// TruckLocation is a GPS fix.
type TruckLocation struct {
	Timestamp int64   `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Heading   float64 `json:"heading"`
}

func (l TruckLocation) EventTime() time.Time { return time.Unix(l.Timestamp, 0).UTC() }

// TruckSpeed is a speed sample in km/h.
type TruckSpeed struct {
	Timestamp int64   `json:"timestamp"`
	Speed     float64 `json:"speed"`
}

func (s TruckSpeed) EventTime() time.Time { return time.Unix(s.Timestamp, 0).UTC() }

// DriveState is the tachograph working state of driver 1.
type DriveState string

const (
	DriveStateRest            DriveState = "Rest"
	DriveStateDriverAvailable DriveState = "DriverAvailable"
	DriveStateWork            DriveState = "Work"
	DriveStateDrive           DriveState = "Drive"
	DriveStateError           DriveState = "Error"
	DriveStateNotAvailable    DriveState = "NotAvailable"
)

// TruckDriveState is a drive-state change of driver 1.
type TruckDriveState struct {
	Timestamp    int64      `json:"timestamp"`
	State        DriveState `json:"state"`
	DriverCardID string     `json:"driverCardId,omitempty"`
}

func (d TruckDriveState) EventTime() time.Time { return time.Unix(d.Timestamp, 0).UTC() }

// TruckDriverCard is a driver-card insertion or removal. RemovedAt is set
// only on removals, as an RFC3339 timestamp; the card id is empty on
// removals because the server resolves the currently inserted card.
type TruckDriverCard struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	RemovedAt string `json:"removedAt,omitempty"`
}

func (c TruckDriverCard) EventTime() time.Time { return time.Unix(c.Timestamp, 0).UTC() }

// TruckOdometerReading is a total-odometer sample in kilometers.
type TruckOdometerReading struct {
	Timestamp  int64   `json:"timestamp"`
	Kilometers float64 `json:"km"`
}

func (o TruckOdometerReading) EventTime() time.Time { return time.Unix(o.Timestamp, 0).UTC() }

// TemperatureReading is one sensor sample in Celsius. The hardware sensor
// id is the decimal rendering of the 1-wire serial the device reports.
type TemperatureReading struct {
	SourceIMEI       string        `json:"sourceImei"`
	HardwareSensorID string        `json:"hardwareSensorId"`
	Value            float64       `json:"value"`
	Timestamp        int64         `json:"timestamp"`
	SourceType       TrackableType `json:"sourceType"`
}

func (r TemperatureReading) EventTime() time.Time { return time.Unix(r.Timestamp, 0).UTC() }
