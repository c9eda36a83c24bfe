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

// Package listener defines the device-family profiles the gateway listens
// for. A profile binds a TCP port to the family-specific mapping of
// temperature sensor slots to wire IO ids; the remaining wire ids (speed,
// odometer, driver card) are identical across families.
package listener

// TempSensorPair maps one temperature sensor slot: the IO id carrying the
// hardware sensor id and the IO id carrying the raw reading.
type TempSensorPair struct {
	SensorID  uint16 `yaml:"sensorId"`
	ReadingID uint16 `yaml:"readingId"`
}

// Listener is an immutable device profile.
type Listener struct {
	Name        string           `yaml:"name"`
	Port        int              `yaml:"port"`
	TempSensors []TempSensorPair `yaml:"tempSensors"`
}

var (
	// FMC650 is the tachograph-capable 6-sensor profile.
	FMC650 = Listener{
		Name: "fmc650",
		Port: 6500,
		TempSensors: []TempSensorPair{
			{SensorID: 62, ReadingID: 72},
			{SensorID: 63, ReadingID: 73},
			{SensorID: 64, ReadingID: 74},
			{SensorID: 65, ReadingID: 75},
			{SensorID: 5, ReadingID: 6},
			{SensorID: 7, ReadingID: 8},
		},
	}

	// FMC234 is the towable profile with 4 sensor slots.
	FMC234 = Listener{
		Name: "fmc234",
		Port: 2340,
		TempSensors: []TempSensorPair{
			{SensorID: 76, ReadingID: 72},
			{SensorID: 77, ReadingID: 73},
			{SensorID: 79, ReadingID: 74},
			{SensorID: 71, ReadingID: 75},
		},
	}
)

// Defaults returns the built-in profiles.
func Defaults() []Listener {
	return []Listener{FMC650, FMC234}
}
