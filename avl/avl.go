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

package avl

import (
	"errors"
	"time"
)

const (
	// Codec8 is the standard Teltonika AVL codec with 1-byte IO ids.
	Codec8 byte = 0x08
	// Codec8E is the extended codec with 2-byte IO ids and
	// variable-length IO elements.
	Codec8E byte = 0x8E
)

var (
	// ErrInvalidIMEI is returned when the handshake payload is not a
	// syntactically valid IMEI.
	ErrInvalidIMEI = errors.New("invalid imei")

	// ErrInvalidFrame is returned when a frame fails to parse. The stream
	// is resynchronized to the next preamble so the caller can ack with a
	// zero record count and keep reading.
	ErrInvalidFrame = errors.New("invalid avl frame")
)

// Frame is one parsed AVL packet.
type Frame struct {
	CodecID byte
	Records []Record
}

// Record is a single AVL record: a GPS fix, the wire event that triggered
// the record and the IO elements sampled with it.
type Record struct {
	Timestamp      time.Time
	Priority       uint8
	Longitude      float64
	Latitude       float64
	Altitude       int16
	Angle          uint16
	Satellites     uint8
	Speed          uint16
	TriggerEventID uint16
	Elements       map[uint16]IOElement
}

// IOElement is one IO id/value pair. Fixed-size elements (1, 2, 4 and 8
// byte) are zero-extended into Value; variable-length elements from codec
// 8E carry their raw payload in Data.
type IOElement struct {
	ID    uint16
	Value uint64
	Data  []byte
}

// Uint returns the zero-extended value of a fixed-size element.
func (r *Record) Uint(id uint16) (uint64, bool) {
	el, ok := r.Elements[id]
	if !ok || el.Data != nil {
		return 0, false
	}
	return el.Value, true
}

// Bytes returns the payload of a variable-length element.
func (r *Record) Bytes(id uint16) ([]byte, bool) {
	el, ok := r.Elements[id]
	if !ok || el.Data == nil {
		return nil, false
	}
	return el.Data, true
}

// Has reports whether every given IO id is present in the record.
func (r *Record) Has(ids ...uint16) bool {
	for _, id := range ids {
		if _, ok := r.Elements[id]; !ok {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one of the given IO ids is present.
func (r *Record) HasAny(ids ...uint16) bool {
	for _, id := range ids {
		if _, ok := r.Elements[id]; ok {
			return true
		}
	}
	return false
}
