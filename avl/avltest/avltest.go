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

// Package avltest builds wire-format AVL byte streams for tests, playing
// the device side of the protocol.
package avltest

import (
	"bytes"
	"encoding/binary"
	"sort"
	"time"
)

// Record is the device-side description of one AVL record.
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

	// fixed-size IO elements by width
	U8  map[uint16]uint8
	U16 map[uint16]uint16
	U32 map[uint16]uint32
	U64 map[uint16]uint64
}

// Handshake returns the 2-byte length prefix plus the IMEI bytes.
func Handshake(imei string) []byte {
	buf := make([]byte, 2+len(imei))
	binary.BigEndian.PutUint16(buf, uint16(len(imei)))
	copy(buf[2:], imei)
	return buf
}

// Frame encodes records as a codec 8 frame: preamble, data length, data,
// CRC-16.
func Frame(records ...Record) []byte {
	var data bytes.Buffer

	data.WriteByte(0x08)
	data.WriteByte(byte(len(records)))
	for _, rec := range records {
		writeRecord(&data, rec)
	}
	data.WriteByte(byte(len(records)))

	var out bytes.Buffer
	out.Write([]byte{0, 0, 0, 0})
	binary.Write(&out, binary.BigEndian, uint32(data.Len()))
	out.Write(data.Bytes())
	binary.Write(&out, binary.BigEndian, uint32(crc16(data.Bytes())))
	return out.Bytes()
}

func writeRecord(w *bytes.Buffer, rec Record) {
	binary.Write(w, binary.BigEndian, uint64(rec.Timestamp.UnixMilli()))
	w.WriteByte(rec.Priority)
	binary.Write(w, binary.BigEndian, int32(rec.Longitude*1e7))
	binary.Write(w, binary.BigEndian, int32(rec.Latitude*1e7))
	binary.Write(w, binary.BigEndian, rec.Altitude)
	binary.Write(w, binary.BigEndian, rec.Angle)
	w.WriteByte(rec.Satellites)
	binary.Write(w, binary.BigEndian, rec.Speed)

	w.WriteByte(byte(rec.TriggerEventID))
	w.WriteByte(byte(len(rec.U8) + len(rec.U16) + len(rec.U32) + len(rec.U64)))

	w.WriteByte(byte(len(rec.U8)))
	for _, id := range sortedIDs8(rec.U8) {
		w.WriteByte(byte(id))
		w.WriteByte(rec.U8[id])
	}

	w.WriteByte(byte(len(rec.U16)))
	for _, id := range sortedIDs16(rec.U16) {
		w.WriteByte(byte(id))
		binary.Write(w, binary.BigEndian, rec.U16[id])
	}

	w.WriteByte(byte(len(rec.U32)))
	for _, id := range sortedIDs32(rec.U32) {
		w.WriteByte(byte(id))
		binary.Write(w, binary.BigEndian, rec.U32[id])
	}

	w.WriteByte(byte(len(rec.U64)))
	for _, id := range sortedIDs64(rec.U64) {
		w.WriteByte(byte(id))
		binary.Write(w, binary.BigEndian, rec.U64[id])
	}
}

func sortedIDs8(m map[uint16]uint8) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs16(m map[uint16]uint16) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs32(m map[uint16]uint32) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs64(m map[uint16]uint64) []uint16 {
	ids := make([]uint16, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// crc16 mirrors the gateway-side CRC so encoded frames verify.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
