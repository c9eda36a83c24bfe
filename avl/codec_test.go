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
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/comcast/fleetgw/avl/avltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	io.Reader
	out bytes.Buffer
}

func (f *fakeConn) Write(p []byte) (int, error) {
	return f.out.Write(p)
}

func newFakeConn(in []byte) *fakeConn {
	return &fakeConn{Reader: bytes.NewReader(in)}
}

func TestReadIMEI(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		want    string
		wantErr error
	}{
		{
			name: "valid imei",
			in:   avltest.Handshake("354895074321654"),
			want: "354895074321654",
		},
		{
			name:    "too short",
			in:      avltest.Handshake("35489507"),
			wantErr: ErrInvalidIMEI,
		},
		{
			name:    "non digits",
			in:      avltest.Handshake("35489507432165X"),
			wantErr: ErrInvalidIMEI,
		},
		{
			name:    "zero length",
			in:      []byte{0x00, 0x00},
			wantErr: ErrInvalidIMEI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCodec(newFakeConn(tt.in))
			got, err := c.ReadIMEI()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteIMEIAck(t *testing.T) {
	conn := newFakeConn(nil)
	c := NewCodec(conn)

	require.NoError(t, c.WriteIMEIAck(true))
	require.NoError(t, c.WriteIMEIAck(false))
	assert.Equal(t, []byte{0x01, 0x00}, conn.out.Bytes())
}

func TestWriteFrameAck(t *testing.T) {
	conn := newFakeConn(nil)
	c := NewCodec(conn)

	require.NoError(t, c.WriteFrameAck(3))
	require.NoError(t, c.WriteFrameAck(0))
	assert.Equal(t, []byte{0, 0, 0, 3, 0, 0, 0, 0}, conn.out.Bytes())
}

func TestReadFrameRoundTrip(t *testing.T) {
	ts := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)
	wire := avltest.Frame(avltest.Record{
		Timestamp:      ts,
		Priority:       1,
		Longitude:      13.404954,
		Latitude:       52.520008,
		Altitude:       34,
		Angle:          270,
		Satellites:     11,
		Speed:          63,
		TriggerEventID: 0,
		U8:             map[uint16]uint8{187: 1},
		U16:            map[uint16]uint16{72: 251},
		U32:            map[uint16]uint32{192: 123456},
		U64:            map[uint16]uint64{195: 3544392526090811699},
	})

	c := NewCodec(newFakeConn(wire))
	frame, err := c.ReadFrame()
	require.NoError(t, err)

	require.Len(t, frame.Records, 1)
	rec := frame.Records[0]

	assert.Equal(t, Codec8, frame.CodecID)
	assert.True(t, ts.Equal(rec.Timestamp), "timestamp %v != %v", rec.Timestamp, ts)
	assert.Equal(t, uint8(1), rec.Priority)
	assert.InDelta(t, 13.404954, rec.Longitude, 1e-6)
	assert.InDelta(t, 52.520008, rec.Latitude, 1e-6)
	assert.Equal(t, int16(34), rec.Altitude)
	assert.Equal(t, uint16(270), rec.Angle)
	assert.Equal(t, uint8(11), rec.Satellites)
	assert.Equal(t, uint16(63), rec.Speed)
	assert.Equal(t, uint16(0), rec.TriggerEventID)

	v, ok := rec.Uint(187)
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	v, ok = rec.Uint(72)
	require.True(t, ok)
	assert.Equal(t, uint64(251), v)

	v, ok = rec.Uint(192)
	require.True(t, ok)
	assert.Equal(t, uint64(123456), v)

	v, ok = rec.Uint(195)
	require.True(t, ok)
	assert.Equal(t, uint64(3544392526090811699), v)
}

func TestReadFrameNegativeCoordinates(t *testing.T) {
	wire := avltest.Frame(avltest.Record{
		Timestamp: time.Unix(1696161600, 0),
		Longitude: -71.057083,
		Latitude:  -33.447487,
	})

	c := NewCodec(newFakeConn(wire))
	frame, err := c.ReadFrame()
	require.NoError(t, err)

	rec := frame.Records[0]
	assert.InDelta(t, -71.057083, rec.Longitude, 1e-6)
	assert.InDelta(t, -33.447487, rec.Latitude, 1e-6)
}

func TestReadFrameSkipsHeartbeat(t *testing.T) {
	wire := avltest.Frame(avltest.Record{Timestamp: time.Unix(1696161600, 0)})
	in := append([]byte{0xFF, 0xFF}, wire...)

	c := NewCodec(newFakeConn(in))
	frame, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Len(t, frame.Records, 1)
}

func TestReadFrameGarbageThenValid(t *testing.T) {
	valid := avltest.Frame(avltest.Record{Timestamp: time.Unix(1696161600, 0)})
	in := append([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42}, valid...)

	c := NewCodec(newFakeConn(in))

	_, err := c.ReadFrame()
	require.ErrorIs(t, err, ErrInvalidFrame)

	frame, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Len(t, frame.Records, 1)
}

func TestReadFrameCRCMismatch(t *testing.T) {
	wire := avltest.Frame(avltest.Record{Timestamp: time.Unix(1696161600, 0)})
	wire[len(wire)-1] ^= 0xFF

	c := NewCodec(newFakeConn(wire))
	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestReadFrameRecordCountMismatch(t *testing.T) {
	wire := avltest.Frame(avltest.Record{Timestamp: time.Unix(1696161600, 0)})

	// flip the trailing record count inside the data field and fix the CRC
	data := wire[8 : len(wire)-4]
	data[len(data)-1] = 9
	crc := crc16(data)
	wire[len(wire)-2] = byte(crc >> 8)
	wire[len(wire)-1] = byte(crc)

	c := NewCodec(newFakeConn(wire))
	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestReadFrameEOF(t *testing.T) {
	c := NewCodec(newFakeConn(nil))
	_, err := c.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadFrameMultipleRecordsInOrder(t *testing.T) {
	recs := make([]avltest.Record, 3)
	for i := range recs {
		recs[i] = avltest.Record{Timestamp: time.Unix(int64(1696161600+i), 0)}
	}

	c := NewCodec(newFakeConn(avltest.Frame(recs...)))
	frame, err := c.ReadFrame()
	require.NoError(t, err)

	require.Len(t, frame.Records, 3)
	for i, rec := range frame.Records {
		assert.Equal(t, int64(1696161600+i), rec.Timestamp.Unix())
	}
}
