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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// maxFrameSize bounds the advertised data length of a frame. Anything
	// larger is treated as a framing error rather than an allocation request.
	maxFrameSize = 1 << 16

	heartbeatByte = 0xFF
)

// Codec reads the Teltonika AVL handshake and frame stream from a byte
// transport and writes the matching acks. It is not safe for concurrent
// use; each connection owns exactly one Codec.
type Codec struct {
	rw io.ReadWriter
	br *bufio.Reader
}

func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		rw: rw,
		br: bufio.NewReaderSize(rw, 4096),
	}
}

// ReadIMEI reads the handshake: a 2-byte big-endian length followed by the
// IMEI digits. Devices are authenticated no further than this syntactic
// check; a malformed payload yields ErrInvalidIMEI.
func (c *Codec) ReadIMEI() (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return "", fmt.Errorf("reading imei length: %w", err)
	}

	length := int(binary.BigEndian.Uint16(hdr[:]))
	if length == 0 || length > 32 {
		return "", fmt.Errorf("%w: length %d", ErrInvalidIMEI, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(c.br, buf); err != nil {
		return "", fmt.Errorf("reading imei payload: %w", err)
	}

	imei := string(buf)
	if !validIMEI(imei) {
		return imei, fmt.Errorf("%w: %q", ErrInvalidIMEI, imei)
	}

	return imei, nil
}

// WriteIMEIAck replies to the handshake: 0x01 accepts the device, 0x00
// rejects it.
func (c *Codec) WriteIMEIAck(accepted bool) error {
	b := []byte{0x00}
	if accepted {
		b[0] = 0x01
	}
	_, err := c.rw.Write(b)
	return err
}

// WriteFrameAck replies to a frame with the accepted record count as a
// big-endian int32. A count of 0 asks the device to resend.
func (c *Codec) WriteFrameAck(recordCount int) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(recordCount))
	_, err := c.rw.Write(b[:])
	return err
}

// ReadFrame reads and parses the next AVL frame. Single 0xFF heartbeat
// bytes ahead of the preamble are consumed silently. Parse failures are
// reported as ErrInvalidFrame with the stream already skipped forward to
// the next plausible preamble; transport failures are returned as-is.
func (c *Codec) ReadFrame() (*Frame, error) {
	for {
		b, err := c.br.Peek(1)
		if err != nil {
			return nil, err
		}
		if b[0] != heartbeatByte {
			break
		}
		if _, err := c.br.Discard(1); err != nil {
			return nil, err
		}
	}

	// Check the preamble before consuming it so garbage never swallows the
	// start of the frame that follows it.
	pre, err := c.br.Peek(4)
	if err != nil {
		return nil, err
	}
	if pre[0] != 0 || pre[1] != 0 || pre[2] != 0 || pre[3] != 0 {
		if _, err := c.br.Discard(1); err != nil {
			return nil, err
		}
		if err := c.resync(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: bad preamble", ErrInvalidFrame)
	}

	var hdr [8]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return nil, err
	}

	dataLen := int(binary.BigEndian.Uint32(hdr[4:]))
	if dataLen < 3 || dataLen > maxFrameSize {
		if err := c.resync(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: data length %d", ErrInvalidFrame, dataLen)
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(c.br, data); err != nil {
		return nil, err
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(c.br, crcBuf[:]); err != nil {
		return nil, err
	}

	if got, want := crc16(data), binary.BigEndian.Uint32(crcBuf[:]); uint32(got) != want {
		return nil, fmt.Errorf("%w: crc mismatch: got 0x%04x want 0x%04x", ErrInvalidFrame, got, want)
	}

	frame, err := parseData(data)
	if err != nil {
		return nil, err
	}

	return frame, nil
}

// resync discards bytes until the buffered stream starts with the 4-byte
// zero preamble, so that the next ReadFrame starts clean after garbage.
func (c *Codec) resync() error {
	for {
		b, err := c.br.Peek(4)
		if err != nil {
			return err
		}
		if b[0] == 0 && b[1] == 0 && b[2] == 0 && b[3] == 0 {
			return nil
		}
		if _, err := c.br.Discard(1); err != nil {
			return err
		}
	}
}

func parseData(data []byte) (*Frame, error) {
	p := &parser{buf: data}

	codecID, err := p.u8()
	if err != nil {
		return nil, err
	}
	if codecID != Codec8 && codecID != Codec8E {
		return nil, fmt.Errorf("%w: unsupported codec 0x%02x", ErrInvalidFrame, codecID)
	}

	count, err := p.u8()
	if err != nil {
		return nil, err
	}

	frame := &Frame{
		CodecID: codecID,
		Records: make([]Record, 0, count),
	}

	for i := 0; i < int(count); i++ {
		rec, err := p.record(codecID)
		if err != nil {
			return nil, err
		}
		frame.Records = append(frame.Records, rec)
	}

	count2, err := p.u8()
	if err != nil {
		return nil, err
	}
	if count2 != count {
		return nil, fmt.Errorf("%w: record count mismatch: %d != %d", ErrInvalidFrame, count, count2)
	}

	return frame, nil
}

type parser struct {
	buf []byte
	off int
}

func (p *parser) need(n int) error {
	if p.off+n > len(p.buf) {
		return fmt.Errorf("%w: truncated at offset %d", ErrInvalidFrame, p.off)
	}
	return nil
}

func (p *parser) u8() (uint8, error) {
	if err := p.need(1); err != nil {
		return 0, err
	}
	v := p.buf[p.off]
	p.off++
	return v, nil
}

func (p *parser) u16() (uint16, error) {
	if err := p.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(p.buf[p.off:])
	p.off += 2
	return v, nil
}

func (p *parser) u32() (uint32, error) {
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(p.buf[p.off:])
	p.off += 4
	return v, nil
}

func (p *parser) u64() (uint64, error) {
	if err := p.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(p.buf[p.off:])
	p.off += 8
	return v, nil
}

func (p *parser) bytes(n int) ([]byte, error) {
	if err := p.need(n); err != nil {
		return nil, err
	}
	v := p.buf[p.off : p.off+n]
	p.off += n
	return v, nil
}

// ioID reads an IO element id: codec 8 uses 1 byte, codec 8E uses 2.
func (p *parser) ioID(codecID byte) (uint16, error) {
	if codecID == Codec8E {
		return p.u16()
	}
	v, err := p.u8()
	return uint16(v), err
}

func (p *parser) record(codecID byte) (Record, error) {
	var rec Record

	ts, err := p.u64()
	if err != nil {
		return rec, err
	}
	// wire timestamps are milliseconds since epoch
	rec.Timestamp = time.UnixMilli(int64(ts)).UTC()

	if rec.Priority, err = p.u8(); err != nil {
		return rec, err
	}

	lon, err := p.u32()
	if err != nil {
		return rec, err
	}
	lat, err := p.u32()
	if err != nil {
		return rec, err
	}
	rec.Longitude = float64(int32(lon)) / 1e7
	rec.Latitude = float64(int32(lat)) / 1e7

	alt, err := p.u16()
	if err != nil {
		return rec, err
	}
	rec.Altitude = int16(alt)

	if rec.Angle, err = p.u16(); err != nil {
		return rec, err
	}
	if rec.Satellites, err = p.u8(); err != nil {
		return rec, err
	}
	if rec.Speed, err = p.u16(); err != nil {
		return rec, err
	}

	if rec.TriggerEventID, err = p.ioID(codecID); err != nil {
		return rec, err
	}
	if _, err = p.ioID(codecID); err != nil { // total IO count, unused
		return rec, err
	}

	rec.Elements = make(map[uint16]IOElement)

	for _, size := range []int{1, 2, 4, 8} {
		n, err := p.ioID(codecID)
		if err != nil {
			return rec, err
		}
		for i := 0; i < int(n); i++ {
			id, err := p.ioID(codecID)
			if err != nil {
				return rec, err
			}
			var val uint64
			switch size {
			case 1:
				v, err := p.u8()
				if err != nil {
					return rec, err
				}
				val = uint64(v)
			case 2:
				v, err := p.u16()
				if err != nil {
					return rec, err
				}
				val = uint64(v)
			case 4:
				v, err := p.u32()
				if err != nil {
					return rec, err
				}
				val = uint64(v)
			case 8:
				if val, err = p.u64(); err != nil {
					return rec, err
				}
			}
			rec.Elements[id] = IOElement{ID: id, Value: val}
		}
	}

	if codecID == Codec8E {
		n, err := p.u16()
		if err != nil {
			return rec, err
		}
		for i := 0; i < int(n); i++ {
			id, err := p.u16()
			if err != nil {
				return rec, err
			}
			length, err := p.u16()
			if err != nil {
				return rec, err
			}
			data, err := p.bytes(int(length))
			if err != nil {
				return rec, err
			}
			rec.Elements[id] = IOElement{ID: id, Data: append([]byte(nil), data...)}
		}
	}

	return rec, nil
}

// validIMEI checks the 15-digit shape of the handshake credential. The
// check digit is deliberately not enforced; field devices with factory
// serials that fail the checksum still have to be ingested.
func validIMEI(s string) bool {
	if len(s) != 15 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
