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

package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/comcast/fleetgw/avl/avltest"
	"github.com/comcast/fleetgw/handlers"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/store"
	"github.com/comcast/fleetgw/vehicleapi"
	"github.com/comcast/fleetgw/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIMEI = "354895074321654"

type fakeAPI struct {
	mu        sync.Mutex
	trackable *vehicleapi.Trackable
	requests  []string
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if strings.HasPrefix(r.URL.Path, "/v1/trackables/") {
			if f.trackable == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(f.trackable)
			return
		}

		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeAPI) calls(pathPart string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.Contains(req, pathPart) {
			n++
		}
	}
	return n
}

// startServer runs a gateway on an ephemeral port and returns its address.
func startServer(t *testing.T, profile listener.Listener, api *fakeAPI) string {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := vehicleapi.New(srv.URL, func() string { return "key" })
	client.DisableRetries()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	registry := handlers.NewRegistry(client, st)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	gw := New(profile, client, registry, worker.Config{QueueSize: 64, PurgeChunk: 500})
	go gw.Serve(ctx, ln)

	return ln.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func handshake(t *testing.T, conn net.Conn, imei string) byte {
	t.Helper()
	_, err := conn.Write(avltest.Handshake(imei))
	require.NoError(t, err)

	ack := make([]byte, 1)
	_, err = io.ReadFull(conn, ack)
	require.NoError(t, err)
	return ack[0]
}

func readFrameAck(t *testing.T, conn net.Conn) uint32 {
	t.Helper()
	ack := make([]byte, 4)
	_, err := io.ReadFull(conn, ack)
	require.NoError(t, err)
	return binary.BigEndian.Uint32(ack)
}

func TestDeviceSessionDeliversEvents(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	frame := avltest.Frame(avltest.Record{
		Timestamp: time.Unix(1696161600, 0),
		Latitude:  52.52,
		Longitude: 13.40,
		U16:       map[uint16]uint16{191: 80},
	})
	_, err := conn.Write(frame)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), readFrameAck(t, conn))

	require.Eventually(t, func() bool {
		return api.calls("/locations") == 1 && api.calls("/speeds") == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestInvalidIMEIRejectsConnection(t *testing.T) {
	api := &fakeAPI{}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	assert.Equal(t, byte(0x00), handshake(t, conn, "35489507432165X"))

	// connection is closed after the reject
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.Error(t, err)
}

func TestGarbageFrameGetsZeroAckThenRecovers(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	_, err := conn.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42})
	require.NoError(t, err)
	valid := avltest.Frame(avltest.Record{
		Timestamp: time.Unix(1696161600, 0),
		Latitude:  48.1,
		Longitude: 11.5,
	})
	_, err = conn.Write(valid)
	require.NoError(t, err)

	assert.Equal(t, uint32(0), readFrameAck(t, conn))
	assert.Equal(t, uint32(1), readFrameAck(t, conn))

	require.Eventually(t, func() bool {
		return api.calls("/locations") == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHeartbeatGetsNoReply(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	// heartbeat bytes are consumed silently; the next real frame is acked
	_, err := conn.Write([]byte{0xFF, 0xFF})
	require.NoError(t, err)
	_, err = conn.Write(avltest.Frame(avltest.Record{
		Timestamp: time.Unix(1696161600, 0),
	}))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), readFrameAck(t, conn))
}

func TestFrameAckReportsRecordCount(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	base := time.Unix(1696161600, 0)
	frame := avltest.Frame(
		avltest.Record{Timestamp: base},
		avltest.Record{Timestamp: base.Add(time.Second)},
		avltest.Record{Timestamp: base.Add(2 * time.Second)},
	)
	_, err := conn.Write(frame)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), readFrameAck(t, conn))

	require.Eventually(t, func() bool {
		return api.calls("/locations") == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownUnblocksIdleDevice(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := vehicleapi.New(srv.URL, func() string { return "key" })
	client.DisableRetries()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	gw := New(listener.FMC650, client, handlers.NewRegistry(client, st), worker.Config{QueueSize: 64})

	served := make(chan error, 1)
	go func() { served <- gw.Serve(ctx, ln) }()

	conn := dial(t, ln.Addr().String())
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	// the device sends nothing; shutdown must not wait for it
	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop with an idle device connected")
	}
}

func TestBacklogDrainsAfterDisconnect(t *testing.T) {
	api := &fakeAPI{trackable: &vehicleapi.Trackable{
		ID: uuid.New(), IMEI: testIMEI, Type: vehicleapi.TrackableTypeTruck,
	}}
	addr := startServer(t, listener.FMC650, api)

	conn := dial(t, addr)
	require.Equal(t, byte(0x01), handshake(t, conn, testIMEI))

	base := time.Unix(1696161600, 0)
	for i := 0; i < 5; i++ {
		_, err := conn.Write(avltest.Frame(avltest.Record{
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
		require.NoError(t, err)
		readFrameAck(t, conn)
	}
	conn.Close()

	// queued frames are still processed after the peer hangs up
	require.Eventually(t, func() bool {
		return api.calls("/locations") == 5
	}, 5*time.Second, 10*time.Millisecond)
}
