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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPersistAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eventTime := time.Unix(1696161600, 0)
	id, err := s.Persist(ctx, "354895074321654", "location", eventTime, []byte(`{"lat":52.5}`))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	events, err := s.List(ctx, "354895074321654", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, int64(1696161600), ev.Timestamp)
	assert.Equal(t, "354895074321654", ev.IMEI)
	assert.Equal(t, "location", ev.HandlerName)
	assert.Equal(t, `{"lat":52.5}`, ev.EventData)
	assert.NotZero(t, ev.AttemptedAt)
}

func TestListHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Persist(ctx, "354895074321654", "speed", time.Now(), []byte(`{}`))
		require.NoError(t, err)
	}

	events, err := s.List(ctx, "354895074321654", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// 0 means unlimited
	events, err = s.List(ctx, "354895074321654", 0)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestListScopedByIMEI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Persist(ctx, "354895074321654", "speed", time.Now(), []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Persist(ctx, "111111111111111", "speed", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	events, err := s.List(ctx, "354895074321654", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "354895074321654", events[0].IMEI)
}

func TestNextFailedIMEI(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	imei, err := s.NextFailedIMEI(ctx)
	require.NoError(t, err)
	assert.Empty(t, imei)

	idA, err := s.Persist(ctx, "111111111111111", "speed", time.Now(), []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Persist(ctx, "222222222222222", "speed", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	// most recently attempted wins
	require.NoError(t, s.UpdateAttemptedAt(ctx, idA, time.Now().Add(time.Hour)))

	imei, err = s.NextFailedIMEI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "111111111111111", imei)
}

func TestFailedIMEIsDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Persist(ctx, "111111111111111", "speed", time.Now(), []byte(`{}`))
		require.NoError(t, err)
	}
	_, err := s.Persist(ctx, "222222222222222", "speed", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	imeis, err := s.FailedIMEIs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, imeis, 2)
}

func TestBacklogSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Persist(ctx, "111111111111111", "speed", time.Now(), []byte(`{}`))
		require.NoError(t, err)
	}
	_, err := s.Persist(ctx, "222222222222222", "location", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	backlogs, err := s.BacklogSummary(ctx, 10)
	require.NoError(t, err)
	require.Len(t, backlogs, 2)

	byIMEI := map[string]int{}
	for _, b := range backlogs {
		byIMEI[b.IMEI] = b.Pending
		assert.NotZero(t, b.AttemptedAt)
	}
	assert.Equal(t, 3, byIMEI["111111111111111"])
	assert.Equal(t, 1, byIMEI["222222222222222"])
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Persist(ctx, "354895074321654", "odometer", time.Now(), []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	// deleting a missing row is not an error
	assert.NoError(t, s.Delete(ctx, id))
}

func TestConcurrentPersist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := s.Persist(ctx, "354895074321654", "location", time.Now(), []byte(`{}`))
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}

	n, err := s.Count(ctx, "354895074321654")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}
