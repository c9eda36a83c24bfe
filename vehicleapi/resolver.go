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
	"context"

	"go.uber.org/zap"
)

// Resolver maps a connection's IMEI to its trackable, caching the answer
// for the connection's lifetime. An unresolved IMEI is retried on the
// next lookup (one lookup per frame, not on a timer). Resolver is owned
// by a single worker goroutine and needs no locking.
type Resolver struct {
	client    *Client
	imei      string
	trackable *Trackable
}

func NewResolver(client *Client, imei string) *Resolver {
	return &Resolver{client: client, imei: imei}
}

// Trackable returns the cached trackable, looking it up on first use.
// nil means the API does not (yet) know this IMEI; events should be
// cached for later replay.
func (r *Resolver) Trackable(ctx context.Context) *Trackable {
	if r.trackable != nil {
		return r.trackable
	}

	trackable, err := r.client.GetTrackable(ctx, r.imei)
	if err != nil {
		zap.L().Warn("trackable not resolved",
			zap.String("imei", r.imei),
			zap.Error(err))
		return nil
	}

	r.trackable = trackable
	return r.trackable
}
