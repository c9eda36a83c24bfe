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

// Package vehicleapi is the client for the downstream Vehicle Management
// HTTP API. It owns the request plumbing and the idempotency rules the
// event handlers rely on: 409 on a create and 404 on a delete count as
// delivered.
package vehicleapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotFound is returned when the API has no trackable for an IMEI.
var ErrNotFound = errors.New("trackable not found")

// StatusError is a non-2xx response that is not covered by an idempotency
// rule. Transient reports whether a retry may succeed without outside
// intervention.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP status %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// KeyFunc supplies the current API key; it is a func so a Vault-backed
// deployment can rotate the key under a running client.
type KeyFunc func() string

// Client is the shared, pooled Vehicle Management API client.
type Client struct {
	baseURL string
	apiKey  KeyFunc
	http    *retryablehttp.Client
}

func New(baseURL string, apiKey KeyFunc) *Client {
	tr := &http.Transport{
		Dial:                  (&net.Dialer{Timeout: 3 * time.Second}).Dial,
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			Renegotiation: tls.RenegotiateOnceAsClient,
		},
		TLSHandshakeTimeout: 10 * time.Second,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = tr
	retryClient.HTTPClient.Timeout = 30 * time.Second
	retryClient.Logger = nil
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 2 * time.Second
	// the failed-event store is the durable retry path; keep in-flight
	// retries short
	retryClient.RetryMax = 1

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    retryClient,
	}
}

// DisableRetries turns off in-flight HTTP retries so failures surface
// immediately. Tests use this; production keeps the single retry.
func (c *Client) DisableRetries() {
	c.http.RetryMax = 0
	c.http.RetryWaitMin = 0
	c.http.RetryWaitMax = 0
}

// GetTrackable resolves an IMEI to its trackable, or ErrNotFound.
func (c *Client) GetTrackable(ctx context.Context, imei string) (*Trackable, error) {
	path := "/v1/trackables/" + imei
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer emptyAndCloseBody(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &StatusError{StatusCode: resp.StatusCode, Method: http.MethodGet, Path: path}
	}

	var trackable Trackable
	if err := json.NewDecoder(resp.Body).Decode(&trackable); err != nil {
		return nil, fmt.Errorf("decoding trackable for %s: %w", imei, err)
	}
	return &trackable, nil
}

// CreateLocation posts a GPS fix.
func (c *Client) CreateLocation(ctx context.Context, truckID uuid.UUID, loc TruckLocation) error {
	return c.post(ctx, fmt.Sprintf("/v1/trucks/%s/locations", truckID), loc, false)
}

// CreateSpeed posts a speed sample.
func (c *Client) CreateSpeed(ctx context.Context, truckID uuid.UUID, speed TruckSpeed) error {
	return c.post(ctx, fmt.Sprintf("/v1/trucks/%s/speeds", truckID), speed, false)
}

// CreateDriveState posts a drive-state change.
func (c *Client) CreateDriveState(ctx context.Context, truckID uuid.UUID, state TruckDriveState) error {
	return c.post(ctx, fmt.Sprintf("/v1/trucks/%s/driveStates", truckID), state, false)
}

// CreateDriverCard posts a card insertion. 409 means the card is already
// registered and counts as success.
func (c *Client) CreateDriverCard(ctx context.Context, truckID uuid.UUID, card TruckDriverCard) error {
	return c.post(ctx, fmt.Sprintf("/v1/trucks/%s/driverCards", truckID), card, true)
}

// DeleteDriverCard removes the inserted card. An empty cardID lets the
// server resolve the currently inserted one. 404 means it is already gone
// and counts as success.
func (c *Client) DeleteDriverCard(ctx context.Context, truckID uuid.UUID, cardID string, removedAt time.Time) error {
	path := fmt.Sprintf("/v1/trucks/%s/driverCards/%s", truckID, cardID)
	headers := map[string]string{
		"X-Driver-Card-Removed-At": removedAt.UTC().Format(time.RFC3339),
	}

	resp, err := c.do(ctx, http.MethodDelete, path, nil, headers)
	if err != nil {
		return err
	}
	defer emptyAndCloseBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Method: http.MethodDelete, Path: path}
	}
	return nil
}

// CreateOdometerReading posts an odometer sample.
func (c *Client) CreateOdometerReading(ctx context.Context, truckID uuid.UUID, reading TruckOdometerReading) error {
	return c.post(ctx, fmt.Sprintf("/v1/trucks/%s/odometerReadings", truckID), reading, false)
}

// CreateTemperatureReading posts a sensor sample. Temperature readings are
// not scoped under a truck because towables report them too.
func (c *Client) CreateTemperatureReading(ctx context.Context, reading TemperatureReading) error {
	return c.post(ctx, "/v1/temperatureReadings", reading, false)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, conflictOK bool) error {
	resp, err := c.do(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return err
	}
	defer emptyAndCloseBody(resp)

	if conflictOK && resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Method: http.MethodPost, Path: path}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s payload: %w", method, path, err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("building %s %s request: %w", method, path, err)
	}

	req.Header.Set("X-API-Key", c.apiKey())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// emptyAndCloseBody drains the response so keep-alive connections can be
// reused.
func emptyAndCloseBody(resp *http.Response) {
	if resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}
