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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fleetgw",
		Name:      "device_connections_active",
		Help:      "Device connections currently past the IMEI handshake.",
	}, []string{"listener"})

	handshakesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "handshakes_rejected_total",
		Help:      "Connections dropped during the IMEI handshake.",
	}, []string{"listener"})

	framesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "frames_accepted_total",
		Help:      "AVL frames that parsed and verified.",
	}, []string{"listener"})

	framesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "frames_rejected_total",
		Help:      "AVL frames rejected with a zero ack.",
	}, []string{"listener"})
)
