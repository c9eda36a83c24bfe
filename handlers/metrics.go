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

package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "records_total",
		Help:      "AVL records processed, by listener profile",
	}, []string{"listener"})

	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "events_sent_total",
		Help:      "Events delivered to the Vehicle Management API",
	}, []string{"handler"})

	eventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "events_persisted_total",
		Help:      "Events written to the failed-event store",
	}, []string{"handler"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "events_dropped_total",
		Help:      "Events lost because the failed-event store was unavailable",
	}, []string{"handler"})

	replaySucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "replay_succeeded_total",
		Help:      "Failed events successfully replayed",
	}, []string{"handler"})

	replayFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetgw",
		Name:      "replay_failed_total",
		Help:      "Replay attempts that failed again",
	}, []string{"handler"})
)
