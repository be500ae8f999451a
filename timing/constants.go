/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package timing names every timing constant in the specification's
// timing table and provides the tick drivers the producer and consumer
// engines build their state machines on top of.
package timing

import "time"

// Transform cadence, Table A-2.
const (
	// TransformMin is the fastest a producer may retransmit a point's
	// transform data.
	TransformMin = time.Millisecond
	// TransformMax is the slowest cadence still considered "live" traffic.
	TransformMax = 50 * time.Millisecond
	// TransformDefault is the cadence engines use absent other guidance.
	TransformDefault = 20 * time.Millisecond
)

// Keepalive is the nominal keepalive interval. A producer with nothing new
// to say re-sends each owned system's current values with the
// Full-Point-Set bit once KeepaliveMin has passed since its last send;
// both engines also run their sweep ticker at this interval.
const Keepalive = 2900 * time.Millisecond

// KeepaliveMin/KeepaliveMax bound the jitter window implementations may
// apply around Keepalive.
const (
	KeepaliveMin = 2800 * time.Millisecond
	KeepaliveMax = 3000 * time.Millisecond
)

// DataLossTimeout is how long a consumer waits without hearing from a
// point's winning producer before treating that point's data as stale.
const DataLossTimeout = 3 * Keepalive / 2 // 4350ms: 1.5x the keepalive interval

// RemovalTimeout is 2x DataLossTimeout: how long a stale point is kept
// around (still reported to callers as stale) before being forgotten
// entirely.
const RemovalTimeout = 2 * DataLossTimeout

// AdvertisementInterval is how often a consumer (re-)announces its
// supported modules via Module Advertisement.
const AdvertisementInterval = 10 * time.Second

// AdvertisementStartupWait is how long a newly started component waits
// before sending its first advertisement, to let the network settle.
const AdvertisementStartupWait = 12 * time.Second

// AdvertisementTimeout is how long an incomplete folio is kept in an
// engine's reassembler before the sweep ticker discards it.
const AdvertisementTimeout = 5 * time.Second

// ModuleListTimeout is how long a component's last-advertised module list
// is trusted before it is dropped from the container.
const ModuleListTimeout = 30 * time.Second
