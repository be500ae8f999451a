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

// Package stats collects producer/consumer engine counters for
// monitoring, the way ptp4u/sptp expose a counters struct over JSON and
// Prometheus rather than leaving operators to grep logs.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// syncMapInt64 is a mutex-guarded string-keyed int64 map, generalized
// from the teacher's int-keyed syncMapInt64 (ptp4u/stats/stats.go) since
// our per-kind keys are message/module names rather than small integer
// message-type constants.
type syncMapInt64 struct {
	mu sync.Mutex
	m  map[string]int64
}

func (s *syncMapInt64) init() {
	s.m = make(map[string]int64)
}

func (s *syncMapInt64) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	return keys
}

func (s *syncMapInt64) load(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key]
}

func (s *syncMapInt64) inc(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key]++
}

func (s *syncMapInt64) dec(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key]--
}

func (s *syncMapInt64) store(key string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

func (s *syncMapInt64) copy(dst *syncMapInt64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	dst.m = make(map[string]int64, len(s.m))
	for k, v := range s.m {
		dst.m[k] = v
	}
}

func (s *syncMapInt64) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.m {
		s.m[k] = 0
	}
}

func (s *syncMapInt64) toMap(prefix string, dst map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.m {
		dst[fmt.Sprintf("%s.%s", prefix, k)] = v
	}
}

// message kind keys used with rx/tx/decodeErrors.
const (
	KindTransform = "transform"
	KindModuleAd  = "module_ad"
	KindNameAd    = "name_ad"
	KindSystemAd  = "system_ad"
)

// counters is the full set of OTP engine counters, mirroring the shape
// of ptp4u/stats/stats.go's counters struct: a handful of per-kind
// syncMapInt64 maps plus plain atomic int64 gauges.
type counters struct {
	rx           syncMapInt64
	tx           syncMapInt64
	decodeErrors syncMapInt64

	foliosComplete int64
	foliosDropped  int64
	foliosStale    int64
	pagesDuplicate int64

	arbitrationChanges int64

	activeComponents int64
	activePoints     int64
	activeSystems    int64

	componentsExpired int64
	pointsExpired     int64
}

func (c *counters) init() {
	c.rx.init()
	c.tx.init()
	c.decodeErrors.init()
}

func (c *counters) reset() {
	c.rx.reset()
	c.tx.reset()
	c.decodeErrors.reset()
	atomic.StoreInt64(&c.foliosComplete, 0)
	atomic.StoreInt64(&c.foliosDropped, 0)
	atomic.StoreInt64(&c.foliosStale, 0)
	atomic.StoreInt64(&c.pagesDuplicate, 0)
	atomic.StoreInt64(&c.arbitrationChanges, 0)
	atomic.StoreInt64(&c.componentsExpired, 0)
	atomic.StoreInt64(&c.pointsExpired, 0)
}

func (c *counters) toMap() map[string]int64 {
	out := make(map[string]int64)
	c.rx.toMap("rx", out)
	c.tx.toMap("tx", out)
	c.decodeErrors.toMap("decode_errors", out)
	out["folios.complete"] = atomic.LoadInt64(&c.foliosComplete)
	out["folios.dropped"] = atomic.LoadInt64(&c.foliosDropped)
	out["folios.stale"] = atomic.LoadInt64(&c.foliosStale)
	out["pages.duplicate"] = atomic.LoadInt64(&c.pagesDuplicate)
	out["arbitration.changes"] = atomic.LoadInt64(&c.arbitrationChanges)
	out["active.components"] = atomic.LoadInt64(&c.activeComponents)
	out["active.points"] = atomic.LoadInt64(&c.activePoints)
	out["active.systems"] = atomic.LoadInt64(&c.activeSystems)
	out["expired.components"] = atomic.LoadInt64(&c.componentsExpired)
	out["expired.points"] = atomic.LoadInt64(&c.pointsExpired)
	return out
}

// Stats is the counters surface producer/consumer engines are built
// against, so engine tests can assert on a plain struct instead of an
// http-backed JSONStats.
type Stats struct {
	counters
}

// New returns a ready-to-use Stats.
func New() *Stats {
	s := &Stats{}
	s.init()
	return s
}

// IncRX counts one received message of the given kind.
func (s *Stats) IncRX(kind string) { s.rx.inc(kind) }

// IncTX counts one transmitted message of the given kind.
func (s *Stats) IncTX(kind string) { s.tx.inc(kind) }

// IncDecodeError counts one rejected datagram under kind; the engines pass
// the decode stage that rejected it ("peek", "transform", "advertisement").
func (s *Stats) IncDecodeError(kind string) { s.decodeErrors.inc(kind) }

// IncFolioComplete counts one folio that reassembled to completion.
func (s *Stats) IncFolioComplete() { atomic.AddInt64(&s.foliosComplete, 1) }

// IncFolioDropped counts one folio evicted before it completed.
func (s *Stats) IncFolioDropped() { atomic.AddInt64(&s.foliosDropped, 1) }

// IncFolioStale counts one folio/page rejected as older than the
// current reassembly window.
func (s *Stats) IncFolioStale() { atomic.AddInt64(&s.foliosStale, 1) }

// IncPageDuplicate counts one page number seen twice within a folio.
func (s *Stats) IncPageDuplicate() { atomic.AddInt64(&s.pagesDuplicate, 1) }

// IncArbitrationChange counts one point whose winning producer changed.
func (s *Stats) IncArbitrationChange() { atomic.AddInt64(&s.arbitrationChanges, 1) }

// SetActiveComponents sets the current component registry size.
func (s *Stats) SetActiveComponents(n int64) { atomic.StoreInt64(&s.activeComponents, n) }

// SetActivePoints sets the current point registry size.
func (s *Stats) SetActivePoints(n int64) { atomic.StoreInt64(&s.activePoints, n) }

// SetActiveSystems sets the number of systems currently carrying points.
func (s *Stats) SetActiveSystems(n int64) { atomic.StoreInt64(&s.activeSystems, n) }

// IncComponentExpired counts one component removed by a liveness sweep.
func (s *Stats) IncComponentExpired() { atomic.AddInt64(&s.componentsExpired, 1) }

// IncPointExpired counts one point removed by a liveness sweep.
func (s *Stats) IncPointExpired() { atomic.AddInt64(&s.pointsExpired, 1) }

// Snapshot returns a flattened copy of every counter, suitable for JSON
// or Prometheus export.
func (s *Stats) Snapshot() map[string]int64 {
	return s.toMap()
}

// Reset atomically sets every counter back to zero.
func (s *Stats) Reset() {
	s.reset()
}
