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

package folio

import (
	"sync"
	"time"

	"github.com/esta-otp/otp/wire"
)

type transformKey struct {
	cid    wire.CID
	system wire.System
}

type transformSlot struct {
	folio        uint32
	sequence     uint16
	lastPage     uint16
	pagesSeen    map[uint16]bool
	name         wire.Name
	frameTime    wire.Timestamp
	fullPointSet bool
	points       []wire.PointPDU
	firstSeen    time.Time
}

type advertisementKey struct {
	cid  wire.CID
	kind wire.AdvertisementKind
}

type advertisementSlot struct {
	folio     uint32
	sequence  uint16
	lastPage  uint16
	pagesSeen map[uint16]bool
	name      wire.Name
	response  bool
	modules   []wire.ModuleIdent
	points    []wire.AddressPointDescription
	systems   []wire.System
	firstSeen time.Time
}

// Reassembler accumulates the pages of in-flight folios and hands back a
// complete, merged message once every page 0..LastPage has arrived. It is
// safe for concurrent use by multiple listener goroutines.
type Reassembler struct {
	mu             sync.Mutex
	transforms     map[transformKey]*transformSlot
	advertisements map[advertisementKey]*advertisementSlot
}

// NewReassembler builds an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		transforms:     make(map[transformKey]*transformSlot),
		advertisements: make(map[advertisementKey]*advertisementSlot),
	}
}

// AddTransform folds in one decoded Transform Message datagram (one folio
// page). It returns the merged message and true once every page of the
// folio has arrived; otherwise it returns (nil, false).
func (r *Reassembler) AddTransform(msg *wire.TransformMessage) (*wire.TransformMessage, bool) {
	key := transformKey{cid: msg.CID, system: msg.System}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.transforms[key]
	if !ok || msg.Folio != slot.folio {
		if ok && !isNewerFolio(slot.folio, msg.Folio) {
			// Stale or duplicate folio number; the in-flight slot wins.
			return nil, false
		}
		if ok && !isNewerSequence(slot.sequence, msg.Sequence) {
			// Sequence check is separate from folio: reject a datagram
			// whose sequence number hasn't advanced, even if its folio
			// number looks newer.
			return nil, false
		}
		slot = &transformSlot{
			folio:        msg.Folio,
			sequence:     msg.Sequence,
			lastPage:     msg.LastPage,
			pagesSeen:    make(map[uint16]bool),
			name:         msg.ComponentName,
			frameTime:    msg.FrameTime,
			fullPointSet: msg.FullPointSet,
			firstSeen:    time.Now(),
		}
		r.transforms[key] = slot
	}

	if slot.pagesSeen[msg.Page] {
		return nil, false
	}
	slot.pagesSeen[msg.Page] = true
	slot.points = append(slot.points, msg.Points...)

	if len(slot.pagesSeen) != int(slot.lastPage)+1 {
		return nil, false
	}

	delete(r.transforms, key)
	return &wire.TransformMessage{
		CID:           msg.CID,
		Sequence:      slot.sequence,
		Folio:         slot.folio,
		Page:          0,
		LastPage:      slot.lastPage,
		ComponentName: slot.name,
		System:        msg.System,
		FrameTime:     slot.frameTime,
		FullPointSet:  slot.fullPointSet,
		Points:        slot.points,
	}, true
}

// AddAdvertisement folds in one decoded Advertisement Message datagram.
// Same contract as AddTransform.
func (r *Reassembler) AddAdvertisement(msg *wire.AdvertisementMessage) (*wire.AdvertisementMessage, bool) {
	key := advertisementKey{cid: msg.CID, kind: msg.Kind}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.advertisements[key]
	if !ok || msg.Folio != slot.folio {
		if ok && !isNewerFolio(slot.folio, msg.Folio) {
			return nil, false
		}
		if ok && !isNewerSequence(slot.sequence, msg.Sequence) {
			// Sequence check is separate from folio; see AddTransform.
			return nil, false
		}
		slot = &advertisementSlot{
			folio:     msg.Folio,
			sequence:  msg.Sequence,
			lastPage:  msg.LastPage,
			pagesSeen: make(map[uint16]bool),
			name:      msg.ComponentName,
			response:  msg.Response,
			firstSeen: time.Now(),
		}
		r.advertisements[key] = slot
	}

	if slot.pagesSeen[msg.Page] {
		return nil, false
	}
	slot.pagesSeen[msg.Page] = true
	slot.modules = append(slot.modules, msg.Modules...)
	slot.points = append(slot.points, msg.Points...)
	slot.systems = append(slot.systems, msg.Systems...)

	if len(slot.pagesSeen) != int(slot.lastPage)+1 {
		return nil, false
	}

	delete(r.advertisements, key)
	return &wire.AdvertisementMessage{
		CID:           msg.CID,
		Sequence:      slot.sequence,
		Folio:         slot.folio,
		Page:          0,
		LastPage:      slot.lastPage,
		ComponentName: slot.name,
		Kind:          msg.Kind,
		Response:      slot.response,
		Modules:       slot.modules,
		Points:        slot.points,
		Systems:       slot.systems,
	}, true
}

// Sweep discards in-flight folios that have been incomplete for longer
// than maxAge, freeing memory held by producers/consumers that vanished
// mid-folio. The producer and consumer engines call it from their sweep
// ticker (every timing.Keepalive) with maxAge timing.AdvertisementTimeout.
func (r *Reassembler) Sweep(maxAge time.Duration) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, s := range r.transforms {
		if now.Sub(s.firstSeen) > maxAge {
			delete(r.transforms, k)
		}
	}
	for k, s := range r.advertisements {
		if now.Sub(s.firstSeen) > maxAge {
			delete(r.advertisements, k)
		}
	}
}
