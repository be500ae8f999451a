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

package points

import (
	"sync"
	"time"

	"github.com/esta-otp/otp/wire"
)

// Details is one producer's full set of standard module values for a
// point. A nil field means that producer did not include that module in
// its most recent transmission for this point.
type Details struct {
	Position       *wire.Position
	PositionVelAcc *wire.PositionVelAcc
	Rotation       *wire.Rotation
	RotationVelAcc *wire.RotationVelAcc
	Scale          *wire.Scale
	ReferenceFrame *wire.ReferenceFrame
	// Vendor holds any module not recognized by wire.DecodeStandardModule,
	// keyed by (manufacturer, module number), kept opaque per the
	// UnknownModule policy rather than rejecting the whole update.
	Vendor map[wire.ModuleIdent]wire.ModulePDU
}

func decodeModules(mods []wire.ModulePDU) Details {
	var d Details
	for _, m := range mods {
		if m.ManufacturerID != wire.ESTAManufacturerID {
			d.addVendor(m)
			continue
		}
		decoded, err := wire.DecodeStandardModule(m.ModuleNumber, m.Data)
		if err != nil {
			d.addVendor(m)
			continue
		}
		switch v := decoded.(type) {
		case wire.Position:
			d.Position = &v
		case wire.PositionVelAcc:
			d.PositionVelAcc = &v
		case wire.Rotation:
			d.Rotation = &v
		case wire.RotationVelAcc:
			d.RotationVelAcc = &v
		case wire.Scale:
			d.Scale = &v
		case wire.ReferenceFrame:
			d.ReferenceFrame = &v
		}
	}
	return d
}

func (d *Details) addVendor(m wire.ModulePDU) {
	if d.Vendor == nil {
		d.Vendor = make(map[wire.ModuleIdent]wire.ModulePDU)
	}
	d.Vendor[wire.ModuleIdent{ManufacturerID: m.ManufacturerID, ModuleNumber: m.ModuleNumber}] = m
}

// producer is one CID's claim on a point: its arbitration candidacy plus
// the module values it last sent.
type producer struct {
	candidate Candidate
	details   Details
}

// Point is the server-side state for one addressable point: every
// producer currently transforming it, and the details of whichever
// producer currently wins arbitration.
type Point struct {
	mu        sync.Mutex
	Address   wire.Address
	producers map[wire.CID]*producer
	winner    wire.CID
	hasWinner bool
}

// NewPoint builds an empty Point for the given address.
func NewPoint(addr wire.Address) *Point {
	return &Point{Address: addr, producers: make(map[wire.CID]*producer)}
}

// Update folds in one producer's latest transform for this point and
// returns whether the winning producer changed as a result.
func (p *Point) Update(cid wire.CID, priority wire.Priority, modules []wire.ModulePDU, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.producers[cid] = &producer{
		candidate: Candidate{CID: cid, Priority: priority, LastSeen: now},
		details:   decodeModules(modules),
	}
	return p.recomputeWinnerLocked()
}

// RemoveProducer drops a producer's claim (it went silent or its
// component was removed). Returns whether the winner changed.
func (p *Point) RemoveProducer(cid wire.CID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.producers[cid]; !ok {
		return false
	}
	delete(p.producers, cid)
	return p.recomputeWinnerLocked()
}

// ExpireProducers drops every producer whose last update is older than
// timeout, each one governed by its own per-(cid,address) data-loss
// timer rather than the point's overall last-activity time -- this is
// what lets a lower-priority producer that is still transmitting win
// arbitration once the current winner has gone silent, instead of the
// winner's claim surviving forever just because some other producer
// keeps the point as a whole looking alive. Returns whether the winner
// changed as a result.
func (p *Point) ExpireProducers(now time.Time, timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := false
	for cid, pr := range p.producers {
		if now.Sub(pr.candidate.LastSeen) > timeout {
			delete(p.producers, cid)
			removed = true
		}
	}
	if !removed {
		return false
	}
	return p.recomputeWinnerLocked()
}

func (p *Point) recomputeWinnerLocked() bool {
	candidates := make(map[wire.CID]Candidate, len(p.producers))
	for cid, pr := range p.producers {
		candidates[cid] = pr.candidate
	}
	best, ok := Best(candidates)
	if !ok {
		changed := p.hasWinner
		p.hasWinner = false
		p.winner = wire.CID{}
		return changed
	}
	changed := !p.hasWinner || p.winner != best.CID
	p.winner = best.CID
	p.hasWinner = true
	return changed
}

// Winner returns the currently winning producer's details and CID, or
// false if the point has no live producers.
func (p *Point) Winner() (wire.CID, Details, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasWinner {
		return wire.CID{}, Details{}, false
	}
	pr := p.producers[p.winner]
	return p.winner, pr.details, true
}

// ProducerCount reports how many producers currently claim this point.
func (p *Point) ProducerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.producers)
}

// Producers returns a snapshot of every producer currently claiming this point.
func (p *Point) Producers() []Candidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Candidate, 0, len(p.producers))
	for _, pr := range p.producers {
		out = append(out, pr.candidate)
	}
	return out
}
