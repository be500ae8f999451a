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

// Package producer implements the OTP producer engine: it owns a set of
// points, builds Transform message folios for them at the transform
// cadence, and answers Name/System advertisement requests. Grounded on
// ptp4u/server's Server/sendWorker split (a periodic build-and-send loop
// driven by a ticker, plus a listener goroutine answering requests),
// simplified to the single-writer-loop-per-engine shape §5 of the
// specification calls for.
package producer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"

	"github.com/esta-otp/otp/container"
	"github.com/esta-otp/otp/folio"
	"github.com/esta-otp/otp/stats"
	"github.com/esta-otp/otp/timing"
	"github.com/esta-otp/otp/transport"
	"github.com/esta-otp/otp/wire"
)

// OTPPort is the well-known UDP port every OTP datagram is sent to.
const OTPPort = wire.OTPPort

// TransformGroup returns the IPv4 multicast group a system's Transform
// traffic is sent to: 239.159.1.<system>.
func TransformGroup(system wire.System) *net.UDPAddr { return wire.TransformGroup(system) }

// AdvertisementGroup is the IPv4 multicast group every Advertisement
// message is sent to, regardless of kind.
func AdvertisementGroup() *net.UDPAddr { return wire.AdvertisementGroup() }

type ownedPoint struct {
	mu        sync.Mutex
	address   wire.Address
	priority  wire.Priority
	name      wire.Name
	timestamp uint64
	modules   map[wire.ModuleIdent]wire.ModulePDU
}

func newOwnedPoint(addr wire.Address, priority wire.Priority, name wire.Name) *ownedPoint {
	return &ownedPoint{
		address:  addr,
		priority: priority,
		name:     name,
		modules:  make(map[wire.ModuleIdent]wire.ModulePDU),
	}
}

func (o *ownedPoint) setModule(manufacturerID, moduleNumber uint16, data []byte, timestamp uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modules[wire.ModuleIdent{ManufacturerID: manufacturerID, ModuleNumber: moduleNumber}] = wire.ModulePDU{
		ManufacturerID: manufacturerID,
		ModuleNumber:   moduleNumber,
		Data:           data,
	}
	o.timestamp = timestamp
}

// pointPDU renders this point's currently-interesting modules (those in
// interest, or every module when interest is nil) as a wire.PointPDU.
func (o *ownedPoint) pointPDU(interest map[wire.ModuleIdent]bool) wire.PointPDU {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := wire.PointPDU{
		Priority:  o.priority,
		Group:     o.address.Group,
		Point:     o.address.Point,
		Timestamp: o.timestamp,
	}
	for ident, m := range o.modules {
		if interest != nil && !interest[ident] {
			continue
		}
		p.Modules = append(p.Modules, m)
	}
	return p
}

// Producer is one component's producer-role engine: it owns a set of
// points, one per (system, group, point), and periodically announces
// their transform data to the Transform multicast group for each system
// it owns points in.
type Producer struct {
	cid   wire.CID
	name  wire.Name
	net   transport.Network
	clock transport.Clock
	stats *stats.Stats

	components  *container.Container
	reassembler *folio.Reassembler

	mu       sync.Mutex
	points   map[wire.Address]*ownedPoint
	interest map[wire.ModuleIdent]bool
	folio    map[wire.System]uint32
	adFolio  uint32
	sequence map[wire.System]uint16
	lastSent map[wire.System]time.Time

	transformTicker *timing.Ticker
	sweepTicker     *timing.Ticker
}

// New builds a Producer identified by cid/name, sending and receiving
// through net, with its own private address container.
func New(cid wire.CID, name wire.Name, net transport.Network, clock transport.Clock, st *stats.Stats) *Producer {
	return NewWithContainer(cid, name, net, clock, st, container.New(256))
}

// NewWithContainer builds a Producer like New, but backed by components
// instead of a freshly created one. Passing a Container also handed to a
// Consumer under the same cid is what makes a Produder (see the produder
// package): Advertisement traffic this Producer hears populates the same
// component registry the Consumer reads and writes.
func NewWithContainer(cid wire.CID, name wire.Name, net transport.Network, clock transport.Clock, st *stats.Stats, components *container.Container) *Producer {
	return &Producer{
		cid:             cid,
		name:            name,
		net:             net,
		clock:           clock,
		stats:           st,
		components:      components,
		reassembler:     folio.NewReassembler(),
		points:          make(map[wire.Address]*ownedPoint),
		interest:        make(map[wire.ModuleIdent]bool),
		folio:           make(map[wire.System]uint32),
		sequence:        make(map[wire.System]uint16),
		lastSent:        make(map[wire.System]time.Time),
		transformTicker: timing.NewTicker(timing.TransformDefault),
		sweepTicker:     timing.NewTicker(timing.Keepalive),
	}
}

// Components exposes the component/point address space this producer
// has built up, for querying and for tests. Mirrors consumer.Consumer's
// accessor of the same name; the two are the same *container.Container
// when built via NewWithContainer as part of a produder.Produder.
func (p *Producer) Components() *container.Container { return p.components }

// AddPoint registers a point this producer owns. Re-registering an
// already-owned address updates its priority and name.
func (p *Producer) AddPoint(addr wire.Address, priority wire.Priority, name wire.Name) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.points[addr]
	if !ok {
		pt = newOwnedPoint(addr, priority, name)
		p.points[addr] = pt
		return
	}
	pt.priority = priority
	pt.name = name
}

// RemovePoint stops transmitting transforms for addr.
func (p *Producer) RemovePoint(addr wire.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.points, addr)
}

func (p *Producer) point(addr wire.Address) (*ownedPoint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pt, ok := p.points[addr]
	return pt, ok
}

// SetPosition updates addr's Position module. timestamp is the
// point-level microsecond frame time carried in the Point sub-PDU.
func (p *Producer) SetPosition(addr wire.Address, v wire.Position, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModulePosition, wire.MarshalPosition(v), timestamp)
	return nil
}

// SetPositionVelAcc updates addr's PositionVelAcc module.
func (p *Producer) SetPositionVelAcc(addr wire.Address, v wire.PositionVelAcc, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModulePositionVelAcc, wire.MarshalPositionVelAcc(v), timestamp)
	return nil
}

// SetRotation updates addr's Rotation module.
func (p *Producer) SetRotation(addr wire.Address, v wire.Rotation, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModuleRotation, wire.MarshalRotation(v), timestamp)
	return nil
}

// SetRotationVelAcc updates addr's RotationVelAcc module.
func (p *Producer) SetRotationVelAcc(addr wire.Address, v wire.RotationVelAcc, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModuleRotationVelAcc, wire.MarshalRotationVelAcc(v), timestamp)
	return nil
}

// SetScale updates addr's Scale module.
func (p *Producer) SetScale(addr wire.Address, v wire.Scale, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModuleScale, wire.MarshalScale(v), timestamp)
	return nil
}

// SetReferenceFrame updates addr's ReferenceFrame module.
func (p *Producer) SetReferenceFrame(addr wire.Address, v wire.ReferenceFrame, timestamp uint64) error {
	pt, ok := p.point(addr)
	if !ok {
		return fmt.Errorf("producer: unknown point %s", addr)
	}
	pt.setModule(wire.ESTAManufacturerID, wire.ModuleReferenceFrame, wire.MarshalReferenceFrame(v), timestamp)
	return nil
}

// Run drives the producer's transform cadence, keepalive, and inbound
// request handling until ctx is cancelled. Mirrors sptp.SPTP.Run's
// listener-goroutine-plus-tick-loop shape under one errgroup.
func (p *Producer) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return p.runListener(ctx)
	})

	p.transformTicker.Start(ctx, p.tick)
	p.sweepTicker.Start(ctx, func() { p.reassembler.Sweep(timing.AdvertisementTimeout) })

	<-ctx.Done()
	p.transformTicker.Stop()
	p.sweepTicker.Stop()
	return eg.Wait()
}

func (p *Producer) runListener(ctx context.Context) error {
	doneChan := make(chan error, 1)
	go func() {
		buf := make([]byte, wire.MaxMessageSize)
		for {
			d, err := p.net.Recv(buf)
			if err != nil {
				doneChan <- err
				return
			}
			p.handleDatagram(d)
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-doneChan:
		return err
	}
}

func (p *Producer) handleDatagram(d transport.Datagram) {
	vector, err := wire.PeekOTPVector(d.Data)
	if err != nil {
		p.stats.IncDecodeError("peek")
		return
	}
	if vector != wire.VectorOTPAdvertisementMessage {
		// Producers don't consume Transform traffic from others.
		return
	}
	msg, err := wire.UnmarshalAdvertisementMessage(d.Data)
	if err != nil {
		p.stats.IncDecodeError("advertisement")
		return
	}
	complete, ok := p.reassembler.AddAdvertisement(msg)
	if !ok {
		return
	}
	p.stats.IncFolioComplete()
	p.stats.IncRX(kindName(complete.Kind))
	p.handleAdvertisement(complete, d.From)
}

func kindName(k wire.AdvertisementKind) string {
	switch k {
	case wire.AdvertisementModule:
		return stats.KindModuleAd
	case wire.AdvertisementName:
		return stats.KindNameAd
	default:
		return stats.KindSystemAd
	}
}

func (p *Producer) handleAdvertisement(msg *wire.AdvertisementMessage, from *net.UDPAddr) {
	ip := net.IP(nil)
	if from != nil {
		ip = from.IP
	}
	// A remote endpoint sending us Advertisement traffic is acting in the
	// consumer role toward this producer; if the same CID is also heard
	// through a Consumer sharing this Container (a Produder), the roles
	// merge into RoleProduder instead of overwriting each other.
	p.components.UpsertComponent(msg.CID, msg.ComponentName, ip, container.RoleConsumer)

	switch msg.Kind {
	case wire.AdvertisementModule:
		p.components.SetComponentModules(msg.CID, msg.Modules)
		p.mu.Lock()
		for _, m := range msg.Modules {
			p.interest[m] = true
		}
		p.mu.Unlock()
	case wire.AdvertisementName:
		if !msg.Response {
			p.respondNameAd(from)
		}
	case wire.AdvertisementSystem:
		if !msg.Response {
			p.respondSystemAd(from)
		}
	}
}

func (p *Producer) ownedSystems() []wire.System {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[wire.System]bool)
	for addr := range p.points {
		seen[addr.System] = true
	}
	out := make([]wire.System, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out
}

func (p *Producer) respondSystemAd(to *net.UDPAddr) {
	msg := &wire.AdvertisementMessage{
		CID:           p.cid,
		Folio:         p.nextAdFolio(),
		ComponentName: p.name,
		Kind:          wire.AdvertisementSystem,
		Response:      true,
		Systems:       p.ownedSystems(),
	}
	p.sendAdvertisement(msg, to)
}

func (p *Producer) respondNameAd(to *net.UDPAddr) {
	p.mu.Lock()
	points := make([]wire.AddressPointDescription, 0, len(p.points))
	for addr, pt := range p.points {
		points = append(points, wire.AddressPointDescription{Address: addr, Name: pt.name})
	}
	p.mu.Unlock()

	msg := &wire.AdvertisementMessage{
		CID:           p.cid,
		Folio:         p.nextAdFolio(),
		ComponentName: p.name,
		Kind:          wire.AdvertisementName,
		Response:      true,
		Points:        points,
	}
	p.sendAdvertisement(msg, to)
}

func (p *Producer) nextAdFolio() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adFolio++
	return p.adFolio
}

// sendAdvertisement pages msg's list fields across as many datagrams as
// needed to stay under wire.MaxMessageSize, unicasting each page to to.
func (p *Producer) sendAdvertisement(msg *wire.AdvertisementMessage, to *net.UDPAddr) {
	pages := folio.SplitAdvertisementPages(msg)
	for _, page := range pages {
		b, err := page.MarshalBinary()
		if err != nil {
			log.Errorf("producer: failed to marshal advertisement page: %v", err)
			return
		}
		if err := p.net.SendTo(to, b); err != nil {
			log.Errorf("producer: failed to send advertisement to %v: %v", to, err)
			return
		}
		p.stats.IncTX(kindName(page.Kind))
	}
}

// tick builds and sends one Transform folio per owned system that either
// has interested modules to report or is due for its keepalive -- a
// producer silent for KeepaliveMin on an owned system force-sends its
// current values with the Full-Point-Set bit set.
func (p *Producer) tick() {
	now := p.clock.Now()
	p.mu.Lock()
	interest := make(map[wire.ModuleIdent]bool, len(p.interest))
	for k := range p.interest {
		interest[k] = true
	}
	systems := p.ownedSystemsLocked()
	p.mu.Unlock()

	for _, system := range systems {
		lastSent, hadSent := p.lastSentFor(system)
		keepalive := !hadSent || now.Sub(lastSent) >= timing.KeepaliveMin
		if !keepalive && len(interest) == 0 {
			continue
		}
		p.buildAndSend(system, interest, keepalive)
	}
}

func (p *Producer) ownedSystemsLocked() []wire.System {
	seen := make(map[wire.System]bool)
	for addr := range p.points {
		seen[addr.System] = true
	}
	out := make([]wire.System, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out
}

func (p *Producer) lastSentFor(system wire.System) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastSent[system]
	return t, ok
}

func (p *Producer) buildAndSend(system wire.System, interest map[wire.ModuleIdent]bool, fullPointSet bool) {
	p.mu.Lock()
	var pdus []wire.PointPDU
	for addr, pt := range p.points {
		if addr.System != system {
			continue
		}
		var filter map[wire.ModuleIdent]bool
		if !fullPointSet {
			filter = interest
		}
		pdu := pt.pointPDU(filter)
		if len(pdu.Modules) == 0 && !fullPointSet {
			continue
		}
		pdus = append(pdus, pdu)
	}
	p.folio[system]++
	folioNum := p.folio[system]
	p.mu.Unlock()

	pages := folio.SplitTransformPages(p.cid, p.name, system, folioNum, fullPointSet, pdus)
	group := TransformGroup(system)
	for _, page := range pages {
		p.mu.Lock()
		p.sequence[system]++
		page.Sequence = p.sequence[system]
		p.mu.Unlock()

		b, err := page.MarshalBinary()
		if err != nil {
			log.Errorf("producer: failed to marshal transform page for system %d: %v", system, err)
			return
		}
		if err := p.net.SendTo(group, b); err != nil {
			log.Errorf("producer: failed to send transform for system %d: %v", system, err)
			return
		}
		p.stats.IncTX(stats.KindTransform)
	}

	p.mu.Lock()
	p.lastSent[system] = p.clock.Now()
	p.mu.Unlock()
}
