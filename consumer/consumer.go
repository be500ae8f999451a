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

// Package consumer implements the OTP consumer engine: it joins the
// Transform multicast group for each system an operator asks it to
// monitor, reassembles and applies inbound Transform/Advertisement
// folios into a shared container.Container, and periodically announces
// the modules it understands. Grounded on sptp/client/sptp.go's
// per-peer Client map driven by one errgroup-based Run loop, narrowed
// from PTP's per-GM unicast exchange to OTP's per-system multicast
// subscription model.
package consumer

import (
	"context"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"

	"github.com/esta-otp/otp/container"
	"github.com/esta-otp/otp/folio"
	"github.com/esta-otp/otp/stats"
	"github.com/esta-otp/otp/timing"
	"github.com/esta-otp/otp/transport"
	"github.com/esta-otp/otp/wire"
)

// SupportedModules lists the standard module numbers this consumer can
// decode, advertised verbatim in every outbound Module Advertisement.
var SupportedModules = []wire.ModuleIdent{
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModulePosition},
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModulePositionVelAcc},
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModuleRotation},
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModuleRotationVelAcc},
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModuleScale},
	{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModuleReferenceFrame},
}

// Consumer is one component's consumer-role engine: it monitors a set of
// systems for Transform traffic and tracks every component it has heard
// an Advertisement from.
type Consumer struct {
	cid   wire.CID
	name  wire.Name
	net   transport.Network
	clock transport.Clock
	stats *stats.Stats

	components  *container.Container
	reassembler *folio.Reassembler

	mu         sync.Mutex
	monitored  map[wire.System]bool
	pointNames map[wire.Address]wire.Name
	adFolio    uint32

	adTicker    *timing.Ticker
	sweepTicker *timing.Ticker
}

// New builds a Consumer identified by cid/name, sending and receiving
// through net, with its own private address container. The Advertisement
// multicast group is joined when Run starts; Transform groups are joined
// per call to AddSystem.
func New(cid wire.CID, name wire.Name, net transport.Network, clock transport.Clock, st *stats.Stats) *Consumer {
	return NewWithContainer(cid, name, net, clock, st, container.New(256))
}

// NewWithContainer builds a Consumer like New, but backed by components
// instead of a freshly created one. See producer.NewWithContainer and the
// produder package: sharing one Container between a Producer and a
// Consumer under the same cid is what makes a Produder.
func NewWithContainer(cid wire.CID, name wire.Name, net transport.Network, clock transport.Clock, st *stats.Stats, components *container.Container) *Consumer {
	return &Consumer{
		cid:         cid,
		name:        name,
		net:         net,
		clock:       clock,
		stats:       st,
		components:  components,
		reassembler: folio.NewReassembler(),
		monitored:   make(map[wire.System]bool),
		pointNames:  make(map[wire.Address]wire.Name),
		adTicker:    timing.NewTicker(timing.AdvertisementInterval),
		sweepTicker: timing.NewTicker(timing.Keepalive),
	}
}

// Components exposes the component/point address space this consumer
// has built up, for querying and for tests.
func (c *Consumer) Components() *container.Container { return c.components }

// AddSystem starts monitoring system: it joins its Transform multicast
// group so inbound traffic for it reaches the listener.
func (c *Consumer) AddSystem(system wire.System) error {
	c.mu.Lock()
	already := c.monitored[system]
	c.monitored[system] = true
	c.mu.Unlock()
	if already {
		return nil
	}
	return c.net.JoinGroup(wire.TransformGroup(system), nil)
}

// RemoveSystem stops monitoring system: it leaves the multicast group
// and drops every point known under that system.
func (c *Consumer) RemoveSystem(system wire.System) error {
	c.mu.Lock()
	delete(c.monitored, system)
	c.mu.Unlock()
	c.components.RemoveSystem(system)
	return c.net.LeaveGroup(wire.TransformGroup(system), nil)
}

func (c *Consumer) isMonitored(system wire.System) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitored[system]
}

// RequestNameAd solicits a fresh Name Advertisement from every Producer
// by multicasting an unanswered request to the Advertisement group.
func (c *Consumer) RequestNameAd() {
	c.broadcastRequest(wire.AdvertisementName)
}

// RequestSystemAd solicits a fresh System Advertisement from every
// Producer by multicasting an unanswered request to the Advertisement
// group.
func (c *Consumer) RequestSystemAd() {
	c.broadcastRequest(wire.AdvertisementSystem)
}

func (c *Consumer) broadcastRequest(kind wire.AdvertisementKind) {
	msg := &wire.AdvertisementMessage{
		CID:           c.cid,
		Folio:         c.nextAdFolio(),
		ComponentName: c.name,
		Kind:          kind,
		Response:      false,
	}
	c.send(msg, wire.AdvertisementGroup())
}

func (c *Consumer) nextAdFolio() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adFolio++
	return c.adFolio
}

// Run drives the consumer's Module-Ad cadence, liveness sweeps, and
// inbound datagram handling until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.net.JoinGroup(wire.AdvertisementGroup(), nil); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return c.runListener(ctx)
	})

	c.adTicker.Start(ctx, c.announceModules)
	c.sweepTicker.Start(ctx, func() {
		c.components.Sweep(timing.DataLossTimeout, timing.RemovalTimeout, timing.ModuleListTimeout)
		c.reassembler.Sweep(timing.AdvertisementTimeout)
	})

	<-ctx.Done()
	c.adTicker.Stop()
	c.sweepTicker.Stop()
	return eg.Wait()
}

func (c *Consumer) runListener(ctx context.Context) error {
	doneChan := make(chan error, 1)
	go func() {
		buf := make([]byte, wire.MaxMessageSize)
		for {
			d, err := c.net.Recv(buf)
			if err != nil {
				doneChan <- err
				return
			}
			c.handleDatagram(d)
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-doneChan:
		return err
	}
}

func (c *Consumer) handleDatagram(d transport.Datagram) {
	vector, err := wire.PeekOTPVector(d.Data)
	if err != nil {
		c.stats.IncDecodeError("peek")
		return
	}
	if vector == wire.VectorOTPTransformMessage {
		c.handleTransformDatagram(d)
		return
	}
	c.handleAdvertisementDatagram(d)
}

func (c *Consumer) handleTransformDatagram(d transport.Datagram) {
	msg, err := wire.UnmarshalTransformMessage(d.Data)
	if err != nil {
		c.stats.IncDecodeError("transform")
		return
	}
	if !c.isMonitored(msg.System) {
		return
	}
	complete, ok := c.reassembler.AddTransform(msg)
	if !ok {
		return
	}
	c.stats.IncFolioComplete()
	c.stats.IncRX(stats.KindTransform)
	c.applyTransform(complete)
}

func (c *Consumer) applyTransform(msg *wire.TransformMessage) {
	ip := net.IP(nil)
	// The sender of a Transform message is acting in the producer role
	// toward this consumer; see the matching comment in producer.go.
	c.components.UpsertComponent(msg.CID, msg.ComponentName, ip, container.RoleProducer)
	for _, pdu := range msg.Points {
		addr := wire.Address{System: msg.System, Group: pdu.Group, Point: pdu.Point}
		pt := c.components.Point(addr)
		changed := pt.Update(msg.CID, pdu.Priority, pdu.Modules, c.clock.Now())
		c.components.Touch(addr)
		if changed {
			c.stats.IncArbitrationChange()
		}
	}
}

func (c *Consumer) handleAdvertisementDatagram(d transport.Datagram) {
	msg, err := wire.UnmarshalAdvertisementMessage(d.Data)
	if err != nil {
		c.stats.IncDecodeError("advertisement")
		return
	}
	complete, ok := c.reassembler.AddAdvertisement(msg)
	if !ok {
		return
	}
	c.stats.IncFolioComplete()
	c.stats.IncRX(kindName(complete.Kind))
	c.applyAdvertisement(complete, d.From)
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

func (c *Consumer) applyAdvertisement(msg *wire.AdvertisementMessage, from *net.UDPAddr) {
	ip := net.IP(nil)
	if from != nil {
		ip = from.IP
	}
	c.components.UpsertComponent(msg.CID, msg.ComponentName, ip, container.RoleProducer)

	switch msg.Kind {
	case wire.AdvertisementModule:
		c.components.SetComponentModules(msg.CID, msg.Modules)
	case wire.AdvertisementName:
		if msg.Response {
			c.applyNameAd(msg)
		}
	case wire.AdvertisementSystem:
		if msg.Response {
			c.components.SetComponentSystems(msg.CID, msg.Systems)
		}
	}
}

func (c *Consumer) applyNameAd(msg *wire.AdvertisementMessage) {
	c.mu.Lock()
	for _, desc := range msg.Points {
		c.pointNames[desc.Address] = desc.Name
	}
	c.mu.Unlock()
	for _, desc := range msg.Points {
		c.components.Point(desc.Address) // create the point entry if absent
	}
}

// PointName returns the last Name Advertisement-reported name for addr,
// if any has been received yet.
func (c *Consumer) PointName(addr wire.Address) (wire.Name, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.pointNames[addr]
	return name, ok
}

func (c *Consumer) announceModules() {
	msg := &wire.AdvertisementMessage{
		CID:           c.cid,
		Folio:         c.nextAdFolio(),
		ComponentName: c.name,
		Kind:          wire.AdvertisementModule,
		Modules:       SupportedModules,
	}
	c.send(msg, wire.AdvertisementGroup())
}

func (c *Consumer) send(msg *wire.AdvertisementMessage, to *net.UDPAddr) {
	pages := folio.SplitAdvertisementPages(msg)
	for _, page := range pages {
		b, err := page.MarshalBinary()
		if err != nil {
			log.Errorf("consumer: failed to marshal advertisement page: %v", err)
			return
		}
		if err := c.net.SendTo(to, b); err != nil {
			log.Errorf("consumer: failed to send advertisement to %v: %v", to, err)
			return
		}
		c.stats.IncTX(kindName(page.Kind))
	}
}
