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

package producer

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esta-otp/otp/stats"
	"github.com/esta-otp/otp/transport"
	"github.com/esta-otp/otp/wire"
)

// fakeClock is a hand-rolled stand-in for transport.Clock: the interface
// is a single method, so a gomock-generated mock would be pure ceremony.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestProducer() (*Producer, *transport.FakeNetwork, *fakeClock) {
	net := transport.NewFakeNetwork(&net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: OTPPort})
	clock := newFakeClock()
	p := New(wire.NewCID(), wire.NewName("producer-under-test"), net, clock, stats.New())
	return p, net, clock
}

func TestAddPointAndSetPosition(t *testing.T) {
	p, _, _ := newTestProducer()
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))

	require.NoError(t, p.SetPosition(addr, wire.Position{X: 1, Y: 2, Z: 3}, 42))

	pt, ok := p.point(addr)
	require.True(t, ok)
	pdu := pt.pointPDU(nil)
	require.Len(t, pdu.Modules, 1)
	require.Equal(t, wire.ModulePosition, pdu.Modules[0].ModuleNumber)
}

func TestSetPositionUnknownPoint(t *testing.T) {
	p, _, _ := newTestProducer()
	err := p.SetPosition(wire.Address{System: 1, Group: 1, Point: 9}, wire.Position{}, 0)
	require.Error(t, err)
}

func TestRemovePointStopsTransmission(t *testing.T) {
	p, _, _ := newTestProducer()
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))
	p.RemovePoint(addr)

	_, ok := p.point(addr)
	require.False(t, ok)
	require.Empty(t, p.ownedSystems())
}

func TestTickSendsKeepaliveOnFirstFire(t *testing.T) {
	p, fn, _ := newTestProducer()
	addr := wire.Address{System: 3, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))
	require.NoError(t, p.SetPosition(addr, wire.Position{X: 1}, 1))

	p.tick()

	sent := fn.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, TransformGroup(3).String(), sent[0].Addr.String())

	msg, err := wire.UnmarshalTransformMessage(sent[0].Data)
	require.NoError(t, err)
	require.True(t, msg.FullPointSet)
	require.Len(t, msg.Points, 1)
}

func TestTickSkipsSystemWithNoInterestBeforeKeepalive(t *testing.T) {
	p, fn, clock := newTestProducer()
	addr := wire.Address{System: 4, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))
	require.NoError(t, p.SetPosition(addr, wire.Position{X: 1}, 1))

	p.tick() // first fire: forced keepalive, no interest registered yet
	require.Len(t, fn.Sent(), 1)

	clock.Advance(time.Second) // well under KeepaliveMin
	p.tick()
	require.Len(t, fn.Sent(), 1, "second tick should be a no-op with no interest and no keepalive due")
}

func TestTickForcesKeepaliveAfterInterval(t *testing.T) {
	p, fn, clock := newTestProducer()
	addr := wire.Address{System: 5, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))
	require.NoError(t, p.SetPosition(addr, wire.Position{X: 1}, 1))

	p.tick()
	require.Len(t, fn.Sent(), 1)

	clock.Advance(3 * time.Second)
	p.tick()
	require.Len(t, fn.Sent(), 2)
}

func TestHandleModuleAdvertisementRecordsInterest(t *testing.T) {
	p, _, _ := newTestProducer()
	msg := &wire.AdvertisementMessage{
		CID:           wire.NewCID(),
		ComponentName: wire.NewName("consumer"),
		Kind:          wire.AdvertisementModule,
		Modules:       []wire.ModuleIdent{{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModulePosition}},
	}
	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	p.handleDatagram(transport.Datagram{Data: b, From: &net.UDPAddr{IP: net.ParseIP("10.0.0.9"), Port: OTPPort}})

	p.mu.Lock()
	interested := p.interest[wire.ModuleIdent{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModulePosition}]
	p.mu.Unlock()
	require.True(t, interested)
}

func TestHandleSystemAdvertisementRequestRespondsUnicast(t *testing.T) {
	p, fn, _ := newTestProducer()
	addr := wire.Address{System: 7, Group: 1, Point: 1}
	p.AddPoint(addr, 100, wire.NewName("fixture"))

	requester := &net.UDPAddr{IP: net.ParseIP("10.0.0.9"), Port: OTPPort}
	msg := &wire.AdvertisementMessage{
		CID:           wire.NewCID(),
		ComponentName: wire.NewName("consumer"),
		Kind:          wire.AdvertisementSystem,
		Response:      false,
	}
	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	p.handleDatagram(transport.Datagram{Data: b, From: requester})

	sent := fn.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, requester.String(), sent[0].Addr.String())

	reply, err := wire.UnmarshalAdvertisementMessage(sent[0].Data)
	require.NoError(t, err)
	require.True(t, reply.Response)
	require.Equal(t, wire.AdvertisementSystem, reply.Kind)
	require.Equal(t, []wire.System{7}, reply.Systems)
}

func TestHandleTransformDatagramIsIgnored(t *testing.T) {
	p, fn, _ := newTestProducer()
	msg := &wire.TransformMessage{
		CID:           wire.NewCID(),
		ComponentName: wire.NewName("other-producer"),
		System:        1,
	}
	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	p.handleDatagram(transport.Datagram{Data: b, From: &net.UDPAddr{}})
	require.Empty(t, fn.Sent())
}
