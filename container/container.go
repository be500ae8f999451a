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

// Package container holds the address space a consumer or producer has
// discovered: a system/group/point tree of live Points plus a flat
// per-component registry, with expiry sweeps standing in for the
// original implementation's Qt signal/slot fan-out (see SPEC_FULL.md's
// redesign notes) -- state changes are exposed as typed Events on a
// channel instead.
package container

import (
	"net"
	"sync"
	"time"

	"github.com/esta-otp/otp/points"
	"github.com/esta-otp/otp/wire"
)

// EventKind classifies a Container state change.
type EventKind int

// Event kinds.
const (
	EventPointAdded EventKind = iota
	EventPointUpdated
	EventPointExpired
	EventPointRemoved
	EventComponentExpired
)

// Event is emitted on the Container's event channel whenever a point or
// component's liveness state changes.
type Event struct {
	Kind    EventKind
	Address wire.Address
	CID     wire.CID
}

// Role classifies the direction(s) in which a remote endpoint has been
// heard from. It is a bitmask: a component seen acting as both a
// producer and a consumer (a "Produder", per SPEC_FULL.md's supplemented
// features) carries both bits, rather than being represented as two
// separate Component entries.
type Role uint8

// Role bits and their combination.
const (
	RoleConsumer Role = 1 << iota
	RoleProducer
	RoleProduder = RoleConsumer | RoleProducer
)

func (r Role) String() string {
	switch r {
	case RoleConsumer:
		return "consumer"
	case RoleProducer:
		return "producer"
	case RoleProduder:
		return "produder"
	default:
		return "unknown"
	}
}

// Component is everything the container knows about one remote endpoint
// that has been heard from, independent of which points it claims. Role
// accumulates: a component heard both requesting/receiving Transform
// traffic and answering as a producer (or vice versa, when a shared
// Container backs a co-located Produder, see the produder package) ends
// up with RoleProduder rather than overwriting one role with the other.
type Component struct {
	CID            wire.CID
	Name           wire.Name
	IP             net.IP
	Role           Role
	Modules        []wire.ModuleIdent
	ModulesUpdated time.Time
	Systems        []wire.System
}

type pointEntry struct {
	point      *points.Point
	lastUpdate time.Time
	stale      bool
}

// Container is the 3-level (system -> group -> point) address tree plus
// the flat component registry. Safe for concurrent use.
type Container struct {
	mu         sync.RWMutex
	tree       map[wire.System]map[wire.Group]map[wire.Point]*pointEntry
	components map[wire.CID]*Component
	events     chan Event
}

// New builds an empty Container. eventBuffer sizes the (non-blocking)
// event channel; events are dropped rather than blocking the caller when
// the buffer is full, since Events are a liveness signal, not a queue
// consumers must drain exhaustively.
func New(eventBuffer int) *Container {
	return &Container{
		tree:       make(map[wire.System]map[wire.Group]map[wire.Point]*pointEntry),
		components: make(map[wire.CID]*Component),
		events:     make(chan Event, eventBuffer),
	}
}

// Events returns the channel Container state-change notifications arrive on.
func (c *Container) Events() <-chan Event {
	return c.events
}

func (c *Container) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// Point returns the Point at addr, creating it (and emitting
// EventPointAdded) if it does not already exist.
func (c *Container) Point(addr wire.Address) *points.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups, ok := c.tree[addr.System]
	if !ok {
		groups = make(map[wire.Group]map[wire.Point]*pointEntry)
		c.tree[addr.System] = groups
	}
	pts, ok := groups[addr.Group]
	if !ok {
		pts = make(map[wire.Point]*pointEntry)
		groups[addr.Group] = pts
	}
	entry, ok := pts[addr.Point]
	if !ok {
		entry = &pointEntry{point: points.NewPoint(addr)}
		pts[addr.Point] = entry
		c.emit(Event{Kind: EventPointAdded, Address: addr})
	}
	entry.lastUpdate = time.Now()
	entry.stale = false
	return entry.point
}

// LookupPoint returns the Point at addr without creating it.
func (c *Container) LookupPoint(addr wire.Address) (*points.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups, ok := c.tree[addr.System]
	if !ok {
		return nil, false
	}
	pts, ok := groups[addr.Group]
	if !ok {
		return nil, false
	}
	entry, ok := pts[addr.Point]
	if !ok {
		return nil, false
	}
	return entry.point, true
}

// Touch refreshes addr's last-update time without creating it, and emits
// EventPointUpdated, used after a producer's Update call so the
// data-loss timer resets and callers are signalled even when the winning
// producer did not change.
func (c *Container) Touch(addr wire.Address) {
	c.mu.Lock()
	groups, ok := c.tree[addr.System]
	if !ok {
		c.mu.Unlock()
		return
	}
	pts, ok := groups[addr.Group]
	if !ok {
		c.mu.Unlock()
		return
	}
	entry, ok := pts[addr.Point]
	if ok {
		entry.lastUpdate = time.Now()
		entry.stale = false
	}
	c.mu.Unlock()
	if ok {
		c.emit(Event{Kind: EventPointUpdated, Address: addr})
	}
}

// RemoveSystem drops every point belonging to system, emitting
// EventPointRemoved for each.
func (c *Container) RemoveSystem(system wire.System) {
	c.mu.Lock()
	groups, ok := c.tree[system]
	if !ok {
		c.mu.Unlock()
		return
	}
	var removed []wire.Address
	for _, pts := range groups {
		for _, entry := range pts {
			removed = append(removed, entry.point.Address)
		}
	}
	delete(c.tree, system)
	c.mu.Unlock()

	for _, addr := range removed {
		c.emit(Event{Kind: EventPointRemoved, Address: addr})
	}
}

// UpsertComponent records that cid was heard from acting in role,
// updating its name/IP. role is merged into whatever roles were already
// recorded for cid rather than replacing them, so a component heard as
// both a producer and a consumer against this Container accumulates
// RoleProduder.
func (c *Container) UpsertComponent(cid wire.CID, name wire.Name, ip net.IP, role Role) *Component {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.components[cid]
	if !ok {
		comp = &Component{CID: cid}
		c.components[cid] = comp
	}
	comp.Name = name
	comp.IP = ip
	comp.Role |= role
	return comp
}

// SetComponentModules records a component's advertised module list.
func (c *Container) SetComponentModules(cid wire.CID, modules []wire.ModuleIdent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.components[cid]
	if !ok {
		comp = &Component{CID: cid}
		c.components[cid] = comp
	}
	comp.Modules = modules
	comp.ModulesUpdated = time.Now()
}

// SetComponentSystems records the set of systems a component claims
// ownership of, as reported in a System Advertisement response.
func (c *Container) SetComponentSystems(cid wire.CID, systems []wire.System) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.components[cid]
	if !ok {
		comp = &Component{CID: cid}
		c.components[cid] = comp
	}
	comp.Systems = systems
}

// Component looks up a known component by CID.
func (c *Container) Component(cid wire.CID) (*Component, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[cid]
	return comp, ok
}

// Components returns a snapshot of every known component.
func (c *Container) Components() []*Component {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Component, 0, len(c.components))
	for _, comp := range c.components {
		out = append(out, comp)
	}
	return out
}

// Sweep applies the liveness timers: a point not updated within
// dataLossTimeout is marked stale (EventPointExpired, fired once); one not
// updated within removalTimeout (by convention 2x dataLossTimeout) is
// deleted outright (EventPointRemoved). Before either check, every
// point's individual producers are expired against dataLossTimeout too
// (points.Point.ExpireProducers), so a winning producer that has gone
// silent loses arbitration to a still-live lower-priority one even while
// some other producer's traffic keeps the point entry itself alive. A
// component whose module list hasn't refreshed within moduleListTimeout
// has that list cleared (EventComponentExpired); the component entry
// itself (name, IP, owned systems) is untouched, since losing interest
// in modules says nothing about whether the component is still present.
func (c *Container) Sweep(dataLossTimeout, removalTimeout, moduleListTimeout time.Duration) {
	now := time.Now()

	var expired, removed []wire.Address
	c.mu.Lock()
	for system, groups := range c.tree {
		for group, pts := range groups {
			for pt, entry := range pts {
				entry.point.ExpireProducers(now, dataLossTimeout)

				age := now.Sub(entry.lastUpdate)
				switch {
				case age > removalTimeout:
					delete(pts, pt)
					removed = append(removed, entry.point.Address)
				case age > dataLossTimeout && !entry.stale:
					entry.stale = true
					expired = append(expired, entry.point.Address)
				}
			}
			if len(pts) == 0 {
				delete(groups, group)
			}
		}
		if len(groups) == 0 {
			delete(c.tree, system)
		}
	}

	var expiredComponents []wire.CID
	for cid, comp := range c.components {
		if !comp.ModulesUpdated.IsZero() && now.Sub(comp.ModulesUpdated) > moduleListTimeout {
			comp.Modules = nil
			comp.ModulesUpdated = time.Time{}
			expiredComponents = append(expiredComponents, cid)
		}
	}
	c.mu.Unlock()

	for _, addr := range expired {
		c.emit(Event{Kind: EventPointExpired, Address: addr})
	}
	for _, addr := range removed {
		c.emit(Event{Kind: EventPointRemoved, Address: addr})
	}
	for _, cid := range expiredComponents {
		c.emit(Event{Kind: EventComponentExpired, CID: cid})
	}
}
