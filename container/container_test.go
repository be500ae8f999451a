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

package container

import (
	"testing"
	"time"

	"github.com/esta-otp/otp/wire"
	"github.com/stretchr/testify/require"
)

func TestPointCreateAndLookup(t *testing.T) {
	c := New(8)
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	pt := c.Point(addr)
	require.NotNil(t, pt)

	got, ok := c.LookupPoint(addr)
	require.True(t, ok)
	require.Same(t, pt, got)

	ev := <-c.Events()
	require.Equal(t, EventPointAdded, ev.Kind)
	require.Equal(t, addr, ev.Address)
}

func TestLookupMissingPoint(t *testing.T) {
	c := New(8)
	_, ok := c.LookupPoint(wire.Address{System: 1, Group: 1, Point: 1})
	require.False(t, ok)
}

func TestRemoveSystem(t *testing.T) {
	c := New(8)
	a1 := wire.Address{System: 1, Group: 1, Point: 1}
	a2 := wire.Address{System: 1, Group: 2, Point: 5}
	c.Point(a1)
	c.Point(a2)
	<-c.Events()
	<-c.Events()

	c.RemoveSystem(1)
	_, ok := c.LookupPoint(a1)
	require.False(t, ok)
	_, ok = c.LookupPoint(a2)
	require.False(t, ok)
}

func TestSweepMarksStaleThenRemoves(t *testing.T) {
	c := New(8)
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	c.Point(addr)
	<-c.Events()

	c.Sweep(0, time.Hour, time.Hour)
	ev := <-c.Events()
	require.Equal(t, EventPointExpired, ev.Kind)

	c.Sweep(0, 0, time.Hour)
	ev = <-c.Events()
	require.Equal(t, EventPointRemoved, ev.Kind)

	_, ok := c.LookupPoint(addr)
	require.False(t, ok)
}

func TestUpsertComponentMergesRolesIntoProduder(t *testing.T) {
	c := New(8)
	cid := wire.NewCID()

	comp := c.UpsertComponent(cid, wire.NewName("p1"), nil, RoleProducer)
	require.Equal(t, RoleProducer, comp.Role)

	comp = c.UpsertComponent(cid, wire.NewName("p1"), nil, RoleConsumer)
	require.Equal(t, RoleProduder, comp.Role)

	// Re-upserting an already-merged role is idempotent.
	comp = c.UpsertComponent(cid, wire.NewName("p1"), nil, RoleConsumer)
	require.Equal(t, RoleProduder, comp.Role)
}

func TestComponentModulesExpiry(t *testing.T) {
	c := New(8)
	cid := wire.NewCID()
	c.UpsertComponent(cid, wire.NewName("p1"), nil, RoleProducer)
	c.SetComponentModules(cid, []wire.ModuleIdent{{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModulePosition}})

	comp, ok := c.Component(cid)
	require.True(t, ok)
	require.Len(t, comp.Modules, 1)

	c.Sweep(time.Hour, time.Hour, 0)
	ev := <-c.Events()
	require.Equal(t, EventComponentExpired, ev.Kind)

	// The component itself survives losing its module list -- only the
	// module-interest data is cleared, not the whole entry.
	comp, ok = c.Component(cid)
	require.True(t, ok)
	require.Equal(t, wire.NewName("p1"), comp.Name)
	require.Empty(t, comp.Modules)
	require.True(t, comp.ModulesUpdated.IsZero())

	// A second sweep must not re-fire EventComponentExpired now that
	// ModulesUpdated has been reset to zero.
	c.Sweep(time.Hour, time.Hour, 0)
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}
