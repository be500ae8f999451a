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
	"testing"
	"time"

	"github.com/esta-otp/otp/wire"
	"github.com/stretchr/testify/require"
)

func TestCompareByPriority(t *testing.T) {
	now := time.Now()
	a := Candidate{CID: wire.NewCID(), Priority: 150, LastSeen: now}
	b := Candidate{CID: wire.NewCID(), Priority: 100, LastSeen: now}
	require.Equal(t, ABetter, Compare(a, b))
	require.Equal(t, BBetter, Compare(b, a))
}

func TestCompareByRecencyThenCID(t *testing.T) {
	now := time.Now()
	a := Candidate{CID: wire.NewCID(), Priority: 100, LastSeen: now}
	b := Candidate{CID: wire.NewCID(), Priority: 100, LastSeen: now.Add(-time.Second)}
	require.Equal(t, ABetter, Compare(a, b))

	var cid1, cid2 wire.CID
	cid1[0] = 1
	cid2[0] = 2
	c := Candidate{CID: cid1, Priority: 100, LastSeen: now}
	d := Candidate{CID: cid2, Priority: 100, LastSeen: now}
	require.Equal(t, ABetter, Compare(c, d))
	require.Equal(t, BBetter, Compare(d, c))
}

func TestPointUpdateArbitration(t *testing.T) {
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	pt := NewPoint(addr)
	now := time.Now()

	cidLow := wire.NewCID()
	cidHigh := wire.NewCID()

	changed := pt.Update(cidLow, 100, nil, now)
	require.True(t, changed)
	winner, _, ok := pt.Winner()
	require.True(t, ok)
	require.Equal(t, cidLow, winner)

	changed = pt.Update(cidHigh, 150, nil, now)
	require.True(t, changed)
	winner, _, ok = pt.Winner()
	require.True(t, ok)
	require.Equal(t, cidHigh, winner)

	changed = pt.RemoveProducer(cidHigh)
	require.True(t, changed)
	winner, _, ok = pt.Winner()
	require.True(t, ok)
	require.Equal(t, cidLow, winner)
}

func TestExpireProducersFailsOverToLiveLowerPriority(t *testing.T) {
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	pt := NewPoint(addr)
	now := time.Now()

	cidHigh := wire.NewCID()
	cidLow := wire.NewCID()

	pt.Update(cidHigh, 150, nil, now.Add(-time.Hour))
	pt.Update(cidLow, 100, nil, now)

	winner, _, ok := pt.Winner()
	require.True(t, ok)
	require.Equal(t, cidHigh, winner)

	changed := pt.ExpireProducers(now, time.Minute)
	require.True(t, changed)
	winner, _, ok = pt.Winner()
	require.True(t, ok)
	require.Equal(t, cidLow, winner)
}

func TestExpireProducersKeepsLiveWinner(t *testing.T) {
	addr := wire.Address{System: 1, Group: 1, Point: 1}
	pt := NewPoint(addr)
	now := time.Now()

	cid := wire.NewCID()
	pt.Update(cid, 100, nil, now)

	changed := pt.ExpireProducers(now, time.Minute)
	require.False(t, changed)
	winner, _, ok := pt.Winner()
	require.True(t, ok)
	require.Equal(t, cid, winner)
}

func TestDecodeModulesVendorFallback(t *testing.T) {
	mods := []wire.ModulePDU{
		{ManufacturerID: 0x1234, ModuleNumber: 0x0001, Data: []byte{1, 2, 3}},
		{ManufacturerID: wire.ESTAManufacturerID, ModuleNumber: wire.ModuleRotation, Data: wire.MarshalRotation(wire.Rotation{X: 1})},
	}
	d := decodeModules(mods)
	require.NotNil(t, d.Rotation)
	require.Equal(t, uint32(1), d.Rotation.X)
	require.Len(t, d.Vendor, 1)
}

func TestResolveChainAccumulatesAndBreaksCycles(t *testing.T) {
	root := wire.Address{System: 1, Group: 1, Point: 1}
	parent := wire.Address{System: 1, Group: 1, Point: 2}

	table := map[wire.Address]Details{
		root: {
			Position:       &wire.Position{X: 10},
			ReferenceFrame: &wire.ReferenceFrame{Address: parent},
		},
		parent: {
			Position:       &wire.Position{X: 5},
			ReferenceFrame: &wire.ReferenceFrame{Address: root}, // cycle back to root
		},
	}
	lookup := func(addr wire.Address) (Details, bool) {
		d, ok := table[addr]
		return d, ok
	}

	resolved := Resolve(root, lookup)
	require.Equal(t, int32(15), resolved.Position.X)
}

func TestResolveChainAbsolutePoint(t *testing.T) {
	root := wire.Address{System: 1, Group: 1, Point: 1}
	table := map[wire.Address]Details{
		root: {Position: &wire.Position{X: 42}},
	}
	lookup := func(addr wire.Address) (Details, bool) {
		d, ok := table[addr]
		return d, ok
	}
	resolved := Resolve(root, lookup)
	require.Equal(t, int32(42), resolved.Position.X)
}
