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
	"testing"
	"time"

	"github.com/esta-otp/otp/wire"
	"github.com/stretchr/testify/require"
)

func TestIsNewerSequenceWraparound(t *testing.T) {
	require.True(t, isNewerSequence(65000, 10))
	require.False(t, isNewerSequence(10, 65000))
	require.False(t, isNewerSequence(100, 100))
}

func TestReassemblerSinglePage(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	msg := &wire.TransformMessage{
		CID: cid, Sequence: 1, Folio: 1, Page: 0, LastPage: 0,
		ComponentName: wire.NewName("p1"), System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 1}},
	}
	got, complete := r.AddTransform(msg)
	require.True(t, complete)
	require.Len(t, got.Points, 1)
}

func TestReassemblerMultiPage(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	page0 := &wire.TransformMessage{
		CID: cid, Sequence: 1, Folio: 1, Page: 0, LastPage: 1,
		ComponentName: wire.NewName("p1"), System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 1}},
	}
	page1 := &wire.TransformMessage{
		CID: cid, Sequence: 1, Folio: 1, Page: 1, LastPage: 1,
		ComponentName: wire.NewName("p1"), System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 2}},
	}
	_, complete := r.AddTransform(page0)
	require.False(t, complete)
	got, complete := r.AddTransform(page1)
	require.True(t, complete)
	require.Len(t, got.Points, 2)
}

func TestReassemblerNewerFolioReplacesIncomplete(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	stale := &wire.TransformMessage{CID: cid, Sequence: 1, Folio: 1, Page: 0, LastPage: 1, System: 1}
	_, complete := r.AddTransform(stale)
	require.False(t, complete)

	fresh := &wire.TransformMessage{CID: cid, Sequence: 2, Folio: 2, Page: 0, LastPage: 0, System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 5}}}
	got, complete := r.AddTransform(fresh)
	require.True(t, complete)
	require.Len(t, got.Points, 1)
}

func TestReassemblerStaleSequenceIgnoredDespiteNewerFolio(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	current := &wire.TransformMessage{CID: cid, Sequence: 1000, Folio: 1, Page: 0, LastPage: 1, System: 1}
	_, complete := r.AddTransform(current)
	require.False(t, complete)

	// Folio number looks newer, but the sequence number regressed into the
	// rejected backward window -- the sequence check is independent of the
	// folio check and must still drop it.
	replay := &wire.TransformMessage{CID: cid, Sequence: 900, Folio: 2, Page: 0, LastPage: 0, System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 5}}}
	_, complete = r.AddTransform(replay)
	require.False(t, complete)
}

func TestReassemblerStaleFolioIgnored(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	current := &wire.TransformMessage{CID: cid, Folio: 100, Page: 0, LastPage: 1, System: 1}
	_, complete := r.AddTransform(current)
	require.False(t, complete)

	older := &wire.TransformMessage{CID: cid, Folio: 50, Page: 0, LastPage: 0, System: 1}
	_, complete = r.AddTransform(older)
	require.False(t, complete)
}

func TestReassemblerDuplicatePageIgnored(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	page0 := &wire.TransformMessage{CID: cid, Folio: 1, Page: 0, LastPage: 1, System: 1,
		Points: []wire.PointPDU{{Group: 1, Point: 1}}}
	_, complete := r.AddTransform(page0)
	require.False(t, complete)
	_, complete = r.AddTransform(page0)
	require.False(t, complete)
}

func TestReassemblerAdvertisementMultiPage(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	page0 := &wire.AdvertisementMessage{
		CID: cid, Folio: 1, Page: 0, LastPage: 1, Kind: wire.AdvertisementSystem,
		Systems: []wire.System{1, 2},
	}
	page1 := &wire.AdvertisementMessage{
		CID: cid, Folio: 1, Page: 1, LastPage: 1, Kind: wire.AdvertisementSystem,
		Systems: []wire.System{3},
	}
	_, complete := r.AddAdvertisement(page0)
	require.False(t, complete)
	got, complete := r.AddAdvertisement(page1)
	require.True(t, complete)
	require.Equal(t, []wire.System{1, 2, 3}, got.Systems)
}

func TestReassemblerSweepEvictsStale(t *testing.T) {
	r := NewReassembler()
	cid := wire.NewCID()
	msg := &wire.TransformMessage{CID: cid, Folio: 1, Page: 0, LastPage: 1, System: 1}
	_, complete := r.AddTransform(msg)
	require.False(t, complete)

	r.Sweep(0)
	require.Empty(t, r.transforms)

	msg2 := &wire.TransformMessage{CID: cid, Folio: 1, Page: 1, LastPage: 1, System: 1}
	_, complete = r.AddTransform(msg2)
	require.False(t, complete)
	require.Len(t, r.transforms, 1)

	time.Sleep(time.Millisecond)
	r.Sweep(time.Hour)
	require.Len(t, r.transforms, 1)
}
