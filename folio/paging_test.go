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

	"github.com/stretchr/testify/require"

	"github.com/esta-otp/otp/wire"
)

func TestSplitTransformPagesSinglePage(t *testing.T) {
	cid := wire.NewCID()
	pdus := []wire.PointPDU{
		{Priority: 100, Group: 1, Point: 1},
		{Priority: 100, Group: 1, Point: 2},
	}
	pages := SplitTransformPages(cid, wire.NewName("p"), 1, 1, false, pdus)
	require.Len(t, pages, 1)
	require.Equal(t, uint16(0), pages[0].LastPage)
	require.Len(t, pages[0].Points, 2)
}

func TestSplitTransformPagesMultiPage(t *testing.T) {
	cid := wire.NewCID()
	var pdus []wire.PointPDU
	big := make([]byte, 64)
	for i := 0; i < 40; i++ {
		pdus = append(pdus, wire.PointPDU{
			Priority: 100,
			Group:    1,
			Point:    wire.Point(i + 1),
			Modules: []wire.ModulePDU{{
				ManufacturerID: wire.ESTAManufacturerID,
				ModuleNumber:   wire.ModulePosition,
				Data:           big,
			}},
		})
	}
	pages := SplitTransformPages(cid, wire.NewName("p"), 1, 1, false, pdus)
	require.Greater(t, len(pages), 1)

	total := 0
	for i, page := range pages {
		require.Equal(t, uint16(i), page.Page)
		require.Equal(t, uint16(len(pages)-1), page.LastPage)
		b, err := page.MarshalBinary()
		require.NoError(t, err)
		require.LessOrEqual(t, len(b), wire.MaxMessageSize)
		total += len(page.Points)
	}
	require.Equal(t, len(pdus), total)
}

func TestSplitAdvertisementPagesSystems(t *testing.T) {
	msg := &wire.AdvertisementMessage{
		CID:      wire.NewCID(),
		Kind:     wire.AdvertisementSystem,
		Response: true,
		Systems:  []wire.System{1, 2, 3},
	}
	pages := SplitAdvertisementPages(msg)
	require.Len(t, pages, 1)
	require.Equal(t, []wire.System{1, 2, 3}, pages[0].Systems)
}

func TestSplitAdvertisementPagesNamesMultiPage(t *testing.T) {
	var points []wire.AddressPointDescription
	for i := 0; i < 60; i++ {
		points = append(points, wire.AddressPointDescription{
			Address: wire.Address{System: 1, Group: 1, Point: wire.Point(i + 1)},
			Name:    wire.NewName("point"),
		})
	}
	msg := &wire.AdvertisementMessage{
		CID:      wire.NewCID(),
		Kind:     wire.AdvertisementName,
		Response: true,
		Points:   points,
	}
	pages := SplitAdvertisementPages(msg)
	require.Greater(t, len(pages), 1)

	total := 0
	for _, page := range pages {
		b, err := page.MarshalBinary()
		require.NoError(t, err)
		require.LessOrEqual(t, len(b), wire.MaxMessageSize)
		total += len(page.Points)
	}
	require.Equal(t, len(points), total)
}
