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

import "github.com/esta-otp/otp/wire"

// SplitTransformPages packs pdus into as many Transform message pages as
// needed to keep each datagram under wire.MaxMessageSize: greedy append,
// start a new page once the next Point PDU would push the message over
// the limit. The producer engine builds its Transform folios this way;
// the algorithm lives here next to the reassembler that undoes it.
func SplitTransformPages(cid wire.CID, name wire.Name, system wire.System, folioNum uint32, fullPointSet bool, pdus []wire.PointPDU) []*wire.TransformMessage {
	base := func() *wire.TransformMessage {
		return &wire.TransformMessage{
			CID:           cid,
			Folio:         folioNum,
			ComponentName: name,
			System:        system,
			FullPointSet:  fullPointSet,
		}
	}
	if len(pdus) == 0 {
		return []*wire.TransformMessage{base()}
	}

	var pages []*wire.TransformMessage
	current := base()
	for _, pdu := range pdus {
		trial := *current
		trial.Points = append(append([]wire.PointPDU(nil), current.Points...), pdu)
		if _, err := trial.MarshalBinary(); err != nil {
			pages = append(pages, current)
			current = base()
			current.Points = []wire.PointPDU{pdu}
			continue
		}
		current.Points = trial.Points
	}
	pages = append(pages, current)

	for i, page := range pages {
		page.Page = uint16(i)
		page.LastPage = uint16(len(pages) - 1)
	}
	return pages
}

// SplitAdvertisementPages pages msg's list field (whichever one Kind
// selects) across as many datagrams as needed to stay under
// wire.MaxMessageSize, the same greedy algorithm as SplitTransformPages
// applied to Module/Name/System list entries instead of Point PDUs.
func SplitAdvertisementPages(msg *wire.AdvertisementMessage) []*wire.AdvertisementMessage {
	var pages []*wire.AdvertisementMessage
	switch msg.Kind {
	case wire.AdvertisementSystem:
		pages = splitBySlice(msg, len(msg.Systems),
			func(page *wire.AdvertisementMessage, n int) { page.Systems = page.Systems[:n] },
			func(rest *wire.AdvertisementMessage, n int) { rest.Systems = rest.Systems[n:] })
	case wire.AdvertisementName:
		pages = splitBySlice(msg, len(msg.Points),
			func(page *wire.AdvertisementMessage, n int) { page.Points = page.Points[:n] },
			func(rest *wire.AdvertisementMessage, n int) { rest.Points = rest.Points[n:] })
	default:
		pages = splitBySlice(msg, len(msg.Modules),
			func(page *wire.AdvertisementMessage, n int) { page.Modules = page.Modules[:n] },
			func(rest *wire.AdvertisementMessage, n int) { rest.Modules = rest.Modules[n:] })
	}
	for i, page := range pages {
		page.Page = uint16(i)
		page.LastPage = uint16(len(pages) - 1)
	}
	return pages
}

// splitBySlice finds, by scanning down from the full remaining count,
// the largest prefix of entries that still marshals under
// wire.MaxMessageSize, then recurses on the remainder.
func splitBySlice(msg *wire.AdvertisementMessage, total int, setPrefix func(*wire.AdvertisementMessage, int), setRemainder func(*wire.AdvertisementMessage, int)) []*wire.AdvertisementMessage {
	if total == 0 {
		only := *msg
		return []*wire.AdvertisementMessage{&only}
	}
	var pages []*wire.AdvertisementMessage
	remaining := *msg
	remainingCount := total
	for remainingCount > 0 {
		n := remainingCount
		for n > 0 {
			probe := remaining
			setPrefix(&probe, n)
			if _, err := probe.MarshalBinary(); err == nil {
				break
			}
			n--
		}
		if n == 0 {
			n = 1 // always make progress even if a single entry can't fit cleanly
		}
		page := remaining
		setPrefix(&page, n)
		pages = append(pages, &page)

		setRemainder(&remaining, n)
		remainingCount -= n
	}
	return pages
}
