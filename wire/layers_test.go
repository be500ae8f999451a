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

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePosition(x int32) []byte {
	p := Position{Scale: ScaleMM, X: x, Y: x + 1, Z: x + 2}
	b := make([]byte, p.size())
	p.marshal(b)
	return b
}

func TestTransformMessageRoundTrip(t *testing.T) {
	want := &TransformMessage{
		CID:           NewCID(),
		Sequence:      42,
		Folio:         7,
		Page:          0,
		LastPage:      0,
		ComponentName: NewName("console-1"),
		System:        1,
		FrameTime:     NewTimestamp(123456789),
		FullPointSet:  true,
		Points: []PointPDU{
			{
				Priority:  DefaultPriority,
				Group:     10,
				Point:     1,
				Timestamp: 1000,
				Modules: []ModulePDU{
					{ManufacturerID: ESTAManufacturerID, ModuleNumber: ModulePosition, Data: samplePosition(100)},
				},
			},
			{
				Priority:  DefaultPriority,
				Group:     10,
				Point:     2,
				Timestamp: 2000,
				Modules: []ModulePDU{
					{ManufacturerID: ESTAManufacturerID, ModuleNumber: ModulePosition, Data: samplePosition(200)},
					{ManufacturerID: ESTAManufacturerID, ModuleNumber: ModuleRotation, Data: func() []byte {
						r := Rotation{X: 1, Y: 2, Z: 3}
						b := make([]byte, r.size())
						r.marshal(b)
						return b
					}()},
				},
			},
		},
	}

	encoded, err := want.MarshalBinary()
	require.NoError(t, err)
	require.LessOrEqual(t, len(encoded), MaxMessageSize)

	got, err := UnmarshalTransformMessage(encoded)
	require.NoError(t, err)
	require.Equal(t, want.CID, got.CID)
	require.Equal(t, want.Sequence, got.Sequence)
	require.Equal(t, want.Folio, got.Folio)
	require.Equal(t, want.ComponentName, got.ComponentName)
	require.Equal(t, want.System, got.System)
	require.True(t, want.FrameTime.Equal(got.FrameTime))
	require.Equal(t, want.FullPointSet, got.FullPointSet)
	require.Equal(t, want.Points, got.Points)
}

func TestTransformMessageRejectsBadPreamble(t *testing.T) {
	m := &TransformMessage{CID: NewCID(), ComponentName: NewName("x"), System: 1}
	b, err := m.MarshalBinary()
	require.NoError(t, err)
	b[0] = 0xFF
	_, err = UnmarshalTransformMessage(b)
	require.Error(t, err)
	require.True(t, IsKind(err, MalformedLayer))
}

func TestTransformMessageRejectsZeroCID(t *testing.T) {
	m := &TransformMessage{ComponentName: NewName("x"), System: 1}
	b, err := m.MarshalBinary()
	require.NoError(t, err)
	_, err = UnmarshalTransformMessage(b)
	require.Error(t, err)
	require.True(t, IsKind(err, MalformedLayer))
}

func TestTransformMessageRejectsOutOfRangeSystem(t *testing.T) {
	m := &TransformMessage{CID: NewCID(), ComponentName: NewName("x"), System: 0}
	b, err := m.MarshalBinary()
	require.NoError(t, err)
	_, err = UnmarshalTransformMessage(b)
	require.Error(t, err)
	require.True(t, IsKind(err, OutOfRange))
}

func TestTransformMessageTooLarge(t *testing.T) {
	m := &TransformMessage{CID: NewCID(), ComponentName: NewName("x"), System: 1}
	for i := 0; i < 200; i++ {
		m.Points = append(m.Points, PointPDU{
			Priority: DefaultPriority,
			Group:    1,
			Point:    Point(i + 1),
			Modules: []ModulePDU{
				{ManufacturerID: ESTAManufacturerID, ModuleNumber: ModulePosition, Data: samplePosition(int32(i))},
			},
		})
	}
	_, err := m.MarshalBinary()
	require.Error(t, err)
	require.True(t, IsKind(err, MessageTooLarge))
}
