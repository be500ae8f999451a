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

func TestPositionRoundTrip(t *testing.T) {
	tests := []Position{
		{Scale: ScaleMM, X: 1000, Y: -2000, Z: 0},
		{Scale: ScaleUM, X: -1, Y: 1, Z: 123456},
	}
	for _, want := range tests {
		b := make([]byte, want.size())
		n := want.marshal(b)
		require.Equal(t, 13, n)
		got, err := unmarshalPosition(b)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPositionTruncatedDecode(t *testing.T) {
	_, err := unmarshalPosition(make([]byte, 5))
	require.Error(t, err)
	require.True(t, IsKind(err, MalformedLayer))
}

func TestPositionVelAccRoundTrip(t *testing.T) {
	want := PositionVelAcc{VelX: 1, VelY: -1, VelZ: 2, AccX: -2, AccY: 3, AccZ: -3}
	b := make([]byte, want.size())
	want.marshal(b)
	got, err := unmarshalPositionVelAcc(b)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRotationModulus(t *testing.T) {
	want := Rotation{X: RotationModulus + 10, Y: 0, Z: 359999999}
	b := make([]byte, want.size())
	want.marshal(b)
	got, err := unmarshalRotation(b)
	require.NoError(t, err)
	require.Equal(t, uint32(10), got.X)
	require.Equal(t, uint32(359999999), got.Z)
}

func TestRotationVelAccRoundTrip(t *testing.T) {
	want := RotationVelAcc{VelX: 5, VelY: -5, VelZ: 6, AccX: -6, AccY: 7, AccZ: -7}
	b := make([]byte, want.size())
	want.marshal(b)
	got, err := unmarshalRotationVelAcc(b)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestScaleRoundTrip(t *testing.T) {
	want := Scale{X: 1000, Y: 1000, Z: 500}
	b := make([]byte, want.size())
	want.marshal(b)
	got, err := unmarshalScale(b)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestReferenceFrameRoundTrip(t *testing.T) {
	want := ReferenceFrame{Address: Address{System: 1, Group: 2, Point: 3}}
	b := make([]byte, want.size())
	want.marshal(b)
	got, err := unmarshalReferenceFrame(b)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
