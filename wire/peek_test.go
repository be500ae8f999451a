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

func TestPeekOTPVectorTransform(t *testing.T) {
	msg := &TransformMessage{
		CID:           NewCID(),
		ComponentName: NewName("peek"),
		System:        1,
	}
	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	vec, err := PeekOTPVector(b)
	require.NoError(t, err)
	require.Equal(t, VectorOTPTransformMessage, vec)
}

func TestPeekOTPVectorAdvertisement(t *testing.T) {
	msg := &AdvertisementMessage{
		CID:           NewCID(),
		ComponentName: NewName("peek"),
		Kind:          AdvertisementSystem,
		Systems:       []System{1, 2},
	}
	b, err := msg.MarshalBinary()
	require.NoError(t, err)

	vec, err := PeekOTPVector(b)
	require.NoError(t, err)
	require.Equal(t, VectorOTPAdvertisementMessage, vec)
}

func TestPeekOTPVectorTooShort(t *testing.T) {
	_, err := PeekOTPVector([]byte{0, 0, 0})
	require.Error(t, err)
}
