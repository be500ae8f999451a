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

package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeNetworkSendAndRecv(t *testing.T) {
	local := &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 5568}
	fn := NewFakeNetwork(local)
	defer fn.Close()

	dst := &net.UDPAddr{IP: net.ParseIP("239.1.1.1"), Port: 5568}
	require.NoError(t, fn.SendTo(dst, []byte("hello")))
	require.Len(t, fn.Sent(), 1)
	require.Equal(t, []byte("hello"), fn.Sent()[0].Data)

	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 5568}
	fn.Deliver([]byte("world"), from)

	buf := make([]byte, 64)
	d, err := fn.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, []byte("world"), d.Data)
	require.Equal(t, from, d.From)
}

func TestFakeNetworkGroups(t *testing.T) {
	fn := NewFakeNetwork(&net.UDPAddr{})
	defer fn.Close()
	group := &net.UDPAddr{IP: net.ParseIP("239.1.1.1"), Port: 5568}
	require.NoError(t, fn.JoinGroup(group, nil))
	require.Contains(t, fn.Groups(), group.String())
	require.NoError(t, fn.LeaveGroup(group, nil))
	require.NotContains(t, fn.Groups(), group.String())
}
