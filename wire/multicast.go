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

import "net"

// OTPPort is the well-known UDP port every OTP datagram is sent to.
const OTPPort = 5568

// TransformGroup returns the IPv4 multicast group a system's Transform
// traffic is sent to: 239.159.1.<system>. Both the producer and consumer
// engines need this address (one to send to it, the other to join it),
// so it lives here rather than in either engine package.
func TransformGroup(system System) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(239, 159, 1, byte(system)), Port: OTPPort}
}

// AdvertisementGroup is the IPv4 multicast group every Advertisement
// message is sent to, regardless of kind.
func AdvertisementGroup() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(239, 159, 2, 1), Port: OTPPort}
}
