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

// Package transport is the small socket/clock abstraction the producer
// and consumer engines are built against, so their logic can run under a
// fake transport in tests the way the teacher's server/client code runs
// under a fake Clock.
package transport

import (
	"context"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Clock is the time source engines consult; tests substitute a fake one.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall-clock Clock implementation.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Datagram is one received UDP packet, with its source for Module
// Advertisement / Name Advertisement response routing.
type Datagram struct {
	Data []byte
	From *net.UDPAddr
}

// Network is the packet I/O surface engines depend on: unicast send for
// advertisement responses, multicast send for transform/advertisement
// requests, and a shared receive queue for everything addressed to this
// component.
type Network interface {
	SendTo(addr *net.UDPAddr, data []byte) error
	Recv(buf []byte) (Datagram, error)
	JoinGroup(group *net.UDPAddr, iface *net.Interface) error
	LeaveGroup(group *net.UDPAddr, iface *net.Interface) error
	LocalAddr() net.Addr
	Close() error
}

// UDPNetwork is the reference Network implementation: one UDP socket
// bound to the OTP port, with SO_REUSEPORT set (so a producer and
// consumer role on the same host can share the port, mirroring the
// teacher's event/general listener sockets in ptp4u/server/worker.go) and
// IGMP membership managed through golang.org/x/net/ipv4, a dependency the
// teacher's go.mod already carries.
type UDPNetwork struct {
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
}

// Listen binds a UDP socket on the given local address with SO_REUSEPORT set.
func Listen(localAddr *net.UDPAddr) (*UDPNetwork, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", localAddr.String())
	if err != nil {
		return nil, err
	}
	udpConn := pc.(*net.UDPConn)
	return &UDPNetwork{conn: udpConn, pconn: ipv4.NewPacketConn(udpConn)}, nil
}

// SendTo writes data to addr (unicast or multicast).
func (n *UDPNetwork) SendTo(addr *net.UDPAddr, data []byte) error {
	_, err := n.conn.WriteToUDP(data, addr)
	return err
}

// Recv blocks for the next datagram into buf.
func (n *UDPNetwork) Recv(buf []byte) (Datagram, error) {
	nRead, from, err := n.conn.ReadFromUDP(buf)
	if err != nil {
		return Datagram{}, err
	}
	out := make([]byte, nRead)
	copy(out, buf[:nRead])
	return Datagram{Data: out, From: from}, nil
}

// JoinGroup subscribes to group's multicast traffic on iface (nil means
// the system default interface).
func (n *UDPNetwork) JoinGroup(group *net.UDPAddr, iface *net.Interface) error {
	return n.pconn.JoinGroup(iface, group)
}

// LeaveGroup unsubscribes from group's multicast traffic on iface.
func (n *UDPNetwork) LeaveGroup(group *net.UDPAddr, iface *net.Interface) error {
	return n.pconn.LeaveGroup(iface, group)
}

// LocalAddr returns the socket's bound local address.
func (n *UDPNetwork) LocalAddr() net.Addr { return n.conn.LocalAddr() }

// Close closes the underlying socket.
func (n *UDPNetwork) Close() error { return n.conn.Close() }
