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

// Package produder wires one producer.Producer and one consumer.Consumer
// together behind a single CID and a single container.Container: a
// component that both produces transform data for points it owns and
// consumes transform data for points other components own. Grounded on
// sptp.SPTP's pattern of composing several independent engines under one
// errgroup-driven Run; here the two engines also share their address
// space, so a remote peer heard from in both directions accumulates into
// one container.RoleProduder Component instead of two separate entries.
package produder

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/esta-otp/otp/consumer"
	"github.com/esta-otp/otp/container"
	"github.com/esta-otp/otp/producer"
	"github.com/esta-otp/otp/stats"
	"github.com/esta-otp/otp/transport"
	"github.com/esta-otp/otp/wire"
)

// Produder is a single component running both the producer and consumer
// engine roles against one shared address space.
type Produder struct {
	Producer *producer.Producer
	Consumer *consumer.Consumer

	components *container.Container
}

// New builds a Produder identified by cid/name. prodNet and consNet are
// the transport.Network each engine sends and receives through. Each
// engine runs its own receive loop on its Network; cmd/otp-produder gives
// each one its own SO_REUSEPORT socket so both loops see every datagram.
func New(cid wire.CID, name wire.Name, prodNet, consNet transport.Network, clock transport.Clock, st *stats.Stats) *Produder {
	shared := container.New(256)
	return &Produder{
		Producer:   producer.NewWithContainer(cid, name, prodNet, clock, st, shared),
		Consumer:   consumer.NewWithContainer(cid, name, consNet, clock, st, shared),
		components: shared,
	}
}

// Components exposes the address space both engines populate, where a
// peer seen as both producer and consumer carries container.RoleProduder.
func (d *Produder) Components() *container.Container { return d.components }

// Run drives both engines concurrently until ctx is cancelled, returning
// the first error either one reports.
func (d *Produder) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return d.Producer.Run(ctx) })
	eg.Go(func() error { return d.Consumer.Run(ctx) })
	return eg.Wait()
}
