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

package timing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickerFiresImmediatelyThenOnInterval(t *testing.T) {
	var count int64
	ticker := NewTicker(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker.Start(ctx, func() { atomic.AddInt64(&count, 1) })
	require.Eventually(t, func() bool { return atomic.LoadInt64(&count) >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&count) >= 3 }, time.Second, time.Millisecond)
	require.True(t, ticker.Running())

	ticker.Stop()
	require.Eventually(t, func() bool { return !ticker.Running() }, time.Second, time.Millisecond)
}

func TestTickerStartTwiceIsNoop(t *testing.T) {
	var count int64
	ticker := NewTicker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticker.Start(ctx, func() { atomic.AddInt64(&count, 1) })
	ticker.Start(ctx, func() { atomic.AddInt64(&count, 100) })
	require.Eventually(t, func() bool { return atomic.LoadInt64(&count) == 1 }, time.Second, time.Millisecond)
	ticker.Stop()
}
