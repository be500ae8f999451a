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

// Package folio reassembles the datagrams of a multi-page folio (a single
// logical Transform or Advertisement message split across several UDP
// datagrams) into one complete message, discarding stale or duplicate
// pages along the way.
package folio

// sequenceStaleMargin is the threshold of the sequence check: a candidate
// counts as newer only when (last - candidate) mod 65536 exceeds it, i.e.
// when the candidate is 1..2000 ahead of last. Per SPEC_FULL.md Open
// Question resolution #1, the threshold is 63535 (not the original
// implementation's 63335).
const sequenceStaleMargin = 63535

// isNewerSequence reports whether candidate is strictly newer than last,
// under modulo-65536 wraparound arithmetic.
func isNewerSequence(last, candidate uint16) bool {
	return last-candidate > sequenceStaleMargin
}

// folioStaleMargin is the folio "newer" window: a candidate folio counts
// as newer when it is 1..32767 ahead of last, modulo 2^32.
const folioStaleMargin = 32767

// isNewerFolio reports whether candidate is strictly newer than last,
// under modulo-2^32 wraparound arithmetic.
func isNewerFolio(last, candidate uint32) bool {
	diff := candidate - last
	return diff > 0 && diff <= folioStaleMargin
}
