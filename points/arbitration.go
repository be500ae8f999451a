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

// Package points holds the per-point data model: the six standard module
// values, the set of producers currently transforming a point, and the
// arbitration that picks which producer's data wins when more than one
// claims the same address.
package points

import (
	"time"

	"github.com/esta-otp/otp/wire"
)

// Verdict is the outcome of comparing two producers for the same point,
// mirroring the ABetter/BBetter/Unknown result shape of a BMCA-style
// comparator.
type Verdict int

// Verdicts.
const (
	Unknown Verdict = iota
	ABetter
	BBetter
)

// Candidate is the arbitration-relevant state of one producer's claim on a point.
type Candidate struct {
	CID      wire.CID
	Priority wire.Priority
	LastSeen time.Time
}

// Compare ranks two candidates by priority (higher wins), then recency
// (more recently seen wins), then CID bytewise as a deterministic
// tie-break -- the same three-level fallback shape as a BMCA comparator,
// specialized to OTP's arbitration rule instead of PTP's dataset compare.
func Compare(a, b Candidate) Verdict {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return ABetter
		}
		return BBetter
	}
	if !a.LastSeen.Equal(b.LastSeen) {
		if a.LastSeen.After(b.LastSeen) {
			return ABetter
		}
		return BBetter
	}
	switch {
	case a.CID == b.CID:
		return Unknown
	case lessCID(a.CID, b.CID):
		return ABetter
	default:
		return BBetter
	}
}

func lessCID(a, b wire.CID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Best returns the candidate that wins arbitration among all of them, or
// false if candidates is empty.
func Best(candidates map[wire.CID]Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range candidates {
		if !found || Compare(c, best) == ABetter {
			best = c
			found = true
		}
	}
	return best, found
}
