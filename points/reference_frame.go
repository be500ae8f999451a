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

package points

import "github.com/esta-otp/otp/wire"

// Resolved is the world-space accumulation of a point's Position,
// PositionVelAcc, Rotation and RotationVelAcc after walking its
// ReferenceFrame chain up to either an absolute point (no ReferenceFrame
// module) or a cycle.
type Resolved struct {
	Position       wire.Position
	PositionVelAcc wire.PositionVelAcc
	Rotation       wire.Rotation
	RotationVelAcc wire.RotationVelAcc
}

// Lookup resolves an address to its current winning Details, used to walk
// a reference-frame chain without the points package depending on the
// container package that owns the address space.
type Lookup func(addr wire.Address) (Details, bool)

// Resolve accumulates root's transform with every ancestor named by its
// ReferenceFrame chain, in world space. Cycles are broken by tracking
// visited addresses: once a chain revisits an address, accumulation stops
// there rather than looping or erroring, per the reference-frame
// resolution rule.
func Resolve(root wire.Address, lookup Lookup) Resolved {
	var out Resolved
	visited := map[wire.Address]bool{root: true}

	addr := root
	for {
		details, ok := lookup(addr)
		if !ok {
			break
		}
		accumulate(&out, details)
		if details.ReferenceFrame == nil {
			break
		}
		next := details.ReferenceFrame.Address
		if visited[next] {
			break
		}
		visited[next] = true
		addr = next
	}
	return out
}

func accumulate(out *Resolved, d Details) {
	if d.Position != nil {
		out.Position.X += d.Position.X
		out.Position.Y += d.Position.Y
		out.Position.Z += d.Position.Z
		out.Position.Scale = d.Position.Scale
	}
	if d.PositionVelAcc != nil {
		out.PositionVelAcc.VelX += d.PositionVelAcc.VelX
		out.PositionVelAcc.VelY += d.PositionVelAcc.VelY
		out.PositionVelAcc.VelZ += d.PositionVelAcc.VelZ
		out.PositionVelAcc.AccX += d.PositionVelAcc.AccX
		out.PositionVelAcc.AccY += d.PositionVelAcc.AccY
		out.PositionVelAcc.AccZ += d.PositionVelAcc.AccZ
	}
	if d.Rotation != nil {
		out.Rotation.X = (out.Rotation.X + d.Rotation.X) % wire.RotationModulus
		out.Rotation.Y = (out.Rotation.Y + d.Rotation.Y) % wire.RotationModulus
		out.Rotation.Z = (out.Rotation.Z + d.Rotation.Z) % wire.RotationModulus
	}
	if d.RotationVelAcc != nil {
		out.RotationVelAcc.VelX += d.RotationVelAcc.VelX
		out.RotationVelAcc.VelY += d.RotationVelAcc.VelY
		out.RotationVelAcc.VelZ += d.RotationVelAcc.VelZ
		out.RotationVelAcc.AccX += d.RotationVelAcc.AccX
		out.RotationVelAcc.AccY += d.RotationVelAcc.AccY
		out.RotationVelAcc.AccZ += d.RotationVelAcc.AccZ
	}
}
