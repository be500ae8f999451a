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

import "encoding/binary"

// PositionScale is the Position module's units bit (Section 16.1).
type PositionScale uint8

// Position scale values.
const (
	ScaleMM PositionScale = 0
	ScaleUM PositionScale = 1
)

const positionScalingMask uint8 = 1 << 7

// Position is the Section 16.1 Position module payload (13 octets).
type Position struct {
	Scale PositionScale
	X, Y, Z int32
}

func (p Position) size() int { return 13 }

func (p Position) marshal(b []byte) int {
	var opts uint8
	if p.Scale == ScaleUM {
		opts |= positionScalingMask
	}
	b[0] = opts
	binary.BigEndian.PutUint32(b[1:], uint32(p.X))
	binary.BigEndian.PutUint32(b[5:], uint32(p.Y))
	binary.BigEndian.PutUint32(b[9:], uint32(p.Z))
	return 13
}

func unmarshalPosition(b []byte) (Position, error) {
	if len(b) < 13 {
		return Position{}, newDecodeError(MalformedLayer, "Position module needs 13 bytes, got %d", len(b))
	}
	var p Position
	if b[0]&positionScalingMask != 0 {
		p.Scale = ScaleUM
	}
	p.X = int32(binary.BigEndian.Uint32(b[1:]))
	p.Y = int32(binary.BigEndian.Uint32(b[5:]))
	p.Z = int32(binary.BigEndian.Uint32(b[9:]))
	return p, nil
}

// PositionVelAcc is the Section 16.2 Position Velocity/Acceleration module payload (24 octets).
type PositionVelAcc struct {
	VelX, VelY, VelZ int32
	AccX, AccY, AccZ int32
}

func (p PositionVelAcc) size() int { return 24 }

func (p PositionVelAcc) marshal(b []byte) int {
	binary.BigEndian.PutUint32(b[0:], uint32(p.VelX))
	binary.BigEndian.PutUint32(b[4:], uint32(p.VelY))
	binary.BigEndian.PutUint32(b[8:], uint32(p.VelZ))
	binary.BigEndian.PutUint32(b[12:], uint32(p.AccX))
	binary.BigEndian.PutUint32(b[16:], uint32(p.AccY))
	binary.BigEndian.PutUint32(b[20:], uint32(p.AccZ))
	return 24
}

func unmarshalPositionVelAcc(b []byte) (PositionVelAcc, error) {
	if len(b) < 24 {
		return PositionVelAcc{}, newDecodeError(MalformedLayer, "PositionVelAcc module needs 24 bytes, got %d", len(b))
	}
	var p PositionVelAcc
	p.VelX = int32(binary.BigEndian.Uint32(b[0:]))
	p.VelY = int32(binary.BigEndian.Uint32(b[4:]))
	p.VelZ = int32(binary.BigEndian.Uint32(b[8:]))
	p.AccX = int32(binary.BigEndian.Uint32(b[12:]))
	p.AccY = int32(binary.BigEndian.Uint32(b[16:]))
	p.AccZ = int32(binary.BigEndian.Uint32(b[20:]))
	return p, nil
}

// Rotation is the Section 16.3 Rotation module payload (12 octets), values
// in micro-degrees, taken modulo RotationModulus on accumulation.
type Rotation struct {
	X, Y, Z uint32
}

func (r Rotation) size() int { return 12 }

func (r Rotation) marshal(b []byte) int {
	binary.BigEndian.PutUint32(b[0:], r.X%RotationModulus)
	binary.BigEndian.PutUint32(b[4:], r.Y%RotationModulus)
	binary.BigEndian.PutUint32(b[8:], r.Z%RotationModulus)
	return 12
}

func unmarshalRotation(b []byte) (Rotation, error) {
	if len(b) < 12 {
		return Rotation{}, newDecodeError(MalformedLayer, "Rotation module needs 12 bytes, got %d", len(b))
	}
	return Rotation{
		X: binary.BigEndian.Uint32(b[0:]) % RotationModulus,
		Y: binary.BigEndian.Uint32(b[4:]) % RotationModulus,
		Z: binary.BigEndian.Uint32(b[8:]) % RotationModulus,
	}, nil
}

// RotationVelAcc is the Section 16.4 Rotation Velocity/Acceleration module payload (24 octets).
type RotationVelAcc struct {
	VelX, VelY, VelZ int32
	AccX, AccY, AccZ int32
}

func (r RotationVelAcc) size() int { return 24 }

func (r RotationVelAcc) marshal(b []byte) int {
	binary.BigEndian.PutUint32(b[0:], uint32(r.VelX))
	binary.BigEndian.PutUint32(b[4:], uint32(r.VelY))
	binary.BigEndian.PutUint32(b[8:], uint32(r.VelZ))
	binary.BigEndian.PutUint32(b[12:], uint32(r.AccX))
	binary.BigEndian.PutUint32(b[16:], uint32(r.AccY))
	binary.BigEndian.PutUint32(b[20:], uint32(r.AccZ))
	return 24
}

func unmarshalRotationVelAcc(b []byte) (RotationVelAcc, error) {
	if len(b) < 24 {
		return RotationVelAcc{}, newDecodeError(MalformedLayer, "RotationVelAcc module needs 24 bytes, got %d", len(b))
	}
	var r RotationVelAcc
	r.VelX = int32(binary.BigEndian.Uint32(b[0:]))
	r.VelY = int32(binary.BigEndian.Uint32(b[4:]))
	r.VelZ = int32(binary.BigEndian.Uint32(b[8:]))
	r.AccX = int32(binary.BigEndian.Uint32(b[12:]))
	r.AccY = int32(binary.BigEndian.Uint32(b[16:]))
	r.AccZ = int32(binary.BigEndian.Uint32(b[20:]))
	return r, nil
}

// Scale is the per-axis object scale factor module payload (12 octets).
// Not present in the retrieved original source; see SPEC_FULL.md Open
// Question resolution #4 for the assigned module number.
type Scale struct {
	X, Y, Z int32
}

func (s Scale) size() int { return 12 }

func (s Scale) marshal(b []byte) int {
	binary.BigEndian.PutUint32(b[0:], uint32(s.X))
	binary.BigEndian.PutUint32(b[4:], uint32(s.Y))
	binary.BigEndian.PutUint32(b[8:], uint32(s.Z))
	return 12
}

func unmarshalScale(b []byte) (Scale, error) {
	if len(b) < 12 {
		return Scale{}, newDecodeError(MalformedLayer, "Scale module needs 12 bytes, got %d", len(b))
	}
	var s Scale
	s.X = int32(binary.BigEndian.Uint32(b[0:]))
	s.Y = int32(binary.BigEndian.Uint32(b[4:]))
	s.Z = int32(binary.BigEndian.Uint32(b[8:]))
	return s, nil
}

// ReferenceFrame names the next hop in the reference-frame chain (7 octets).
type ReferenceFrame struct {
	Address Address
}

func (r ReferenceFrame) size() int { return 7 }

func (r ReferenceFrame) marshal(b []byte) int {
	b[0] = byte(r.Address.System)
	binary.BigEndian.PutUint16(b[1:], uint16(r.Address.Group))
	binary.BigEndian.PutUint32(b[3:], uint32(r.Address.Point))
	return 7
}

func unmarshalReferenceFrame(b []byte) (ReferenceFrame, error) {
	if len(b) < 7 {
		return ReferenceFrame{}, newDecodeError(MalformedLayer, "ReferenceFrame module needs 7 bytes, got %d", len(b))
	}
	return ReferenceFrame{Address: Address{
		System: System(b[0]),
		Group:  Group(binary.BigEndian.Uint16(b[1:])),
		Point:  Point(binary.BigEndian.Uint32(b[3:])),
	}}, nil
}
