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

// Package wire implements the ESTA E1.59 (OTP) wire codec: the nested PDU
// layer stack, big-endian primitive encodings, and the standard module
// payloads.
package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NameLength is the fixed width, in octets, of any textual name field.
const NameLength = 32

// ESTAManufacturerID marks a module as one of the standard (non-vendor) modules.
const ESTAManufacturerID uint16 = 0x0000

// Root/OTP/Transform/Point/Advertisement vectors, Table A-1.
const (
	VectorRootOTP                  uint32 = 0x00000001
	VectorOTPTransformMessage       uint32 = 0xFF000001
	VectorOTPAdvertisementMessage   uint32 = 0xFF000002
	VectorOTPPoint                  uint32 = 0x00000001
	VectorOTPModule                 uint32 = 0x00000001
	VectorOTPAdvertisementModule    uint32 = 0x00000001
	VectorOTPAdvertisementName      uint32 = 0x00000002
	VectorOTPAdvertisementSystem    uint32 = 0x00000003
	VectorOTPAdvertisementModuleList uint32 = 0x00000001
	VectorOTPAdvertisementNameList   uint32 = 0x00000001
	VectorOTPAdvertisementSystemList uint32 = 0x00000001
)

// Standard module numbers, manufacturer ESTAManufacturerID (Section 16).
const (
	ModulePosition               uint16 = 0x0001
	ModulePositionVelAcc         uint16 = 0x0002
	ModuleRotation               uint16 = 0x0003
	ModuleRotationVelAcc         uint16 = 0x0004
	ModuleOrientation            uint16 = 0x0005
	ModuleOrientationVelAcc      uint16 = 0x0006
	ModuleScale                  uint16 = 0x0007
	ModuleReferenceFrame         uint16 = 0x0008
)

// ModuleIdentToString names the standard module numbers for logging.
var ModuleIdentToString = map[uint16]string{
	ModulePosition:          "POSITION",
	ModulePositionVelAcc:    "POSITION_VELOCITY_ACCELERATION",
	ModuleRotation:          "ROTATION",
	ModuleRotationVelAcc:    "ROTATION_VELOCITY_ACCELERATION",
	ModuleOrientation:       "ORIENTATION",
	ModuleOrientationVelAcc: "ORIENTATION_VELOCITY_ACCELERATION",
	ModuleScale:             "SCALE",
	ModuleReferenceFrame:    "REFERENCE_FRAME",
}

// ACNPacketIdent is the fixed Root Layer packet identifier.
var ACNPacketIdent = [12]byte{'A', 'S', 'C', '-', 'E', '1', '.', '1', '7', 0, 0, 0}

const (
	preambleSize  uint16 = 0x0010
	postambleSize uint16 = 0x0000
	// flags (VECTOR|HEADER|DATA) packed into the top 4 bits of the first length octet.
	pduFlags uint8 = 0x7
)

// Ranges, Table 6-2.
const (
	SystemMin uint8 = 1
	SystemMax uint8 = 200

	GroupMin uint16 = 1
	GroupMax uint16 = 60000

	PointMin uint32 = 1
	PointMax uint32 = 4000000000

	PriorityMin uint8 = 0
	PriorityMax uint8 = 200
	// DefaultPriority is the priority assumed absent an explicit value.
	DefaultPriority uint8 = 100

	// RotationModulus is the micro-degree modulus rotation values are taken under.
	RotationModulus uint32 = 360000000
)

// CID is a 128-bit component identifier, RFC 4122 byte order on the wire.
type CID = uuid.UUID

// ParseCID parses a textual UUID into a CID.
func ParseCID(s string) (CID, error) {
	return uuid.Parse(s)
}

// NewCID generates a new random (v4) CID for a freshly started endpoint.
func NewCID() CID {
	return uuid.New()
}

// Name is a component or point name: UTF-8 text, zero-padded/truncated to
// exactly NameLength octets on the wire; trailing nulls are ignored on
// comparison.
type Name [NameLength]byte

// NewName builds a Name from a Go string, truncating to NameLength bytes
// and zero-padding the remainder. Truncation is by byte, so a multi-byte
// UTF-8 sequence may be cut at the field boundary.
func NewName(s string) Name {
	var n Name
	b := []byte(s)
	if len(b) > NameLength {
		b = b[:NameLength]
	}
	copy(n[:], b)
	return n
}

// String renders the Name truncated at the first NUL, per the display rule.
func (n Name) String() string {
	i := 0
	for ; i < len(n); i++ {
		if n[i] == 0 {
			break
		}
	}
	return string(n[:i])
}

// Equal compares two names ignoring trailing NULs.
func (n Name) Equal(o Name) bool {
	return n.String() == o.String()
}

// System is the 1-byte system number, valid range [SystemMin, SystemMax].
type System uint8

// Valid reports whether s falls within the valid system range.
func (s System) Valid() bool {
	return s >= System(SystemMin) && s <= System(SystemMax)
}

// Group is the 2-byte group number, valid range [GroupMin, GroupMax].
type Group uint16

// Valid reports whether g falls within the valid group range.
func (g Group) Valid() bool {
	return g >= Group(GroupMin) && g <= Group(GroupMax)
}

// Point is the 4-byte point number, valid range [PointMin, PointMax].
type Point uint32

// Valid reports whether p falls within the valid point range.
func (p Point) Valid() bool {
	return p >= Point(PointMin) && p <= Point(PointMax)
}

// Priority is the 1-byte producer priority, valid range [PriorityMin, PriorityMax].
type Priority uint8

// Valid reports whether pr falls within the valid priority range.
func (pr Priority) Valid() bool {
	return pr >= Priority(PriorityMin) && pr <= Priority(PriorityMax)
}

// Address identifies a point: (system, group, point). Ordering is
// lexicographic on (System, Group, Point) -- this specification pins that
// order explicitly rather than reuse the OR-based comparison of the
// original implementation (see DESIGN.md).
type Address struct {
	System System
	Group  Group
	Point  Point
}

// Valid reports whether every field of the address is in its valid range.
func (a Address) Valid() bool {
	return a.System.Valid() && a.Group.Valid() && a.Point.Valid()
}

// Less implements the pinned lexicographic total order over addresses.
func (a Address) Less(o Address) bool {
	if a.System != o.System {
		return a.System < o.System
	}
	if a.Group != o.Group {
		return a.Group < o.Group
	}
	return a.Point < o.Point
}

// String formats the address as system/group/point, matching how OTP
// implementations usually log addresses.
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.System, a.Group, a.Point)
}

// Timestamp is microseconds since the component epoch. The standard
// represents this on the wire as two 64-bit big-endian halves (high:low);
// since Go has no native 128-bit integer we mirror the teacher's approach
// for oversized fields by keeping both halves explicit and comparing/
// ordering lexicographically on (High, Low).
type Timestamp struct {
	High uint64
	Low  uint64
}

// NewTimestamp builds a Timestamp from a plain microsecond count (High=0).
func NewTimestamp(microseconds uint64) Timestamp {
	return Timestamp{Low: microseconds}
}

// Less reports whether t sorts before o under (High, Low) lexicographic order.
func (t Timestamp) Less(o Timestamp) bool {
	if t.High != o.High {
		return t.High < o.High
	}
	return t.Low < o.Low
}

// Equal reports whether t and o represent the same instant.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.High == o.High && t.Low == o.Low
}

func (t Timestamp) String() string {
	if t.High == 0 {
		return fmt.Sprintf("%d", t.Low)
	}
	return fmt.Sprintf("%d:%d", t.High, t.Low)
}

// Vector is the 4-byte PDU discriminator carried by most layers.
type Vector uint32

func writeName(b []byte, n Name) {
	copy(b, n[:])
}

func readName(b []byte) Name {
	var n Name
	copy(n[:], b[:NameLength])
	return n
}

func putUint64Pair(b []byte, t Timestamp) {
	binary.BigEndian.PutUint64(b, t.High)
	binary.BigEndian.PutUint64(b[8:], t.Low)
}

func getUint64Pair(b []byte) Timestamp {
	return Timestamp{
		High: binary.BigEndian.Uint64(b),
		Low:  binary.BigEndian.Uint64(b[8:]),
	}
}

// putFlagsLength packs flags (top 4 bits, per FLAGS|LENGTH shared octet
// scheme used across the ACN PDU family) and a 20-bit length into the
// 4-byte flags/length field shared by every layer below the Root Preamble.
func putFlagsLength(b []byte, length uint32) {
	v := (uint32(pduFlags) << 28) | (length & 0x000FFFFF)
	binary.BigEndian.PutUint32(b, v)
}

func getFlagsLength(b []byte) (flags uint8, length uint32) {
	v := binary.BigEndian.Uint32(b)
	flags = uint8(v >> 28)
	length = v & 0x000FFFFF
	return flags, length
}

// moduleDescription renders a human-readable (manufacturer, module) label
// for logging unknown or vendor modules; standard ESTA modules resolve via
// ModuleIdentToString, anything else is rendered numerically.
func moduleDescription(manufacturerID, moduleNumber uint16) string {
	if manufacturerID == ESTAManufacturerID {
		if name, ok := ModuleIdentToString[moduleNumber]; ok {
			return fmt.Sprintf("ESTA/%s", name)
		}
	}
	return fmt.Sprintf("0x%04x/0x%04x", manufacturerID, moduleNumber)
}

// splitPadded renders a Name with only its trailing zero padding removed;
// unlike String, bytes after an embedded NUL are kept.
func splitPadded(n Name) string {
	s := n.String()
	if len(s) == len(n) {
		return s
	}
	return strings.TrimRight(string(n[:]), "\x00")
}
