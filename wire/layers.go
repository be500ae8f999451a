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

import (
	"encoding/binary"
)

// MaxMessageSize is the largest datagram this codec will ever produce; the
// engines are responsible for splitting additional folio pages once a
// message would exceed it (Section 4.1 "Length rules").
const MaxMessageSize = 1472

// Size bounds, Section 6 "Size bounds".
const (
	TransformMessageMin = 157
	TransformMessageMax = 1472
	ModuleAdMin          = 113
	ModuleAdMax          = 1469
	NameAdMin            = 110
	NameAdMax            = 1436
	SystemAdMin          = 110
	SystemAdMax          = 310
)

const (
	rootHeaderFixedSize = 2 + 2 + 12 // preamble + postamble + ident, before flags/length
	protocolVersion      uint16 = 0x0001
)

// wrapLayer builds flags/length(4) + vector(4) + body, where the length
// field counts every byte from immediately after itself to the end of
// this layer (i.e. vector + body), per "Length measures the PDU's
// contents starting at the byte after the length field".
func wrapLayer(vector uint32, body []byte) []byte {
	out := make([]byte, 8+len(body))
	putFlagsLength(out[0:4], uint32(4+len(body)))
	binary.BigEndian.PutUint32(out[4:8], vector)
	copy(out[8:], body)
	return out
}

// unwrapLayer is the inverse of wrapLayer; it checks the vector against
// wantVector and returns the body slice (bytes belonging to this layer,
// excluding anything trailing in b that belongs to an outer layer's own
// bookkeeping).
func unwrapLayer(b []byte, wantVector uint32, name string) (body []byte, err error) {
	if len(b) < 8 {
		return nil, newDecodeError(MalformedLayer, "%s: need 8 bytes for header, got %d", name, len(b))
	}
	flags, length := getFlagsLength(b[0:4])
	if flags != pduFlags {
		return nil, newDecodeError(MalformedLayer, "%s: bad flags 0x%x", name, flags)
	}
	vector := binary.BigEndian.Uint32(b[4:8])
	if vector != wantVector {
		return nil, newDecodeError(MalformedLayer, "%s: expected vector 0x%08x, got 0x%08x", name, wantVector, vector)
	}
	bodyLen := int(length) - 4
	if bodyLen < 0 || 8+bodyLen > len(b) {
		return nil, newDecodeError(MalformedLayer, "%s: length %d inconsistent with %d available bytes", name, length, len(b))
	}
	return b[8 : 8+bodyLen], nil
}

// ModulePDU carries one module's raw payload. Standard (manufacturer
// ESTAManufacturerID) payloads are encoded/decoded by the Position/
// Rotation/... helpers in modules.go; anything else (vendor modules,
// Orientation/OrientationVelAcc) is kept opaque, per UnknownModule policy.
type ModulePDU struct {
	ManufacturerID uint16
	ModuleNumber   uint16
	Data           []byte
}

func marshalModulePDU(m ModulePDU) []byte {
	out := make([]byte, 8+len(m.Data))
	putFlagsLength(out[0:4], uint32(4+len(m.Data)))
	binary.BigEndian.PutUint16(out[4:6], m.ManufacturerID)
	binary.BigEndian.PutUint16(out[6:8], m.ModuleNumber)
	copy(out[8:], m.Data)
	return out
}

func unmarshalModulePDU(b []byte) (ModulePDU, int, error) {
	if len(b) < 8 {
		return ModulePDU{}, 0, newDecodeError(MalformedLayer, "Module PDU: need 8 bytes, got %d", len(b))
	}
	flags, length := getFlagsLength(b[0:4])
	if flags != pduFlags {
		return ModulePDU{}, 0, newDecodeError(MalformedLayer, "Module PDU: bad flags 0x%x", flags)
	}
	dataLen := int(length) - 4
	if dataLen < 0 || 8+dataLen > len(b) {
		return ModulePDU{}, 0, newDecodeError(MalformedLayer, "Module PDU: length %d inconsistent with %d available bytes", length, len(b))
	}
	m := ModulePDU{
		ManufacturerID: binary.BigEndian.Uint16(b[4:6]),
		ModuleNumber:   binary.BigEndian.Uint16(b[6:8]),
		Data:           append([]byte(nil), b[8:8+dataLen]...),
	}
	return m, 8 + dataLen, nil
}

func marshalModules(mods []ModulePDU) []byte {
	var out []byte
	for _, m := range mods {
		out = append(out, marshalModulePDU(m)...)
	}
	return out
}

func unmarshalModules(b []byte) ([]ModulePDU, error) {
	var mods []ModulePDU
	pos := 0
	for pos < len(b) {
		m, n, err := unmarshalModulePDU(b[pos:])
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
		pos += n
	}
	return mods, nil
}

// PointPDU is one addressable point's worth of modules within a Transform
// message; System is carried at the Transform Layer, not repeated here.
type PointPDU struct {
	Priority  Priority
	Group     Group
	Point     Point
	Timestamp uint64
	Options   uint8
	Modules   []ModulePDU
}

func marshalPointPDU(p PointPDU) []byte {
	body := make([]byte, 1+2+4+8+1+4)
	body[0] = byte(p.Priority)
	binary.BigEndian.PutUint16(body[1:], uint16(p.Group))
	binary.BigEndian.PutUint32(body[3:], uint32(p.Point))
	binary.BigEndian.PutUint64(body[7:], p.Timestamp)
	body[15] = p.Options
	// body[16:20] reserved, already zero
	body = append(body, marshalModules(p.Modules)...)
	return wrapLayer(VectorOTPModule, body)
}

func unmarshalPointPDU(b []byte) (PointPDU, int, error) {
	body, err := unwrapLayer(b, VectorOTPModule, "Point PDU")
	if err != nil {
		return PointPDU{}, 0, err
	}
	if len(body) < 20 {
		return PointPDU{}, 0, newDecodeError(MalformedLayer, "Point PDU: need 20 body bytes, got %d", len(body))
	}
	p := PointPDU{
		Priority:  Priority(body[0]),
		Group:     Group(binary.BigEndian.Uint16(body[1:])),
		Point:     Point(binary.BigEndian.Uint32(body[3:])),
		Timestamp: binary.BigEndian.Uint64(body[7:]),
		Options:   body[15],
	}
	if !p.Group.Valid() {
		return PointPDU{}, 0, newDecodeError(OutOfRange, "Point PDU: group %d out of range", p.Group)
	}
	if !p.Point.Valid() {
		return PointPDU{}, 0, newDecodeError(OutOfRange, "Point PDU: point %d out of range", p.Point)
	}
	if !p.Priority.Valid() {
		return PointPDU{}, 0, newDecodeError(OutOfRange, "Point PDU: priority %d out of range", p.Priority)
	}
	mods, err := unmarshalModules(body[20:])
	if err != nil {
		return PointPDU{}, 0, err
	}
	p.Modules = mods
	return p, 8 + len(body), nil
}

// FullPointSetFlag is bit 7 of the Transform Layer options byte.
const FullPointSetFlag uint8 = 1 << 7

// TransformMessage is a complete, reassembled (or single-page) Transform
// PDU tree: Root -> OTP -> Transform -> Point[] -> Module[].
type TransformMessage struct {
	CID           CID
	Sequence      uint16
	Folio         uint32
	Page          uint16
	LastPage      uint16
	ComponentName Name
	System        System
	FrameTime     Timestamp
	FullPointSet  bool
	Points        []PointPDU
}

func (m *TransformMessage) marshalTransformBody() []byte {
	body := make([]byte, 1+16+1+4)
	body[0] = byte(m.System)
	putUint64Pair(body[1:], m.FrameTime)
	var opts uint8
	if m.FullPointSet {
		opts |= FullPointSetFlag
	}
	body[17] = opts
	for _, p := range m.Points {
		body = append(body, marshalPointPDU(p)...)
	}
	return wrapLayer(VectorOTPPoint, body)
}

func (m *TransformMessage) marshalOTPBody() []byte {
	body := make([]byte, 2+2+4+2+2+1+4+NameLength)
	binary.BigEndian.PutUint16(body[0:], protocolVersion)
	binary.BigEndian.PutUint16(body[2:], m.Sequence)
	binary.BigEndian.PutUint32(body[4:], m.Folio)
	binary.BigEndian.PutUint16(body[8:], m.Page)
	binary.BigEndian.PutUint16(body[10:], m.LastPage)
	// body[12] options, body[13:17] reserved, all zero at OTP layer
	writeName(body[17:], m.ComponentName)
	body = append(body, m.marshalTransformBody()...)
	return wrapLayer(VectorOTPTransformMessage, body)
}

// MarshalBinary encodes the full Root/OTP/Transform/Point/Module tree.
// Returns a MessageTooLarge DecodeError if the result exceeds MaxMessageSize.
func (m *TransformMessage) MarshalBinary() ([]byte, error) {
	otp := m.marshalOTPBody()
	root := make([]byte, rootHeaderFixedSize)
	binary.BigEndian.PutUint16(root[0:], preambleSize)
	binary.BigEndian.PutUint16(root[2:], postambleSize)
	copy(root[4:], ACNPacketIdent[:])
	body := append(append([]byte(nil), m.CID[:]...), otp...)
	root = append(root, wrapLayer(VectorRootOTP, body)...)
	if len(root) > MaxMessageSize {
		return nil, &DecodeError{Kind: MessageTooLarge, Msg: "Transform message exceeds maximum datagram size"}
	}
	return root, nil
}

// UnmarshalTransformMessage decodes a single Transform datagram (one folio
// page). Callers reassembling multi-page folios call this once per page
// via the folio package, then merge the resulting Points slices.
func UnmarshalTransformMessage(b []byte) (*TransformMessage, error) {
	if len(b) < rootHeaderFixedSize+8 {
		return nil, newDecodeError(MalformedLayer, "datagram too short for Root Layer")
	}
	if binary.BigEndian.Uint16(b[0:]) != preambleSize {
		return nil, newDecodeError(MalformedLayer, "bad Root Layer preamble size")
	}
	if binary.BigEndian.Uint16(b[2:]) != postambleSize {
		return nil, newDecodeError(MalformedLayer, "bad Root Layer postamble size")
	}
	var ident [12]byte
	copy(ident[:], b[4:16])
	if ident != ACNPacketIdent {
		return nil, newDecodeError(MalformedLayer, "bad Root Layer packet identifier")
	}
	rootBody, err := unwrapLayer(b[rootHeaderFixedSize:], VectorRootOTP, "Root Layer")
	if err != nil {
		return nil, err
	}
	if len(rootBody) < 16 {
		return nil, newDecodeError(MalformedLayer, "Root Layer body too short for CID")
	}
	m := &TransformMessage{}
	copy(m.CID[:], rootBody[0:16])
	if m.CID == (CID{}) {
		return nil, newDecodeError(MalformedLayer, "CID is all-zero")
	}
	otpBody, err := unwrapLayer(rootBody[16:], VectorOTPTransformMessage, "OTP Layer")
	if err != nil {
		return nil, err
	}
	if len(otpBody) < 2+2+4+2+2+1+4+NameLength {
		return nil, newDecodeError(MalformedLayer, "OTP Layer body too short")
	}
	if binary.BigEndian.Uint16(otpBody[0:]) != protocolVersion {
		return nil, newDecodeError(MalformedLayer, "unsupported OTP protocol version")
	}
	m.Sequence = binary.BigEndian.Uint16(otpBody[2:])
	m.Folio = binary.BigEndian.Uint32(otpBody[4:])
	m.Page = binary.BigEndian.Uint16(otpBody[8:])
	m.LastPage = binary.BigEndian.Uint16(otpBody[10:])
	m.ComponentName = readName(otpBody[17 : 17+NameLength])

	transformBody, err := unwrapLayer(otpBody[17+NameLength:], VectorOTPPoint, "Transform Layer")
	if err != nil {
		return nil, err
	}
	if len(transformBody) < 1+16+1+4 {
		return nil, newDecodeError(MalformedLayer, "Transform Layer body too short")
	}
	m.System = System(transformBody[0])
	if !m.System.Valid() {
		return nil, newDecodeError(OutOfRange, "system %d out of range", m.System)
	}
	m.FrameTime = getUint64Pair(transformBody[1:])
	m.FullPointSet = transformBody[17]&FullPointSetFlag != 0

	pos := 1 + 16 + 1 + 4
	for pos < len(transformBody) {
		p, n, err := unmarshalPointPDU(transformBody[pos:])
		if err != nil {
			return nil, err
		}
		m.Points = append(m.Points, p)
		pos += n
	}
	return m, nil
}
