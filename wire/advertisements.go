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

// ResponseFlag is bit 7 of a Name/System Advertisement's options byte,
// distinguishing a request ("who has these?") from a response.
const ResponseFlag uint8 = 1 << 7

// ModuleIdent names a module by (manufacturer, module number), as carried
// in a Module Advertisement's list.
type ModuleIdent struct {
	ManufacturerID uint16
	ModuleNumber   uint16
}

// AddressPointDescription pairs an address with its human-readable name,
// as carried in a Name Advertisement's list.
type AddressPointDescription struct {
	Address Address
	Name    Name
}

// AdvertisementMessage is a complete Root -> OTP -> Advertisement PDU tree.
// Kind selects which one of Modules, Points or Systems is carried.
type AdvertisementMessage struct {
	CID           CID
	Sequence      uint16
	Folio         uint32
	Page          uint16
	LastPage      uint16
	ComponentName Name

	Kind AdvertisementKind

	Modules []ModuleIdent             // Kind == AdvertisementModule
	Points  []AddressPointDescription // Kind == AdvertisementName
	Systems []System                  // Kind == AdvertisementSystem

	// Response is meaningless for a Module Advertisement (which has no
	// request/response split) and is otherwise the options-byte flag.
	Response bool
}

// AdvertisementKind selects which inner advertisement layer a message carries.
type AdvertisementKind int

// Advertisement kinds.
const (
	AdvertisementModule AdvertisementKind = iota
	AdvertisementName
	AdvertisementSystem
)

func marshalModuleList(mods []ModuleIdent) []byte {
	out := make([]byte, 4*len(mods))
	for i, m := range mods {
		binary.BigEndian.PutUint16(out[4*i:], m.ManufacturerID)
		binary.BigEndian.PutUint16(out[4*i+2:], m.ModuleNumber)
	}
	return out
}

func unmarshalModuleList(b []byte) ([]ModuleIdent, error) {
	if len(b)%4 != 0 {
		return nil, newDecodeError(MalformedLayer, "Module Advertisement list length %d not a multiple of 4", len(b))
	}
	mods := make([]ModuleIdent, len(b)/4)
	for i := range mods {
		mods[i] = ModuleIdent{
			ManufacturerID: binary.BigEndian.Uint16(b[4*i:]),
			ModuleNumber:   binary.BigEndian.Uint16(b[4*i+2:]),
		}
	}
	return mods, nil
}

const addressPointDescriptionSize = 1 + 2 + 4 + NameLength

func marshalNameList(points []AddressPointDescription) []byte {
	out := make([]byte, addressPointDescriptionSize*len(points))
	for i, p := range points {
		o := out[addressPointDescriptionSize*i:]
		o[0] = byte(p.Address.System)
		binary.BigEndian.PutUint16(o[1:], uint16(p.Address.Group))
		binary.BigEndian.PutUint32(o[3:], uint32(p.Address.Point))
		writeName(o[7:], p.Name)
	}
	return out
}

func unmarshalNameList(b []byte) ([]AddressPointDescription, error) {
	if len(b)%addressPointDescriptionSize != 0 {
		return nil, newDecodeError(MalformedLayer, "Name Advertisement list length %d not a multiple of %d", len(b), addressPointDescriptionSize)
	}
	points := make([]AddressPointDescription, len(b)/addressPointDescriptionSize)
	for i := range points {
		o := b[addressPointDescriptionSize*i:]
		points[i] = AddressPointDescription{
			Address: Address{
				System: System(o[0]),
				Group:  Group(binary.BigEndian.Uint16(o[1:])),
				Point:  Point(binary.BigEndian.Uint32(o[3:])),
			},
			Name: readName(o[7 : 7+NameLength]),
		}
	}
	return points, nil
}

func marshalSystemList(systems []System) []byte {
	out := make([]byte, len(systems))
	for i, s := range systems {
		out[i] = byte(s)
	}
	return out
}

func unmarshalSystemList(b []byte) []System {
	systems := make([]System, len(b))
	for i, v := range b {
		systems[i] = System(v)
	}
	return systems
}

func (m *AdvertisementMessage) marshalInnerBody() (vector uint32, body []byte) {
	switch m.Kind {
	case AdvertisementModule:
		inner := make([]byte, 4)
		inner = append(inner, marshalModuleList(m.Modules)...)
		return VectorOTPAdvertisementModule, wrapLayer(VectorOTPAdvertisementModuleList, inner)
	case AdvertisementName:
		inner := make([]byte, 1+4)
		if m.Response {
			inner[0] = ResponseFlag
		}
		inner = append(inner, marshalNameList(m.Points)...)
		return VectorOTPAdvertisementName, wrapLayer(VectorOTPAdvertisementNameList, inner)
	default:
		inner := make([]byte, 1+4)
		if m.Response {
			inner[0] = ResponseFlag
		}
		inner = append(inner, marshalSystemList(m.Systems)...)
		return VectorOTPAdvertisementSystem, wrapLayer(VectorOTPAdvertisementSystemList, inner)
	}
}

func (m *AdvertisementMessage) marshalOTPBody() []byte {
	innerVector, innerBody := m.marshalInnerBody()
	adBody := make([]byte, 4)
	adBody = append(adBody, innerBody...)

	body := make([]byte, 2+2+4+2+2+1+4+NameLength)
	binary.BigEndian.PutUint16(body[0:], protocolVersion)
	binary.BigEndian.PutUint16(body[2:], m.Sequence)
	binary.BigEndian.PutUint32(body[4:], m.Folio)
	binary.BigEndian.PutUint16(body[8:], m.Page)
	binary.BigEndian.PutUint16(body[10:], m.LastPage)
	writeName(body[17:], m.ComponentName)
	body = append(body, wrapLayer(innerVector, adBody)...)
	return wrapLayer(VectorOTPAdvertisementMessage, body)
}

// MarshalBinary encodes the full Root/OTP/Advertisement tree.
func (m *AdvertisementMessage) MarshalBinary() ([]byte, error) {
	otp := m.marshalOTPBody()
	root := make([]byte, rootHeaderFixedSize)
	binary.BigEndian.PutUint16(root[0:], preambleSize)
	binary.BigEndian.PutUint16(root[2:], postambleSize)
	copy(root[4:], ACNPacketIdent[:])
	body := append(append([]byte(nil), m.CID[:]...), otp...)
	root = append(root, wrapLayer(VectorRootOTP, body)...)
	if len(root) > MaxMessageSize {
		return nil, &DecodeError{Kind: MessageTooLarge, Msg: "Advertisement message exceeds maximum datagram size"}
	}
	return root, nil
}

// UnmarshalAdvertisementMessage decodes a single Advertisement datagram.
func UnmarshalAdvertisementMessage(b []byte) (*AdvertisementMessage, error) {
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
	m := &AdvertisementMessage{}
	copy(m.CID[:], rootBody[0:16])
	if m.CID == (CID{}) {
		return nil, newDecodeError(MalformedLayer, "CID is all-zero")
	}
	otpBody, err := unwrapLayer(rootBody[16:], VectorOTPAdvertisementMessage, "OTP Layer")
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

	adRemainder := otpBody[17+NameLength:]
	if len(adRemainder) < 8 {
		return nil, newDecodeError(MalformedLayer, "Advertisement Layer too short")
	}
	innerLayerVector := binary.BigEndian.Uint32(adRemainder[4:8])
	var adBody []byte
	var listWrapper []byte
	switch innerLayerVector {
	case VectorOTPAdvertisementModule:
		m.Kind = AdvertisementModule
		adBody, err = unwrapLayer(adRemainder, VectorOTPAdvertisementModule, "Module Advertisement Layer")
		if err != nil {
			return nil, err
		}
		if len(adBody) < 4 {
			return nil, newDecodeError(MalformedLayer, "Module Advertisement Layer body too short")
		}
		listWrapper, err = unwrapLayer(adBody[4:], VectorOTPAdvertisementModuleList, "Module List Layer")
		if err != nil {
			return nil, err
		}
		if len(listWrapper) < 4 {
			return nil, newDecodeError(MalformedLayer, "Module List Layer body too short")
		}
		mods, err := unmarshalModuleList(listWrapper[4:])
		if err != nil {
			return nil, err
		}
		m.Modules = mods
	case VectorOTPAdvertisementName:
		m.Kind = AdvertisementName
		adBody, err = unwrapLayer(adRemainder, VectorOTPAdvertisementName, "Name Advertisement Layer")
		if err != nil {
			return nil, err
		}
		if len(adBody) < 4 {
			return nil, newDecodeError(MalformedLayer, "Name Advertisement Layer body too short")
		}
		listWrapper, err = unwrapLayer(adBody[4:], VectorOTPAdvertisementNameList, "Name List Layer")
		if err != nil {
			return nil, err
		}
		if len(listWrapper) < 1+4 {
			return nil, newDecodeError(MalformedLayer, "Name List Layer body too short")
		}
		m.Response = listWrapper[0]&ResponseFlag != 0
		points, err := unmarshalNameList(listWrapper[5:])
		if err != nil {
			return nil, err
		}
		m.Points = points
	case VectorOTPAdvertisementSystem:
		m.Kind = AdvertisementSystem
		adBody, err = unwrapLayer(adRemainder, VectorOTPAdvertisementSystem, "System Advertisement Layer")
		if err != nil {
			return nil, err
		}
		if len(adBody) < 4 {
			return nil, newDecodeError(MalformedLayer, "System Advertisement Layer body too short")
		}
		listWrapper, err = unwrapLayer(adBody[4:], VectorOTPAdvertisementSystemList, "System List Layer")
		if err != nil {
			return nil, err
		}
		if len(listWrapper) < 1+4 {
			return nil, newDecodeError(MalformedLayer, "System List Layer body too short")
		}
		m.Response = listWrapper[0]&ResponseFlag != 0
		m.Systems = unmarshalSystemList(listWrapper[5:])
	default:
		return nil, newDecodeError(MalformedLayer, "unknown Advertisement Layer vector 0x%08x", innerLayerVector)
	}
	return m, nil
}
