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

// MarshalPosition encodes p as a standard Position module payload.
func MarshalPosition(p Position) []byte {
	b := make([]byte, p.size())
	p.marshal(b)
	return b
}

// MarshalPositionVelAcc encodes p as a standard PositionVelAcc module payload.
func MarshalPositionVelAcc(p PositionVelAcc) []byte {
	b := make([]byte, p.size())
	p.marshal(b)
	return b
}

// MarshalRotation encodes r as a standard Rotation module payload.
func MarshalRotation(r Rotation) []byte {
	b := make([]byte, r.size())
	r.marshal(b)
	return b
}

// MarshalRotationVelAcc encodes r as a standard RotationVelAcc module payload.
func MarshalRotationVelAcc(r RotationVelAcc) []byte {
	b := make([]byte, r.size())
	r.marshal(b)
	return b
}

// MarshalScale encodes s as a standard Scale module payload.
func MarshalScale(s Scale) []byte {
	b := make([]byte, s.size())
	s.marshal(b)
	return b
}

// MarshalReferenceFrame encodes r as a standard ReferenceFrame module payload.
func MarshalReferenceFrame(r ReferenceFrame) []byte {
	b := make([]byte, r.size())
	r.marshal(b)
	return b
}

// DecodeStandardModule decodes the payload of a standard (ESTAManufacturerID)
// module by its module number, returning one of Position, PositionVelAcc,
// Rotation, RotationVelAcc, Scale or ReferenceFrame as an interface{}. A
// moduleNumber outside that set yields an UnknownModule DecodeError -- the
// caller (points package) keeps the raw ModulePDU around unresolved rather
// than treating it as fatal, per the decode contract's UnknownModule policy.
func DecodeStandardModule(moduleNumber uint16, data []byte) (interface{}, error) {
	switch moduleNumber {
	case ModulePosition:
		return unmarshalPosition(data)
	case ModulePositionVelAcc:
		return unmarshalPositionVelAcc(data)
	case ModuleRotation:
		return unmarshalRotation(data)
	case ModuleRotationVelAcc:
		return unmarshalRotationVelAcc(data)
	case ModuleScale:
		return unmarshalScale(data)
	case ModuleReferenceFrame:
		return unmarshalReferenceFrame(data)
	default:
		return nil, newDecodeError(UnknownModule, "module number 0x%04x is not a standard module", moduleNumber)
	}
}
