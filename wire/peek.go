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

// PeekOTPVector reads the OTP Layer's vector field (Transform vs
// Advertisement) without decoding the rest of the datagram, so a
// receiver can pick which Unmarshal* function to call. Grounded on the
// teacher's `ptp.ProbeMsgType`, which does the analogous cheap peek at
// a PTP message's type byte before a full `ptp.FromBytes` decode.
func PeekOTPVector(b []byte) (uint32, error) {
	if len(b) < rootHeaderFixedSize+8+16+8 {
		return 0, newDecodeError(MalformedLayer, "datagram too short to peek OTP Layer vector")
	}
	if binary.BigEndian.Uint16(b[0:]) != preambleSize {
		return 0, newDecodeError(MalformedLayer, "bad Root Layer preamble size")
	}
	var ident [12]byte
	copy(ident[:], b[4:16])
	if ident != ACNPacketIdent {
		return 0, newDecodeError(MalformedLayer, "bad Root Layer packet identifier")
	}
	// Root Layer header (8) + CID (16) lands on the OTP Layer header;
	// its vector is the second 4 bytes of that header.
	otpHeader := b[rootHeaderFixedSize+8+16:]
	return binary.BigEndian.Uint32(otpHeader[4:8]), nil
}
