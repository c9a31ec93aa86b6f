/*
Copyright 2015 Gravitational, Inc.

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

package u2f

import "encoding/binary"

// RegisterSignedMessageLen is the exact length of the register signed
// message: 1 (reserved) + 32 (app) + 32 (challenge) + 128 (key handle) + 65
// (public key).
const RegisterSignedMessageLen = 1 + 32 + 32 + MaxKeyHandleSize + 65

// AuthenticateSignedMessageLen is the exact length of the authenticate
// signed message: 32 (app) + 1 (user presence) + 4 (counter) + 32
// (challenge).
const AuthenticateSignedMessageLen = 32 + 1 + 4 + 32

// EncodeRegisterSignedMessage builds the byte-exact register signed message
// per the FIDO U2F raw message format. The layout is normative; any
// deviation breaks every relying party.
func EncodeRegisterSignedMessage(app ApplicationParameter, challenge ChallengeParameter, handle KeyHandle, userPublicKey []byte) []byte {
	if len(userPublicKey) != 65 {
		panic("u2f: user public key must be 65 bytes (uncompressed SEC1)")
	}

	buf := make([]byte, 0, RegisterSignedMessageLen)
	buf = append(buf, 0x00)
	buf = append(buf, app[:]...)
	buf = append(buf, challenge[:]...)
	buf = append(buf, handle[:]...)
	buf = append(buf, userPublicKey...)
	return buf
}

// UserPresenceByte returns the single-byte user-presence field: bit 0 is set
// iff the user was present, bits 1-7 are always zero.
func UserPresenceByte(present bool) byte {
	if present {
		return 0x01
	}
	return 0x00
}

// EncodeAuthenticateSignedMessage builds the byte-exact authenticate signed
// message per the FIDO U2F raw message format.
func EncodeAuthenticateSignedMessage(app ApplicationParameter, userPresence bool, counter Counter, challenge ChallengeParameter) []byte {
	buf := make([]byte, 0, AuthenticateSignedMessageLen)
	buf = append(buf, app[:]...)
	buf = append(buf, UserPresenceByte(userPresence))

	var counterBytes [4]byte
	binary.BigEndian.PutUint32(counterBytes[:], uint32(counter))
	buf = append(buf, counterBytes[:]...)

	buf = append(buf, challenge[:]...)
	return buf
}
