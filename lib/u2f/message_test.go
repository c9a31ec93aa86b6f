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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeRegisterSignedMessageLayout(t *testing.T) {
	var app ApplicationParameter
	var challenge ChallengeParameter
	var handle KeyHandle
	pubkey := make([]byte, 65)
	pubkey[0] = 0x04

	msg := EncodeRegisterSignedMessage(app, challenge, handle, pubkey)

	require.Len(t, msg, RegisterSignedMessageLen)
	require.Equal(t, byte(0x00), msg[0])
	require.Equal(t, app[:], msg[1:33])
	require.Equal(t, challenge[:], msg[33:65])
	require.Equal(t, handle[:], msg[65:193])
	require.Equal(t, pubkey, msg[193:258])
}

func TestEncodeRegisterSignedMessagePanicsOnBadPublicKeyLength(t *testing.T) {
	var app ApplicationParameter
	var challenge ChallengeParameter
	var handle KeyHandle

	require.Panics(t, func() {
		EncodeRegisterSignedMessage(app, challenge, handle, []byte{0x04, 0x05})
	})
}

func TestEncodeAuthenticateSignedMessageLayout(t *testing.T) {
	var app ApplicationParameter
	app[0] = 0xAB
	var challenge ChallengeParameter
	challenge[31] = 0xCD

	msg := EncodeAuthenticateSignedMessage(app, true, 0x01020304, challenge)

	require.Len(t, msg, AuthenticateSignedMessageLen)
	require.Equal(t, app[:], msg[0:32])
	require.Equal(t, byte(0x01), msg[32])
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, msg[33:37])
	require.Equal(t, challenge[:], msg[37:69])
}

func TestUserPresenceByte(t *testing.T) {
	require.Equal(t, byte(0x01), UserPresenceByte(true))
	require.Equal(t, byte(0x00), UserPresenceByte(false))
}
