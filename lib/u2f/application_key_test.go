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

func TestApplicationParameterBase64RoundTrip(t *testing.T) {
	var a ApplicationParameter
	a[0] = 0xDE
	a[31] = 0xAD

	decoded, err := ApplicationParameterFromBase64(a.Base64())
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestApplicationParameterFromBase64RejectsWrongLength(t *testing.T) {
	_, err := ApplicationParameterFromBase64("AAAA")
	require.Error(t, err)
}

func TestKeyHandleBase64RoundTrip(t *testing.T) {
	var k KeyHandle
	k[0] = 0x01
	k[127] = 0xFF

	decoded, err := KeyHandleFromBase64(k.Base64())
	require.NoError(t, err)
	require.Equal(t, k, decoded)
}

func TestPublicKeyRawIsUncompressedSEC1(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)

	raw := attestation.Key.PublicKeyRaw()
	require.Len(t, raw, 65)
	require.Equal(t, byte(0x04), raw[0])
}
