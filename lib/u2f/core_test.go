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
	"crypto/elliptic"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()

	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)

	store, err := OpenFileStore(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewCore(AlwaysApprove{}, NewSoftwareCrypto(attestation), store)
}

func testApplication(t *testing.T, facet string) ApplicationParameter {
	t.Helper()
	return ApplicationParameter(sha256.Sum256([]byte(facet)))
}

func TestRegisterThenAuthenticateRoundTrip(t *testing.T) {
	core := newTestCore(t)
	app := testApplication(t, "https://example.com")
	var challenge ChallengeParameter
	challenge[0] = 0x42

	regResp, err := core.Register(app, challenge)
	require.NoError(t, err)
	require.Len(t, regResp.UserPublicKey, 65)
	require.Equal(t, byte(0x04), regResp.UserPublicKey[0])

	x, _ := elliptic.Unmarshal(elliptic.P256(), regResp.UserPublicKey)
	require.NotNil(t, x)

	registerMessage := EncodeRegisterSignedMessage(app, challenge, regResp.KeyHandle, regResp.UserPublicKey)
	require.Len(t, registerMessage, RegisterSignedMessageLen)

	valid, err := core.IsValidKeyHandle(regResp.KeyHandle, app)
	require.NoError(t, err)
	require.True(t, valid)

	var authChallenge ChallengeParameter
	authChallenge[0] = 0x43

	authResp, err := core.Authenticate(app, authChallenge, regResp.KeyHandle)
	require.NoError(t, err)
	require.Equal(t, Counter(1), authResp.Counter)

	authMessage := EncodeAuthenticateSignedMessage(app, true, authResp.Counter, authChallenge)
	require.Len(t, authMessage, AuthenticateSignedMessageLen)
}

func TestAuthenticateIncrementsCounterMonotonically(t *testing.T) {
	core := newTestCore(t)
	app := testApplication(t, "https://example.com")
	var challenge ChallengeParameter

	regResp, err := core.Register(app, challenge)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		resp, err := core.Authenticate(app, challenge, regResp.KeyHandle)
		require.NoError(t, err)
		require.Equal(t, Counter(i), resp.Counter)
	}
}

func TestAuthenticateWithUnknownHandleIsBadKeyHandle(t *testing.T) {
	core := newTestCore(t)
	app := testApplication(t, "https://example.com")
	var challenge ChallengeParameter

	var handle KeyHandle
	handle[0] = 0xFF

	_, err := core.Authenticate(app, challenge, handle)
	require.Error(t, err)
	require.True(t, IsBadKeyHandle(err))
}

func TestRegisterWithRefusedApprovalIsApprovalRequired(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	core := NewCore(NeverApprove{}, NewSoftwareCrypto(attestation), store)

	var app ApplicationParameter
	var challenge ChallengeParameter

	_, err = core.Register(app, challenge)
	require.Error(t, err)
	require.True(t, IsApprovalRequired(err))
}

func TestIsValidKeyHandleForUnregisteredHandleReturnsFalse(t *testing.T) {
	core := newTestCore(t)
	app := testApplication(t, "https://example.com")
	var handle KeyHandle

	valid, err := core.IsValidKeyHandle(handle, app)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestGetVersionString(t *testing.T) {
	core := newTestCore(t)
	require.Equal(t, "U2F_V2", core.GetVersionString())
}
