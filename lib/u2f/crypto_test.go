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
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateApplicationKeyProducesDistinctHandles(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	crypto := NewSoftwareCrypto(attestation)

	var app ApplicationParameter
	k1, err := crypto.GenerateApplicationKey(app)
	require.NoError(t, err)
	k2, err := crypto.GenerateApplicationKey(app)
	require.NoError(t, err)

	require.NotEqual(t, k1.Handle, k2.Handle)
	require.Len(t, k1.Key.PublicKeyRaw(), 65)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	crypto := NewSoftwareCrypto(attestation)

	var app ApplicationParameter
	key, err := crypto.GenerateApplicationKey(app)
	require.NoError(t, err)

	data := []byte("some signed message")
	sig, err := crypto.Sign(key.Key, data)
	require.NoError(t, err)

	require.True(t, VerifyECDSA(key.Key.Public(), data, sig))
	require.False(t, VerifyECDSA(key.Key.Public(), []byte("tampered"), sig))
}

func TestAttestReturnsSignatureOverAttestationKey(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)
	crypto := NewSoftwareCrypto(attestation)

	data := []byte("register signed message")
	sig, err := crypto.Attest(data)
	require.NoError(t, err)

	require.True(t, VerifyECDSA(attestation.Key.Public(), data, sig))
}

func TestGenerateSelfSignedAttestationProducesParsableCertificate(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(attestation.CertificateDER)
	require.NoError(t, err)
	require.Equal(t, "U2F Software Authenticator", cert.Subject.CommonName)
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	attestation, err := GenerateSelfSignedAttestation(0, 1<<34)
	require.NoError(t, err)

	pemBytes, err := attestation.Key.PEM()
	require.NoError(t, err)

	parsed, err := PrivateKeyFromPEM(pemBytes)
	require.NoError(t, err)
	require.Equal(t, attestation.Key.PublicKeyRaw(), parsed.PublicKeyRaw())
}
