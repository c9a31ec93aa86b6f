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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"io"
	"math/big"

	"github.com/gravitational/trace"
)

// serialNumberLimit bounds the random attestation certificate serial
// number to 128 bits, matching the range crypto/tls's own certificate
// generation helpers use.
var serialNumberLimit = new(big.Int).Lsh(big.NewInt(1), 128)

func randomSerialNumber() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return serial, nil
}

// CryptoOperations is the C1 collaborator: EC P-256 keygen, ECDSA-SHA256
// signing and the constant attestation certificate. Implementations must be
// safe for concurrent use.
type CryptoOperations interface {
	// GenerateApplicationKey creates a fresh key pair and a random key
	// handle for the given application.
	GenerateApplicationKey(application ApplicationParameter) (*ApplicationKey, error)

	// Sign produces an ASN.1 DER-encoded ECDSA-SHA256 signature over data
	// using the given application key.
	Sign(key *PrivateKey, data []byte) ([]byte, error)

	// Attest produces an ASN.1 DER-encoded ECDSA-SHA256 signature over data
	// using the daemon's attestation key.
	Attest(data []byte) ([]byte, error)

	// AttestationCertificate returns the constant DER-encoded batch
	// certificate.
	AttestationCertificate() []byte
}

// Attestation is the (certificate, key) pair loaded at startup and held
// immutable for the life of the process.
type Attestation struct {
	CertificateDER []byte
	Key            *PrivateKey
}

// softwareCrypto is the real CryptoOperations implementation: P-256 keygen
// from the OS CSPRNG and ECDSA-SHA256 signing.
type softwareCrypto struct {
	attestation Attestation
	rand        io.Reader
}

// NewSoftwareCrypto returns a CryptoOperations backed by crypto/ecdsa and the
// OS CSPRNG, using attestation as the fixed batch certificate/key.
func NewSoftwareCrypto(attestation Attestation) CryptoOperations {
	return &softwareCrypto{attestation: attestation, rand: rand.Reader}
}

func (s *softwareCrypto) GenerateApplicationKey(application ApplicationParameter) (*ApplicationKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), s.rand)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var handle KeyHandle
	if _, err := io.ReadFull(s.rand, handle[:]); err != nil {
		return nil, trace.Wrap(err)
	}

	return &ApplicationKey{
		Application: application,
		Handle:      handle,
		Key:         NewPrivateKey(key),
	}, nil
}

func (s *softwareCrypto) Sign(key *PrivateKey, data []byte) ([]byte, error) {
	return signECDSA(s.rand, key.Signer(), data)
}

func (s *softwareCrypto) Attest(data []byte) ([]byte, error) {
	return signECDSA(s.rand, s.attestation.Key.Signer(), data)
}

func (s *softwareCrypto) AttestationCertificate() []byte {
	return s.attestation.CertificateDER
}

// signECDSA hashes data with SHA-256 and produces an ASN.1 DER-encoded
// ECDSA signature, the wire format mandated by the FIDO U2F raw message
// format.
func signECDSA(rnd io.Reader, key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rnd, key, digest[:])
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return sig, nil
}

// VerifyECDSA checks an ASN.1 DER-encoded ECDSA-SHA256 signature over data,
// used by tests that play back the full register/authenticate round trip.
func VerifyECDSA(pub *ecdsa.PublicKey, data, sig []byte) bool {
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// GenerateSelfSignedAttestation creates a fresh EC P-256 attestation key and
// a matching self-signed certificate, for tests and for first-run
// bootstrapping when no attestation material has been provisioned yet. Real
// deployments should load a certificate issued by a real batch CA instead;
// see LoadAttestation.
func GenerateSelfSignedAttestation(notBefore, notAfter int64) (Attestation, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Attestation{}, trace.Wrap(err)
	}

	serialNumber, err := randomSerialNumber()
	if err != nil {
		return Attestation{}, trace.Wrap(err)
	}

	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkixNameFor("U2F Software Authenticator"),
		NotBefore:             unixTime(notBefore),
		NotAfter:              unixTime(notAfter),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return Attestation{}, trace.Wrap(err)
	}

	return Attestation{CertificateDER: der, Key: NewPrivateKey(key)}, nil
}
