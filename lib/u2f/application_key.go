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
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"

	"github.com/gravitational/trace"
)

// MaxKeyHandleSize is the fixed width of a KeyHandle, per the FIDO U2F raw
// message format (U2F_MAX_KH_SIZE).
const MaxKeyHandleSize = 128

// VersionString is the constant U2F protocol version this daemon implements.
const VersionString = "U2F_V2"

// ApplicationParameter is the SHA-256 hash of a relying party's AppID. It
// indexes every ApplicationKey and Counter.
type ApplicationParameter [32]byte

// Base64 returns the standard base64 encoding of the application parameter,
// used both on the wire and as a SecretStore index key.
func (a ApplicationParameter) Base64() string {
	return base64.StdEncoding.EncodeToString(a[:])
}

// ApplicationParameterFromBase64 decodes a base64 string back into an
// ApplicationParameter.
func ApplicationParameterFromBase64(s string) (ApplicationParameter, error) {
	var a ApplicationParameter
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return a, trace.Wrap(err)
	}
	if len(raw) != len(a) {
		return a, trace.BadParameter("application parameter must be %d bytes, got %d", len(a), len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// ChallengeParameter is the 32-byte per-request nonce supplied by the
// relying party. It is never persisted.
type ChallengeParameter [32]byte

// KeyHandle is the fixed-width opaque blob a relying party stores and
// presents back on Authenticate.
type KeyHandle [MaxKeyHandleSize]byte

// Base64 returns the standard base64 encoding of the key handle.
func (k KeyHandle) Base64() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// KeyHandleFromBase64 decodes a base64 string back into a KeyHandle.
func KeyHandleFromBase64(s string) (KeyHandle, error) {
	var k KeyHandle
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return k, trace.Wrap(err)
	}
	if len(raw) != len(k) {
		return k, trace.BadParameter("key handle must be %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return k, nil
}

// Counter is the monotonic value embedded in every authenticate response.
// Its scope (per application or per key handle) depends on the Store
// backend; see Store.
type Counter uint32

// PrivateKey wraps an EC P-256 key pair. It round-trips to/from PEM so it can
// be embedded in a SecretStore's persisted representation.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// NewPrivateKey wraps an already-generated EC P-256 key.
func NewPrivateKey(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{key: key}
}

// Signer exposes the underlying *ecdsa.PrivateKey for signing operations.
func (p *PrivateKey) Signer() *ecdsa.PrivateKey {
	return p.key
}

// Public returns the public half of the key pair.
func (p *PrivateKey) Public() *ecdsa.PublicKey {
	return &p.key.PublicKey
}

// PublicKeyRaw returns the public key in the uncompressed ANSI X9.62 / SEC1
// form mandated by the register signed message: 0x04 || X (32) || Y (32).
func (p *PrivateKey) PublicKeyRaw() []byte {
	return elliptic.Marshal(p.key.Curve, p.key.X, p.key.Y)
}

// PEM encodes the private key as a PKCS#8 PEM block.
func (p *PrivateKey) PEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(p.key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}

// PrivateKeyFromPEM parses a PKCS#8 PEM-encoded EC private key.
func PrivateKeyFromPEM(data []byte) (*PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, trace.BadParameter("not a PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, trace.BadParameter("expected an EC private key, got %T", key)
	}
	return &PrivateKey{key: ecKey}, nil
}

// ApplicationKey is the tuple created at registration: which application it
// belongs to, the opaque handle the relying party will present back, and the
// signing key. Immutable once created.
type ApplicationKey struct {
	Application ApplicationParameter
	Handle      KeyHandle
	Key         *PrivateKey
}
