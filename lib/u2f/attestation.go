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
	"crypto/x509/pkix"
	"os"
	"time"

	"github.com/gravitational/trace"
)

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func pkixNameFor(commonName string) pkix.Name {
	return pkix.Name{CommonName: commonName, Organization: []string{"go-u2f"}}
}

// LoadAttestation reads a DER-encoded attestation certificate and a PKCS#8
// PEM-encoded attestation private key from disk. This is how a real
// deployment provisions its fixed batch certificate, as opposed to the
// self-signed material GenerateSelfSignedAttestation produces for tests.
func LoadAttestation(certPath, keyPath string) (Attestation, error) {
	certDER, err := os.ReadFile(certPath)
	if err != nil {
		return Attestation{}, trace.Wrap(err)
	}
	if _, err := x509.ParseCertificate(certDER); err != nil {
		return Attestation{}, trace.Wrap(err, "attestation certificate is not valid DER")
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return Attestation{}, trace.Wrap(err)
	}
	key, err := PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return Attestation{}, trace.Wrap(err, "attestation key is not a valid EC private key")
	}

	return Attestation{CertificateDER: certDER, Key: key}, nil
}
