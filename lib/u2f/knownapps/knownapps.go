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

// Package knownapps provides a fixed reverse-lookup table from AppID SHA-256
// hash to a human-readable facet hostname, used to label secret-service
// items with something friendlier than a base64 blob.
package knownapps

import (
	"crypto/sha256"
	"sort"
)

// AppIDHash is the SHA-256 digest of an AppID facet URL.
type AppIDHash [32]byte

// BogusAppIDHash is the AppID hash Chrome registers against after certain
// failures, most commonly authentication failing because no matching key
// was found. It is never consulted by the core; it is exported so callers
// that log or display AppID hashes can recognize and label it distinctly
// rather than showing 32 bytes of 0x41 as if it were meaningful.
var BogusAppIDHash = AppIDHash{
	'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A',
	'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A',
}

func fromURL(url string) AppIDHash {
	return sha256.Sum256([]byte(url))
}

// knownAppIDs is kept in sync with
// https://github.com/github/SoftU2F/blob/master/SoftU2FTool/KnownFacets.swift
// plus a handful of facets observed in the wild but not yet listed there.
var knownAppIDs = map[AppIDHash]string{
	fromURL("https://github.com/u2f/trusted_facets"):               "github.com",
	fromURL("https://demo.yubico.com"):                             "demo.yubico.com",
	fromURL("https://www.dropbox.com/u2f-app-id.json"):             "dropbox.com",
	fromURL("https://www.gstatic.com/securitykey/origins.json"):    "google.com",
	fromURL("https://vault.bitwarden.com/app-id.json"):             "vault.bitwarden.com",
	fromURL("https://keepersecurity.com"):                          "keepersecurity.com",
	fromURL("https://api-9dcf9b83.duosecurity.com"):                "duosecurity.com",
	fromURL("https://dashboard.stripe.com"):                        "dashboard.stripe.com",
	fromURL("https://id.fedoraproject.org/u2f-origins.json"):       "id.fedoraproject.org",
	fromURL("https://lastpass.com"):                                "lastpass.com",

	// Additional known app IDs not yet in KnownFacets.swift.
	fromURL("bin.coffee"):              "bin.coffee",
	fromURL("coinbase.com"):            "coinbase.com",
	fromURL("https://gitlab.com"):      "gitlab.com",
	fromURL("https://mdp.github.io"):   "mdp.github.io",
	fromURL("https://u2f.bin.coffee"):  "u2f.bin.coffee",
	fromURL("https://www.fastmail.com"): "www.fastmail.com",
	fromURL("webauthn.bin.coffee"):     "webauthn.bin.coffee",
	fromURL("webauthn.io"):             "webauthn.io",
	fromURL("https://www.bitfinex.com"): "bitfinex.com",
}

// Reverse looks up the human-readable facet hostname for an AppID hash. It
// returns ("", false) for any AppID not in the fixed table, including
// BogusAppIDHash.
func Reverse(hash AppIDHash) (string, bool) {
	name, ok := knownAppIDs[hash]
	return name, ok
}

// HashFromBytes builds an AppIDHash from a 32-byte application parameter.
func HashFromBytes(b [32]byte) AppIDHash {
	return AppIDHash(b)
}

// Entry is one row of the known-AppID table.
type Entry struct {
	Hash     AppIDHash
	Hostname string
}

// All returns every entry in the fixed known-AppID table, sorted by
// hostname so callers get stable output without sorting it themselves.
func All() []Entry {
	entries := make([]Entry, 0, len(knownAppIDs))
	for hash, hostname := range knownAppIDs {
		entries = append(entries, Entry{Hash: hash, Hostname: hostname})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Hostname < entries[j].Hostname
	})
	return entries
}
