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

// Store is the C3 SecretStore collaborator: persistence for application
// keys and their counters. The core holds only a shared reference, never a
// mutable one, so implementations must serialize their own mutations and be
// safe for concurrent use.
//
// Counter semantics differ by backend and are documented on each
// implementation: the file backend keys the counter purely by application,
// while the secret-service backend derives it per (application, handle)
// item. Both satisfy the invariant that successive calls for the same
// counter key return strictly increasing values.
type Store interface {
	// AddApplicationKey inserts a new ApplicationKey. Re-inserting the exact
	// same (application, handle, private key) tuple is a no-op; inserting a
	// different key under an existing (application, handle) pair is an
	// error.
	AddApplicationKey(key *ApplicationKey) error

	// RetrieveApplicationKey looks up a previously registered key. It
	// returns (nil, nil) if no matching entry exists; it never has a side
	// effect.
	RetrieveApplicationKey(application ApplicationParameter, handle KeyHandle) (*ApplicationKey, error)

	// GetAndIncrementCounter returns the post-increment counter value: the
	// first call for a never-before-seen key returns 1. Returns an error on
	// store unavailability or on counter overflow.
	GetAndIncrementCounter(application ApplicationParameter, handle KeyHandle) (Counter, error)
}
