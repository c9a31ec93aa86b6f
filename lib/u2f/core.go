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

// Package u2f implements the core cryptographic state machine of a
// software U2F authenticator: registration, authentication, key-handle
// validation and the secret stores and approval prompt they depend on.
package u2f

import (
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	trace.Component: "u2f",
})

// RegisterResponse is returned by Core.Register.
type RegisterResponse struct {
	UserPublicKey          []byte
	KeyHandle              KeyHandle
	AttestationCertificate []byte
	Signature              []byte
}

// AuthenticateResponse is returned by Core.Authenticate.
type AuthenticateResponse struct {
	Counter   Counter
	Signature []byte
}

// Core orchestrates the crypto, store and approval collaborators to
// implement Register, Authenticate and isValidKeyHandle. It holds only
// immutable references; all mutable state lives in the Store.
type Core struct {
	approval ApprovalService
	crypto   CryptoOperations
	store    Store
}

// NewCore builds a Core from its three collaborators.
func NewCore(approval ApprovalService, crypto CryptoOperations, store Store) *Core {
	return &Core{approval: approval, crypto: crypto, store: store}
}

// Register implements the U2F registration ceremony (spec section 4.7).
func (c *Core) Register(application ApplicationParameter, challenge ChallengeParameter) (*RegisterResponse, error) {
	approved, err := c.approval.ApproveRegistration(application)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !approved {
		log.Debugf("Registration for application %s was not approved.", application.Base64())
		return nil, NewApprovalRequiredError("register")
	}

	appKey, err := c.crypto.GenerateApplicationKey(application)
	if err != nil {
		return nil, NewIOError(err)
	}

	if err := c.store.AddApplicationKey(appKey); err != nil {
		return nil, NewIOError(err)
	}

	userPublicKey := appKey.Key.PublicKeyRaw()
	message := EncodeRegisterSignedMessage(application, challenge, appKey.Handle, userPublicKey)

	signature, err := c.crypto.Attest(message)
	if err != nil {
		return nil, NewSigningError(err)
	}

	log.Debugf("Registered new application key for application %s.", application.Base64())

	return &RegisterResponse{
		UserPublicKey:          userPublicKey,
		KeyHandle:              appKey.Handle,
		AttestationCertificate: c.crypto.AttestationCertificate(),
		Signature:              signature,
	}, nil
}

// Authenticate implements the U2F authentication ceremony (spec section
// 4.7).
func (c *Core) Authenticate(application ApplicationParameter, challenge ChallengeParameter, handle KeyHandle) (*AuthenticateResponse, error) {
	approved, err := c.approval.ApproveAuthentication(application)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !approved {
		log.Debugf("Authentication for application %s was not approved.", application.Base64())
		return nil, NewApprovalRequiredError("authenticate")
	}

	appKey, err := c.store.RetrieveApplicationKey(application, handle)
	if err != nil {
		return nil, NewIOError(err)
	}
	if appKey == nil {
		return nil, NewBadKeyHandleError()
	}

	counter, err := c.store.GetAndIncrementCounter(application, handle)
	if err != nil {
		return nil, NewIOError(err)
	}

	message := EncodeAuthenticateSignedMessage(application, true /* user presence */, counter, challenge)

	signature, err := c.crypto.Sign(appKey.Key, message)
	if err != nil {
		return nil, NewSigningError(err)
	}

	log.Debugf("Authenticated application %s at counter %d.", application.Base64(), counter)

	return &AuthenticateResponse{Counter: counter, Signature: signature}, nil
}

// IsValidKeyHandle reports whether handle names a registered ApplicationKey
// for application. It is a pure read: no approval prompt, no counter side
// effect.
func (c *Core) IsValidKeyHandle(handle KeyHandle, application ApplicationParameter) (bool, error) {
	appKey, err := c.store.RetrieveApplicationKey(application, handle)
	if err != nil {
		return false, NewIOError(err)
	}
	return appKey != nil, nil
}

// GetVersionString returns the constant U2F protocol version string.
func (c *Core) GetVersionString() string {
	return VersionString
}
