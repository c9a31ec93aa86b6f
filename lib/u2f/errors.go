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
	"errors"

	"github.com/gravitational/trace"
)

// approvalRequiredError is returned when the ApprovalService refuses a
// register or authenticate request.
type approvalRequiredError struct {
	op string
}

func (e *approvalRequiredError) Error() string {
	return "u2f: " + e.op + " not approved by user"
}

// NewApprovalRequiredError builds the ApprovalRequired error kind for the
// given operation name ("register" or "authenticate").
func NewApprovalRequiredError(op string) error {
	return trace.Wrap(&approvalRequiredError{op: op})
}

// IsApprovalRequired reports whether err is (or wraps) an ApprovalRequired
// error.
func IsApprovalRequired(err error) bool {
	var e *approvalRequiredError
	return errors.As(err, &e)
}

// badKeyHandleError is returned by Authenticate when no ApplicationKey is
// registered for the given (application, handle) pair.
type badKeyHandleError struct{}

func (e *badKeyHandleError) Error() string {
	return "u2f: bad key handle"
}

// NewBadKeyHandleError builds the BadKeyHandle error kind.
func NewBadKeyHandleError() error {
	return trace.Wrap(&badKeyHandleError{})
}

// IsBadKeyHandle reports whether err is (or wraps) a BadKeyHandle error.
func IsBadKeyHandle(err error) bool {
	var e *badKeyHandleError
	return errors.As(err, &e)
}

// signingError wraps a failure from the crypto substrate while producing a
// signature.
type signingError struct {
	cause error
}

func (e *signingError) Error() string {
	return "u2f: signing failed: " + e.cause.Error()
}

func (e *signingError) Unwrap() error {
	return e.cause
}

// NewSigningError builds the Signing error kind, wrapping the underlying
// cause.
func NewSigningError(cause error) error {
	return trace.Wrap(&signingError{cause: cause})
}

// IsSigning reports whether err is (or wraps) a Signing error.
func IsSigning(err error) bool {
	var e *signingError
	return errors.As(err, &e)
}

// ioError wraps a failure from the SecretStore substrate (persistence,
// CSPRNG unavailability, and similar I/O-adjacent failures).
type ioError struct {
	cause error
}

func (e *ioError) Error() string {
	return "u2f: store error: " + e.cause.Error()
}

func (e *ioError) Unwrap() error {
	return e.cause
}

// NewIOError builds the Io error kind, wrapping the underlying cause.
func NewIOError(cause error) error {
	if cause == nil {
		return nil
	}
	return trace.Wrap(&ioError{cause: cause})
}

// IsIO reports whether err is (or wraps) an Io error.
func IsIO(err error) bool {
	var e *ioError
	return errors.As(err, &e)
}
