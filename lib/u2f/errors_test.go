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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorPredicatesDistinguishKinds(t *testing.T) {
	approval := NewApprovalRequiredError("register")
	badHandle := NewBadKeyHandleError()
	signing := NewSigningError(errors.New("boom"))
	io := NewIOError(errors.New("disk full"))

	require.True(t, IsApprovalRequired(approval))
	require.False(t, IsBadKeyHandle(approval))
	require.False(t, IsSigning(approval))
	require.False(t, IsIO(approval))

	require.True(t, IsBadKeyHandle(badHandle))
	require.False(t, IsApprovalRequired(badHandle))

	require.True(t, IsSigning(signing))
	require.False(t, IsIO(signing))

	require.True(t, IsIO(io))
	require.False(t, IsSigning(io))
}

func TestNewIOErrorWithNilCauseIsNil(t *testing.T) {
	require.NoError(t, NewIOError(nil))
}

func TestSigningAndIOErrorsUnwrapToCause(t *testing.T) {
	cause := errors.New("underlying failure")

	signing := NewSigningError(cause)
	require.ErrorIs(t, signing, cause)

	io := NewIOError(cause)
	require.ErrorIs(t, io, cause)
}
