package sharedlibrary

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckVersionRejectsBadConstraint(t *testing.T) {
	stub := newStubBackend()
	lib, err := New("libstub.so", withStub(stub))
	require.NoError(t, err)

	err = lib.CheckVersion("not a constraint", "get_version")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse version constraint")
	// The constraint is validated before the library is touched.
	loads, _ := stub.counts()
	require.Zero(t, loads)
}

func TestCheckVersionReportsMissingSymbol(t *testing.T) {
	stub := newStubBackend()
	lib, err := New("libstub.so", withStub(stub))
	require.NoError(t, err)

	err = lib.CheckVersion("0.1.x", "get_version")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to resolve version symbol")
	require.Contains(t, err.Error(), "get_version")
}
