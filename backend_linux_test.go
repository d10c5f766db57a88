//go:build linux

package sharedlibrary

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// libc is loadable by soname on any glibc system.
const libcName = "libc.so.6"

func openLibc(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(libcName)
	if err != nil {
		t.Skipf("cannot load %s on this system: %v", libcName, err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func TestRegisterAgainstLibc(t *testing.T) {
	lib := openLibc(t)
	require.True(t, lib.IsLoaded())
	require.NotZero(t, lib.NativeHandle())

	var getpid func() int32
	require.NoError(t, lib.Register("getpid", &getpid))
	require.EqualValues(t, os.Getpid(), getpid())
}

func TestSymbolNotFoundAgainstLibc(t *testing.T) {
	lib := openLibc(t)

	_, err := lib.Symbol("definitely_not_a_real_symbol")
	require.Error(t, err)
	require.Contains(t, err.Error(), "definitely_not_a_real_symbol")
	require.True(t, lib.IsLoaded())
}

func TestBatchLoadAgainstLibc(t *testing.T) {
	lib := openLibc(t)

	var getpid, getppid func() int32
	require.NoError(t, lib.BatchLoad(
		Bind("getpid", &getpid),
		Bind("getppid", &getppid),
	))
	require.EqualValues(t, os.Getpid(), getpid())
	require.NotZero(t, getppid())
}

func TestEnsureLoadedConcurrentAgainstLibc(t *testing.T) {
	lib, err := New(libcName)
	require.NoError(t, err)
	defer lib.Close()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = lib.EnsureLoaded()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Skipf("cannot load %s on this system: %v", libcName, err)
		}
	}
	require.True(t, lib.IsLoaded())
}

func TestCheckVersionAgainstLibc(t *testing.T) {
	lib := openLibc(t)

	// glibc reports its version through gnu_get_libc_version.
	if _, err := lib.Symbol("gnu_get_libc_version"); err != nil {
		t.Skipf("no gnu_get_libc_version export: %v", err)
	}
	require.NoError(t, lib.CheckVersion(">= 2.0", "gnu_get_libc_version"))

	err := lib.CheckVersion("< 1.0", "gnu_get_libc_version")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not compatible")
}
