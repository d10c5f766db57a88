package sharedlibrary

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// LibraryPathEnv is the environment variable FindLibrary consults for extra
// search directories, separated by the platform's path-list separator.
const LibraryPathEnv = "SHARED_LIBRARY_PATH"

// LibraryName returns the conventional file name for a base library name on
// the current platform: libbase.so on Linux and the BSDs, libbase.dylib on
// macOS, base.dll on Windows.
func LibraryName(base string) string {
	switch runtime.GOOS {
	case "darwin":
		return "lib" + base + ".dylib"
	case "windows":
		return base + ".dll"
	default:
		return "lib" + base + ".so"
	}
}

// FindLibrary resolves base to the path of an existing library file,
// checking in order:
//  1. base itself, when it already names a file
//  2. directories listed in SHARED_LIBRARY_PATH
//  3. the dirs given by the caller
//  4. the directory of the running executable
//
// A bare name without extension is expanded with LibraryName first, so
// FindLibrary("frob", dir) looks for libfrob.so, libfrob.dylib or frob.dll
// as appropriate.
func FindLibrary(base string, dirs ...string) (string, error) {
	if base == "" {
		return "", errors.New("library name cannot be empty")
	}
	if _, err := os.Stat(base); err == nil {
		return base, nil
	}

	name := base
	if filepath.Base(base) == base && filepath.Ext(base) == "" {
		name = LibraryName(base)
	}

	var search []string
	if env := os.Getenv(LibraryPathEnv); env != "" {
		search = append(search, strings.Split(env, string(os.PathListSeparator))...)
	}
	search = append(search, dirs...)
	if execPath, err := os.Executable(); err == nil {
		search = append(search, filepath.Dir(execPath))
	}

	for _, dir := range search {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Errorf("library %s not found as %s in %d searched directories", base, name, len(search))
}

// IsLoadable reports whether the file at path exists and can actually be
// loaded by the platform loader. The probe handle is closed immediately.
func IsLoadable(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	b := platformBackend()
	handle, err := b.load(path)
	if err != nil || handle == 0 {
		return false
	}
	_ = b.unload(handle)
	return true
}
