//go:build !windows

package sharedlibrary

import (
	"github.com/ebitengine/purego"
)

// dlBackend drives the dynamic linker through purego, avoiding cgo.
// Libraries are opened with immediate symbol resolution and process-local
// visibility.
type dlBackend struct{}

func platformBackend() backend {
	return dlBackend{}
}

func (dlBackend) load(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
}

func (dlBackend) unload(handle uintptr) error {
	return purego.Dlclose(handle)
}

// symbol resolves name via dlsym. purego clears any stale dlerror state
// around the lookup, so a failure reported here is always about name and
// never left over from an earlier call.
func (dlBackend) symbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}
