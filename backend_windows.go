//go:build windows

package sharedlibrary

import (
	"golang.org/x/sys/windows"
)

// winBackend drives the Win32 module loader. x/sys translates the UTF-8
// path to UTF-16 before it reaches LoadLibraryW; FreeLibrary decrements the
// module reference count.
type winBackend struct{}

func platformBackend() backend {
	return winBackend{}
}

func (winBackend) load(path string) (uintptr, error) {
	handle, err := windows.LoadLibrary(path)
	return uintptr(handle), err
}

func (winBackend) unload(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

func (winBackend) symbol(handle uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(handle), name)
}
