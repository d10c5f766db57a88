package sharedlibrary

import (
	"reflect"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// Binding pairs an exported symbol name with the function variable it
// should be bound to. Construct with Bind and pass to BatchLoad.
type Binding struct {
	Name string
	Ptr  any
}

// Bind pairs a symbol name with a destination for BatchLoad. fptr must be a
// non-nil pointer to a function variable.
func Bind(name string, fptr any) Binding {
	return Binding{Name: name, Ptr: fptr}
}

// Symbol resolves the raw address of the exported symbol name, loading the
// library first if needed (with EnsureLoaded semantics). A missing symbol
// is reported with an error naming both the symbol and the library; it does
// not affect the loaded state.
func (l *Library) Symbol(name string) (uintptr, error) {
	if name == "" {
		return 0, errors.New("symbol name cannot be empty")
	}
	if err := l.EnsureLoaded(); err != nil {
		return 0, err
	}
	s := l.s
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()
	if handle == 0 {
		return 0, errors.Errorf("cannot resolve symbol %q: library %s is not loaded", name, s.path)
	}
	addr, err := s.backend.symbol(handle, name)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to resolve symbol %q in %s", name, s.path)
	}
	if addr == 0 {
		return 0, errors.Errorf("symbol %q not found in %s", name, s.path)
	}
	return addr, nil
}

// Register resolves name and binds it to the function variable pointed to
// by fptr, so that calling the variable calls into the library. The
// variable's declared Go signature determines how the native function is
// invoked; declaring a signature that does not match the export is a caller
// contract violation this package cannot detect.
func (l *Library) Register(name string, fptr any) error {
	v := reflect.ValueOf(fptr)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Func {
		return errors.Errorf("destination for symbol %q must be a non-nil pointer to a function variable", name)
	}
	addr, err := l.Symbol(name)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}

// BatchLoad resolves the bindings in order, each as an individual Register
// call, stopping at the first failure. Bindings before the failing one are
// populated; the failing binding and everything after it are left
// untouched.
func (l *Library) BatchLoad(bindings ...Binding) error {
	for _, b := range bindings {
		if err := l.Register(b.Name, b.Ptr); err != nil {
			return errors.Wrapf(err, "batch load failed at symbol %q", b.Name)
		}
	}
	return nil
}
