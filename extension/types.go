package extension

import (
	"sync"

	"github.com/viant/x"
)

// Types registers the Go types suites expose (tuning parameters, result
// documents) so that hosts can resolve them by name.
type Types struct {
	x.Registry
	mux sync.RWMutex
	// keys maps the simple type name onto the package-qualified registry
	// key, so Lookup accepts both forms.
	keys map[string]string
}

// Register adds a data type to the registry
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
	t.mux.Lock()
	t.keys[dataType.Name] = dataType.Key()
	t.mux.Unlock()
}

// Lookup returns a data type from the registry; the name may be either the
// simple type name or the package-qualified one.
func (t *Types) Lookup(dataType string) *x.Type {
	if ret := t.Registry.Lookup(dataType); ret != nil {
		return ret
	}
	t.mux.RLock()
	key, ok := t.keys[dataType]
	t.mux.RUnlock()
	if !ok {
		return nil
	}
	return t.Registry.Lookup(key)
}

// NewTypes creates a new types registry
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...), keys: map[string]string{}}
}
