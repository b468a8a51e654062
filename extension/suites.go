package extension

import (
	"reflect"
	"sort"
	"sync"

	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/viant/x"
)

// Suites provides the registry of runnable test suites
type Suites struct {
	types  *Types
	suites map[string]types.Suite
	mux    sync.RWMutex
}

func (s *Suites) Types() *Types {
	return s.types
}

// Lookup returns a suite by name
func (s *Suites) Lookup(name string) types.Suite {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.suites[name]
}

// Register registers a suite; its tuning type is added to the type registry
// so that hosts can introspect suite parameters by name.
func (s *Suites) Register(suite types.Suite) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if tuning := suite.Tuning(); tuning != nil {
		s.types.Register(x.NewType(reflect.TypeOf(tuning).Elem()))
	}
	s.suites[suite.Name()] = suite
}

// Names returns the registered suite names, sorted.
func (s *Suites) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.suites))
	for name := range s.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSuites creates a new suite registry
func NewSuites(goTypes ...*x.Type) *Suites {
	ret := &Suites{
		types:  NewTypes(),
		suites: make(map[string]types.Suite),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
