/*
 * Copyright 2022 Michael Graff.
 *
 * Licensed under the Apache License, Version 2.0 (the "License")
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package jwtkit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TypeConstructor creates a token type with no arguments.
type TypeConstructor func() TokenType

var (
	catalog  map[string]TypeConstructor
	lock     sync.Mutex
	oncelock sync.Once
)

func initOnce() {
	oncelock.Do(func() {
		catalog = map[string]TypeConstructor{
			BasicTypeName: func() TokenType { return BasicType{} },
		}
	})
}

// RegisterType makes a self-contained token type resolvable by name from
// every TypeRegistry that has no registered or declared type of that name.
// It is usually called from an init function.
func RegisterType(name string, ctor TypeConstructor) error {
	initOnce()
	if len(name) == 0 {
		return fmt.Errorf("type name must be provided")
	}
	if ctor == nil {
		return fmt.Errorf("constructor must be provided")
	}
	lock.Lock()
	defer lock.Unlock()
	catalog[name] = ctor
	return nil
}

// UnregisterType removes a name from the type catalog.
func UnregisterType(name string) {
	initOnce()
	lock.Lock()
	defer lock.Unlock()
	delete(catalog, name)
}

func findConstructor(name string) (ctor TypeConstructor, found bool) {
	initOnce()
	lock.Lock()
	defer lock.Unlock()
	ctor, found = catalog[name]
	return
}

// TypeRegistry resolves token types by name.  Lookup order: a registered
// or previously resolved instance, then a declared ConfigurableType, then
// the process-wide catalog filled by RegisterType.  Every name is resolved
// at most once; later lookups return the same instance.
type TypeRegistry struct {
	declared map[string]TypeOptions
	logger   logrus.FieldLogger

	lock      sync.RWMutex
	instances map[string]TokenType
	resolving singleflight.Group
}

// NewTypeRegistry creates a registry with the given declarative types.
func NewTypeRegistry(declared map[string]TypeOptions, opts ...Option) *TypeRegistry {
	o := newOptions(opts)
	d := make(map[string]TypeOptions, len(declared))
	for name, options := range declared {
		if options.Leeway == 0 {
			options.Leeway = o.leeway
		}
		d[name] = options
	}
	return &TypeRegistry{
		declared:  d,
		logger:    o.logger,
		instances: make(map[string]TokenType),
	}
}

// AddType registers t under t.Name(), replacing any type of that name.
func (r *TypeRegistry) AddType(t TokenType) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.instances[t.Name()] = t
}

// Names returns the names of registered and declared types, sorted.
func (r *TypeRegistry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	seen := make(map[string]bool, len(r.instances)+len(r.declared))
	for name := range r.instances {
		seen[name] = true
	}
	for name := range r.declared {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *TypeRegistry) instance(name string) (TokenType, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, found := r.instances[name]
	return t, found
}

// GetTypeByName resolves a token type.
func (r *TypeRegistry) GetTypeByName(name string) (TokenType, error) {
	if t, found := r.instance(name); found {
		return t, nil
	}

	v, err, _ := r.resolving.Do(name, func() (interface{}, error) {
		if t, found := r.instance(name); found {
			return t, nil
		}

		var t TokenType
		if options, found := r.declared[name]; found {
			t = NewConfigurableType(name, options)
		} else if ctor, found := findConstructor(name); found {
			t = ctor()
		}
		if t == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
		}

		r.lock.Lock()
		r.instances[name] = t
		r.lock.Unlock()

		r.logger.WithField("type", name).Debug("resolved token type")
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(TokenType), nil
}
