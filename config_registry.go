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
	"sync/atomic"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ConfigRegistry maps configuration names to factories and caches the
// SigningConfiguration each one builds.
//
// Factories should all be added before the registry is shared; lookups
// are safe for concurrent use and build each configuration at most once.
type ConfigRegistry struct {
	defaultName string
	clock       jwt.Clock
	logger      logrus.FieldLogger

	lock      sync.RWMutex
	factories map[string]*ConfigFactory
	configs   map[string]*SigningConfiguration
	building  singleflight.Group
	fallback  atomic.Pointer[SigningConfiguration]
}

// NewConfigRegistry creates an empty registry whose default configuration
// is defaultName.
func NewConfigRegistry(defaultName string, opts ...Option) *ConfigRegistry {
	o := newOptions(opts)
	return &ConfigRegistry{
		defaultName: defaultName,
		clock:       o.clock,
		logger:      o.logger,
		factories:   make(map[string]*ConfigFactory),
		configs:     make(map[string]*SigningConfiguration),
	}
}

// DefaultName returns the name of the default configuration.
func (r *ConfigRegistry) DefaultName() string {
	return r.defaultName
}

// AddConfigFactory registers a factory under its name, replacing any
// factory previously registered under that name.
func (r *ConfigRegistry) AddConfigFactory(factory *ConfigFactory) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.factories[factory.Name()] = factory
}

// Names returns the registered configuration names, sorted.
func (r *ConfigRegistry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ConfigRegistry) cached(name string) (*SigningConfiguration, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, found := r.configs[name]
	return c, found
}

// GetConfiguration returns the named configuration, building it on first
// use.  The same instance is returned on every later call.
func (r *ConfigRegistry) GetConfiguration(name string) (*SigningConfiguration, error) {
	if c, found := r.cached(name); found {
		return c, nil
	}

	v, err, _ := r.building.Do(name, func() (interface{}, error) {
		if c, found := r.cached(name); found {
			return c, nil
		}

		r.lock.RLock()
		factory, found := r.factories[name]
		r.lock.RUnlock()
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownConfiguration, name)
		}

		c, err := factory.CreateConfiguration(r.clock)
		if err != nil {
			return nil, err
		}

		r.lock.Lock()
		r.configs[name] = c
		r.lock.Unlock()

		r.logger.WithFields(logrus.Fields{
			"configuration": name,
			"signer":        c.Signer().Algorithm(),
		}).Debug("built signing configuration")
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SigningConfiguration), nil
}

// GetDefaultConfiguration returns the default configuration.
func (r *ConfigRegistry) GetDefaultConfiguration() (*SigningConfiguration, error) {
	if c := r.fallback.Load(); c != nil {
		return c, nil
	}
	c, err := r.GetConfiguration(r.defaultName)
	if err != nil {
		return nil, err
	}
	r.fallback.Store(c)
	return c, nil
}
