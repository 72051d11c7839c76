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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uncheckedType struct{}

func (uncheckedType) Name() string                                   { return "unchecked" }
func (uncheckedType) ConfigureBuilder(b *Builder)                    { b.WithClaim("unchecked", true) }
func (uncheckedType) Constraints(*SigningConfiguration) []Constraint { return nil }

func TestRegisterType(t *testing.T) {
	tests := []struct {
		name         string
		typeName     string
		ctor         TypeConstructor
		wantErrorMsg string
	}{
		{"works", "unchecked", func() TokenType { return uncheckedType{} }, ""},
		{"empty name errors", "", func() TokenType { return uncheckedType{} }, "type name must be provided"},
		{"nil constructor errors", "unchecked", nil, "constructor must be provided"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterType(tt.typeName, tt.ctor)
			if tt.wantErrorMsg != "" {
				require.EqualError(t, err, tt.wantErrorMsg)
				return
			}
			require.NoError(t, err)
			defer UnregisterType(tt.typeName)
			_, found := findConstructor(tt.typeName)
			assert.True(t, found)
		})
	}
}

func TestTypeRegistry_GetTypeByName(t *testing.T) {
	require.NoError(t, RegisterType("unchecked", func() TokenType { return uncheckedType{} }))
	defer UnregisterType("unchecked")

	declared := map[string]TypeOptions{
		"session":   {Subject: "alice"},
		"unchecked": {Subject: "declared wins over catalog"},
	}
	r := NewTypeRegistry(declared)

	tests := []struct {
		name     string
		typeName string
		check    func(t *testing.T, got TokenType)
		wantErr  error
	}{
		{
			"declared",
			"session",
			func(t *testing.T, got TokenType) {
				ct, ok := got.(*ConfigurableType)
				require.True(t, ok)
				assert.Equal(t, "session", ct.Name())
				assert.Equal(t, "alice", ct.Options().Subject)
			},
			nil,
		},
		{
			"declared before catalog",
			"unchecked",
			func(t *testing.T, got TokenType) {
				assert.IsType(t, &ConfigurableType{}, got)
			},
			nil,
		},
		{
			"catalog",
			BasicTypeName,
			func(t *testing.T, got TokenType) {
				assert.Equal(t, BasicType{}, got)
			},
			nil,
		},
		{
			"unknown",
			"nope",
			nil,
			ErrUnknownType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.GetTypeByName(tt.typeName)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, found := r.instance(tt.typeName)
				assert.False(t, found)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestTypeRegistry_catalogType(t *testing.T) {
	require.NoError(t, RegisterType("unchecked", func() TokenType { return uncheckedType{} }))
	defer UnregisterType("unchecked")

	got, err := NewTypeRegistry(nil).GetTypeByName("unchecked")
	require.NoError(t, err)
	assert.Equal(t, uncheckedType{}, got)
}

func TestTypeRegistry_addedTypeTakesPrecedence(t *testing.T) {
	r := NewTypeRegistry(map[string]TypeOptions{"unchecked": {Subject: "x"}})
	r.AddType(uncheckedType{})

	got, err := r.GetTypeByName("unchecked")
	require.NoError(t, err)
	assert.Equal(t, uncheckedType{}, got)
	assert.Equal(t, []string{"unchecked"}, r.Names())
}

func TestTypeRegistry_memoized(t *testing.T) {
	r := NewTypeRegistry(map[string]TypeOptions{"session": {}})
	first, err := r.GetTypeByName("session")
	require.NoError(t, err)
	second, err := r.GetTypeByName("session")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestTypeRegistry_concurrentFirstResolution(t *testing.T) {
	logger, hook := quietLogger()
	r := NewTypeRegistry(map[string]TypeOptions{"session": {Exp: 3600}}, WithLogger(logger))

	const callers = 64
	got := make([]TokenType, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tt, err := r.GetTypeByName("session")
			if err == nil {
				got[i] = tt
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NotNil(t, got[i])
		assert.Same(t, got[0], got[i])
	}
	assert.Equal(t, 1, countEntries(hook, "resolved token type", "type", "session"))
}

func TestTypeRegistry_defaultLeeway(t *testing.T) {
	r := NewTypeRegistry(map[string]TypeOptions{
		"a": {},
		"b": {Leeway: 5},
	}, WithLeeway(30))

	a, err := r.GetTypeByName("a")
	require.NoError(t, err)
	assert.EqualValues(t, 30, a.(*ConfigurableType).Options().Leeway)

	b, err := r.GetTypeByName("b")
	require.NoError(t, err)
	assert.EqualValues(t, 5, b.(*ConfigurableType).Options().Leeway)
}
