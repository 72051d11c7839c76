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
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/sirupsen/logrus"
)

// DefaultIssuedAtSkew is subtracted from the current time when a token's
// "iat" is set, so that a validator with a marginally earlier clock does
// not reject a freshly issued token.
const DefaultIssuedAtSkew = time.Second

type options struct {
	logger       logrus.FieldLogger
	clock        jwt.Clock
	issuedAtSkew time.Duration
	leeway       time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:       logrus.StandardLogger(),
		clock:        &TimeClock{},
		issuedAtSkew: DefaultIssuedAtSkew,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option specifies non-default overrides at
// creation time of registries and managers.
type Option func(*options)

// WithLogger sets the logger.  The default is logrus.StandardLogger().
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock signing configurations use for issuance and
// validation.  It only has an effect on a ConfigRegistry.
func WithClock(clock jwt.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIssuedAtSkew sets how far in the past a Manager places "iat".
// Zero issues tokens at the current time.
func WithIssuedAtSkew(d time.Duration) Option {
	return func(o *options) {
		o.issuedAtSkew = d
	}
}

// WithLeeway sets the clock skew temporal constraints of a TypeRegistry's
// declarative types tolerate.
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		o.leeway = d
	}
}

// CreateOption adds claims or headers to a token being created.  Options
// are applied in the order given; a later value for the same name wins.
type CreateOption func(*Builder)

// WithClaim sets a claim on the created token.
func WithClaim(name string, value interface{}) CreateOption {
	return func(b *Builder) {
		b.WithClaim(name, value)
	}
}

// WithClaims sets every claim in m, in sorted key order.
func WithClaims(m map[string]interface{}) CreateOption {
	return func(b *Builder) {
		for _, k := range sortedKeys(m) {
			b.WithClaim(k, m[k])
		}
	}
}

// WithHeader sets a protected header on the created token.
func WithHeader(name string, value interface{}) CreateOption {
	return func(b *Builder) {
		b.WithHeader(name, value)
	}
}

// WithHeaders sets every header in m, in sorted key order.
func WithHeaders(m map[string]interface{}) CreateOption {
	return func(b *Builder) {
		for _, k := range sortedKeys(m) {
			b.WithHeader(k, m[k])
		}
	}
}
