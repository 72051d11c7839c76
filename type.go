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
	"sort"
	"time"
)

// TokenType describes a class of tokens: the defaults applied when one is
// created and the constraints checked when one is parsed.
type TokenType interface {
	// Name is the name the type is registered under.
	Name() string
	// ConfigureBuilder applies the type's default claims and headers.
	ConfigureBuilder(b *Builder)
	// Constraints returns a freshly built list of rules for config.
	Constraints(config *SigningConfiguration) []Constraint
}

// ConfigurationNamer is implemented by token types that sign and verify
// with a specific configuration instead of the registry default.
type ConfigurationNamer interface {
	ConfigurationName() string
}

// BasicTypeName is the catalog name of BasicType.
const BasicTypeName = "basic"

// BasicType adds nothing to a token and only requires a valid signature.
type BasicType struct{}

// Name returns BasicTypeName.
func (BasicType) Name() string { return BasicTypeName }

// ConfigureBuilder does nothing.
func (BasicType) ConfigureBuilder(*Builder) {}

// Constraints requires the signature to verify under config.
func (BasicType) Constraints(config *SigningConfiguration) []Constraint {
	return []Constraint{SignedWith(config.Signer(), config.VerificationKey())}
}

// TypeOptions declare a ConfigurableType.  Zero values are not applied.
type TypeOptions struct {
	// Configuration names the signing configuration; empty uses the default.
	Configuration string
	Claims        map[string]interface{}
	Headers       map[string]interface{}
	Issuer        string
	ID            string
	Audience      string
	Subject       string
	// IssuedAt, UsedAfter and Exp are offsets in seconds from the time of
	// issuance for "iat", "nbf" and "exp".
	IssuedAt  int64
	UsedAfter int64
	Exp       int64
	// Leeway is the clock skew tolerated by the temporal constraint.
	Leeway time.Duration
}

// ConfigurableType is a TokenType driven entirely by TypeOptions.
type ConfigurableType struct {
	BasicType
	name    string
	options TypeOptions
}

var (
	_ TokenType          = BasicType{}
	_ TokenType          = (*ConfigurableType)(nil)
	_ ConfigurationNamer = (*ConfigurableType)(nil)
)

// NewConfigurableType creates a type named name.
func NewConfigurableType(name string, options TypeOptions) *ConfigurableType {
	return &ConfigurableType{name: name, options: options}
}

// Name returns the type name.
func (t *ConfigurableType) Name() string { return t.name }

// ConfigurationName returns the configured signing configuration name.
func (t *ConfigurableType) ConfigurationName() string { return t.options.Configuration }

// Options returns a copy of the type's options.
func (t *ConfigurableType) Options() TypeOptions { return t.options }

// builderHandlers are applied in this order.  Subject comes after the
// manager has set its own default subject, so it overrides it, and the
// time offsets come last.
var builderHandlers = []struct {
	option string
	apply  func(b *Builder, o *TypeOptions)
}{
	{"claims", func(b *Builder, o *TypeOptions) {
		for _, k := range sortedKeys(o.Claims) {
			b.WithClaim(k, o.Claims[k])
		}
	}},
	{"headers", func(b *Builder, o *TypeOptions) {
		for _, k := range sortedKeys(o.Headers) {
			b.WithHeader(k, o.Headers[k])
		}
	}},
	{"issuer", func(b *Builder, o *TypeOptions) {
		if o.Issuer != "" {
			b.IssuedBy(o.Issuer)
		}
	}},
	{"id", func(b *Builder, o *TypeOptions) {
		if o.ID != "" {
			b.IdentifiedBy(o.ID)
		}
	}},
	{"audience", func(b *Builder, o *TypeOptions) {
		if o.Audience != "" {
			b.PermittedFor(o.Audience)
		}
	}},
	{"subject", func(b *Builder, o *TypeOptions) {
		if o.Subject != "" {
			b.RelatedTo(o.Subject)
		}
	}},
	{"issued_at", func(b *Builder, o *TypeOptions) {
		if o.IssuedAt != 0 {
			b.IssuedAt(offsetFrom(b.Now(), o.IssuedAt))
		}
	}},
	{"used_after", func(b *Builder, o *TypeOptions) {
		if o.UsedAfter != 0 {
			b.CanOnlyBeUsedAfter(offsetFrom(b.Now(), o.UsedAfter))
		}
	}},
	{"exp", func(b *Builder, o *TypeOptions) {
		if o.Exp != 0 {
			b.ExpiresAt(offsetFrom(b.Now(), o.Exp))
		}
	}},
}

// ConfigureBuilder applies the type's options.
func (t *ConfigurableType) ConfigureBuilder(b *Builder) {
	for _, h := range builderHandlers {
		h.apply(b, &t.options)
	}
}

// Constraints returns, in order: signature, temporal validity, then
// subject, audience, issuer and id for whichever of them are configured.
func (t *ConfigurableType) Constraints(config *SigningConfiguration) []Constraint {
	constraints := t.BasicType.Constraints(config)
	constraints = append(constraints, LooseValidAt(config.Clock(), t.options.Leeway))
	if t.options.Subject != "" {
		constraints = append(constraints, RelatedTo(t.options.Subject))
	}
	if t.options.Audience != "" {
		constraints = append(constraints, PermittedFor(t.options.Audience))
	}
	if t.options.Issuer != "" {
		constraints = append(constraints, IssuedBy(t.options.Issuer))
	}
	if t.options.ID != "" {
		constraints = append(constraints, IdentifiedBy(t.options.ID))
	}
	return constraints
}

func offsetFrom(now time.Time, seconds int64) time.Time {
	return time.Unix(now.Unix()+seconds, 0)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
