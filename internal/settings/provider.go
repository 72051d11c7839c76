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

package settings

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/skandragon/jwtkit"
)

// Provider builds the registries and token manager from configuration.
// Components are built on first request and cached.
type Provider struct {
	config *Config
	logger logrus.FieldLogger
	opts   []jwtkit.Option

	configRegistry *jwtkit.ConfigRegistry
	typeRegistry   *jwtkit.TypeRegistry
	manager        *jwtkit.Manager
}

// NewProvider creates a provider.  opts are passed to every registry and
// the manager, after the options derived from config.
func NewProvider(config *Config, logger logrus.FieldLogger, opts ...jwtkit.Option) *Provider {
	return &Provider{
		config: config,
		logger: logger,
		opts:   opts,
	}
}

func (p *Provider) options() ([]jwtkit.Option, error) {
	leeway, err := parseDuration(p.config.Leeway)
	if err != nil {
		return nil, fmt.Errorf("leeway: %w", err)
	}
	opts := []jwtkit.Option{
		jwtkit.WithLogger(p.logger),
		jwtkit.WithLeeway(leeway),
	}
	if p.config.IssuedAtSkew != "" {
		skew, err := parseDuration(p.config.IssuedAtSkew)
		if err != nil {
			return nil, fmt.Errorf("issued_at_skew: %w", err)
		}
		opts = append(opts, jwtkit.WithIssuedAtSkew(skew))
	}
	return append(opts, p.opts...), nil
}

// ConfigRegistry returns the configuration registry with a factory for
// every configured signing configuration.
func (p *Provider) ConfigRegistry() (*jwtkit.ConfigRegistry, error) {
	if p.configRegistry != nil {
		return p.configRegistry, nil
	}

	opts, err := p.options()
	if err != nil {
		return nil, err
	}

	registry := jwtkit.NewConfigRegistry(p.config.DefaultConfiguration, opts...)
	for name, sc := range p.config.Configurations {
		factory, err := NewConfigFactory(name, sc)
		if err != nil {
			return nil, fmt.Errorf("failed to create configuration %q: %w", name, err)
		}
		registry.AddConfigFactory(factory)
	}

	p.configRegistry = registry
	return registry, nil
}

// TypeRegistry returns the type registry with every declared type.
func (p *Provider) TypeRegistry() (*jwtkit.TypeRegistry, error) {
	if p.typeRegistry != nil {
		return p.typeRegistry, nil
	}

	opts, err := p.options()
	if err != nil {
		return nil, err
	}

	declared := make(map[string]jwtkit.TypeOptions, len(p.config.Types))
	for name, tc := range p.config.Types {
		options, err := tc.TypeOptions()
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		declared[name] = options
	}

	p.typeRegistry = jwtkit.NewTypeRegistry(declared, opts...)
	return p.typeRegistry, nil
}

// Manager returns the token manager.
func (p *Provider) Manager() (*jwtkit.Manager, error) {
	if p.manager != nil {
		return p.manager, nil
	}

	configs, err := p.ConfigRegistry()
	if err != nil {
		return nil, err
	}
	types, err := p.TypeRegistry()
	if err != nil {
		return nil, err
	}
	opts, err := p.options()
	if err != nil {
		return nil, err
	}

	p.manager = jwtkit.NewManager(configs, types, opts...)
	return p.manager, nil
}

// NewConfigFactory converts a SigningConfig into a factory, reading key
// files as needed.
func NewConfigFactory(name string, sc SigningConfig) (*jwtkit.ConfigFactory, error) {
	signingKey, err := sc.SigningKey.load()
	if err != nil {
		return nil, fmt.Errorf("signing_key: %w", err)
	}
	verificationKey, err := sc.VerificationKey.load()
	if err != nil {
		return nil, fmt.Errorf("verification_key: %w", err)
	}
	return jwtkit.NewConfigFactory(name, sc.IsAsymmetric(), jwtkit.FactoryOptions{
		Signer:               sc.Signer,
		SigningKey:           signingKey,
		SigningKeyPassphrase: sc.SigningKey.Passphrase,
		VerificationKey:      verificationKey,
	}), nil
}

func (k KeyConfig) load() (string, error) {
	if k.File == "" {
		return k.Content, nil
	}
	data, err := os.ReadFile(k.File)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TypeOptions converts a TypeConfig into ConfigurableType options.
func (tc TypeConfig) TypeOptions() (jwtkit.TypeOptions, error) {
	leeway, err := parseDuration(tc.Leeway)
	if err != nil {
		return jwtkit.TypeOptions{}, fmt.Errorf("leeway: %w", err)
	}
	return jwtkit.TypeOptions{
		Configuration: tc.Configuration,
		Claims:        tc.Claims,
		Headers:       tc.Headers,
		Issuer:        tc.Issuer,
		ID:            tc.ID,
		Audience:      tc.Audience,
		Subject:       tc.Subject,
		IssuedAt:      tc.IssuedAt,
		UsedAfter:     tc.UsedAfter,
		Exp:           tc.Exp,
		Leeway:        leeway,
	}, nil
}

// NewLogger creates a logrus logger from LogConfig.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}
	return logger, nil
}
