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
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment variables.  A double underscore separates
// nested keys: JWTKIT_LOG__LEVEL sets log.level.
const EnvPrefix = "JWTKIT_"

const (
	defaultConfigurationName = "default"
	defaultListen            = ":8080"
)

// Load reads configuration from path (if not empty), then the environment,
// then any changed flags in flags (if not nil).  Later sources override
// earlier ones.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		mapping := flagMapping()
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := mapping[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported configuration file type %q", filepath.Ext(path))
	}
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func (c *Config) applyDefaults() {
	if c.DefaultConfiguration == "" {
		c.DefaultConfiguration = defaultConfigurationName
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
}

// Validate checks cross references and required fields.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Configurations) == 0 {
		errs = append(errs, fmt.Errorf("at least one configuration is required"))
	} else if _, ok := c.Configurations[c.DefaultConfiguration]; !ok {
		errs = append(errs, fmt.Errorf("default configuration %q is not defined", c.DefaultConfiguration))
	}

	for name, sc := range c.Configurations {
		if sc.Signer == "" {
			errs = append(errs, fmt.Errorf("configuration %q: signer is required", name))
		}
		if sc.SigningKey.Content != "" && sc.SigningKey.File != "" {
			errs = append(errs, fmt.Errorf("configuration %q: signing_key has both content and file", name))
		}
		if sc.VerificationKey.Content != "" && sc.VerificationKey.File != "" {
			errs = append(errs, fmt.Errorf("configuration %q: verification_key has both content and file", name))
		}
	}

	for name, tc := range c.Types {
		if _, err := parseDuration(tc.Leeway); err != nil {
			errs = append(errs, fmt.Errorf("type %q: leeway: %w", name, err))
		}
		if tc.Configuration == "" {
			continue
		}
		if _, ok := c.Configurations[tc.Configuration]; !ok {
			errs = append(errs, fmt.Errorf("type %q: configuration %q is not defined", name, tc.Configuration))
		}
	}

	if _, err := parseDuration(c.Leeway); err != nil {
		errs = append(errs, fmt.Errorf("leeway: %w", err))
	}
	if _, err := parseDuration(c.IssuedAtSkew); err != nil {
		errs = append(errs, fmt.Errorf("issued_at_skew: %w", err))
	}

	return errors.Join(errs...)
}

// RegisterFlags registers a flag for every scalar configuration field that
// carries a usage tag.  "log.level" becomes "--log-level".
func RegisterFlags(flags *pflag.FlagSet) {
	walkFlags(reflect.TypeOf(Config{}), "", func(path string, field reflect.StructField) {
		name := flagName(path)
		if flags.Lookup(name) != nil {
			return
		}
		flags.String(name, "", field.Tag.Get("usage"))
	})
}

func flagMapping() map[string]string {
	mapping := make(map[string]string)
	walkFlags(reflect.TypeOf(Config{}), "", func(path string, _ reflect.StructField) {
		mapping[flagName(path)] = path
	})
	return mapping
}

func walkFlags(t reflect.Type, parent string, fn func(path string, field reflect.StructField)) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		path := tag
		if parent != "" {
			path = parent + "." + tag
		}
		switch {
		case field.Type.Kind() == reflect.Struct:
			walkFlags(field.Type, path, fn)
		case field.Type.Kind() == reflect.String && field.Tag.Get("usage") != "":
			fn(path, field)
		}
	}
}

func flagName(path string) string {
	return strings.ReplaceAll(strings.ReplaceAll(path, ".", "-"), "_", "-")
}
