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

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/skandragon/jwtkit"
)

// NewIssueCmd creates the issue command.
func NewIssueCmd() *cobra.Command {
	var claims, headers []string

	cmd := &cobra.Command{
		Use:   "issue TYPE",
		Short: "Issue a signed token of the given type",
		Long: `Issue a signed token of the given type and print it.

Claims and headers are given as name=value.  A value that parses as JSON
(a number, true, false, an array or an object) is used as such; anything
else is a string.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			manager, err := env.provider.Manager()
			if err != nil {
				return err
			}

			var opts []jwtkit.CreateOption
			for _, kv := range claims {
				name, value, err := parseAssignment(kv)
				if err != nil {
					return fmt.Errorf("--claim: %w", err)
				}
				opts = append(opts, jwtkit.WithClaim(name, value))
			}
			for _, kv := range headers {
				name, value, err := parseAssignment(kv)
				if err != nil {
					return fmt.Errorf("--header: %w", err)
				}
				opts = append(opts, jwtkit.WithHeader(name, value))
			}

			tok, err := manager.Create(args[0], opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.String())
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&claims, "claim", nil, "claim to set, as name=value (repeatable)")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "protected header to set, as name=value (repeatable)")
	return cmd
}

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var required []string
	var output string

	cmd := &cobra.Command{
		Use:   "verify TYPE TOKEN",
		Short: "Verify a token against the given type",
		Long: `Verify a token against the rules of the given type and print its
headers and claims.  Use "-" as TOKEN to read it from standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("unsupported output format %q", output)
			}
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			manager, err := env.provider.Manager()
			if err != nil {
				return err
			}

			raw := args[1]
			if raw == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = strings.TrimSpace(string(b))
			}

			tok, err := manager.ParseTokenWithClaims(raw, args[0], required...)
			if err != nil {
				return err
			}
			headers, err := tok.HeaderMap()
			if err != nil {
				return err
			}
			claims, err := tok.ClaimMap()
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), output, map[string]interface{}{
				"headers": headers,
				"claims":  claims,
			})
		},
	}

	cmd.Flags().StringArrayVar(&required, "require", nil, "claim that must be present (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured signing configurations and token types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			manager, err := env.provider.Manager()
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), "yaml", map[string]interface{}{
				"default_configuration": manager.Configurations().DefaultName(),
				"configurations":        manager.Configurations().Names(),
				"types":                 manager.Types().Names(),
			})
		},
	}
}

func parseAssignment(kv string) (string, interface{}, error) {
	name, value, found := strings.Cut(kv, "=")
	if !found || name == "" {
		return "", nil, fmt.Errorf("expected name=value, got %q", kv)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(value), &v); err == nil && v != nil {
		if _, isString := v.(string); !isString {
			return name, v, nil
		}
	}
	return name, value, nil
}

func writeDocument(w io.Writer, format string, doc interface{}) error {
	var (
		b   []byte
		err error
	)
	switch format {
	case "json":
		b, err = json.MarshalIndent(doc, "", "  ")
		if err == nil {
			b = append(b, '\n')
		}
	default:
		b, err = yaml.Marshal(doc)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
