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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/skandragon/jwtkit/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the token HTTP server",
		Long: `Start an HTTP server that issues and verifies tokens.

Routes:
  POST /v1/tokens/:type                 issue a token
  POST /v1/tokens/:type/verify          verify a token
  GET  /v1/configurations/:name/jwks    public keys of a configuration`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			manager, err := env.provider.Manager()
			if err != nil {
				return fmt.Errorf("failed to create token manager: %w", err)
			}

			addr := env.config.Server.Listen
			if listen != "" {
				addr = listen
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if env.logger.GetLevel() < logrus.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}
			handler := server.NewHandler(manager, manager.Configurations(), env.logger)
			router := server.NewRouter(handler, env.config.Server.CORSOrigins)
			if err := server.Serve(ctx, addr, router, env.logger); err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			env.logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default: from config or :8080)")
	return cmd
}
