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

// Package server exposes token creation and verification over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/skandragon/jwtkit"
)

// KeySource looks up signing configurations for publishing public keys.
type KeySource interface {
	GetConfiguration(name string) (*jwtkit.SigningConfiguration, error)
}

// Handler serves the token endpoints.
type Handler struct {
	tokens jwtkit.TokenManager
	keys   KeySource
	logger logrus.FieldLogger
}

// NewHandler creates a handler.
func NewHandler(tokens jwtkit.TokenManager, keys KeySource, logger logrus.FieldLogger) *Handler {
	return &Handler{
		tokens: tokens,
		keys:   keys,
		logger: logger,
	}
}

// CreateRequest is the body of a token creation request.  Claims and
// headers are applied in sorted key order.
type CreateRequest struct {
	Claims  map[string]interface{} `json:"claims"`
	Headers map[string]interface{} `json:"headers"`
}

// CreateResponse carries the signed token.
type CreateResponse struct {
	Token string `json:"token"`
}

// VerifyRequest is the body of a token verification request.
type VerifyRequest struct {
	Token          string   `json:"token" binding:"required"`
	RequiredClaims []string `json:"required_claims"`
}

// VerifyResponse carries the verified token's contents.
type VerifyResponse struct {
	Headers map[string]interface{} `json:"headers"`
	Claims  map[string]interface{} `json:"claims"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewRouter returns a gin engine with all routes registered.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	if len(corsOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = corsOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.MaxAge = 12 * time.Hour
		r.Use(cors.New(corsConfig))
	}

	v1 := r.Group("/v1")
	v1.POST("/tokens/:type", h.Create)
	v1.POST("/tokens/:type/verify", h.Verify)
	v1.GET("/configurations/:name/jwks", h.JWKS)
	return r
}

// Create issues a token of the type named in the path.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
			return
		}
	}

	tok, err := h.tokens.Create(c.Param("type"), jwtkit.WithClaims(req.Claims), jwtkit.WithHeaders(req.Headers))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateResponse{Token: tok.String()})
}

// Verify parses and validates a token against the type named in the path.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	tok, err := h.tokens.ParseTokenWithClaims(req.Token, c.Param("type"), req.RequiredClaims...)
	if err != nil {
		h.fail(c, err)
		return
	}

	headers, err := tok.HeaderMap()
	if err != nil {
		h.fail(c, err)
		return
	}
	claims, err := tok.ClaimMap()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{Headers: headers, Claims: claims})
}

// JWKS publishes the public keys of a signing configuration.
func (h *Handler) JWKS(c *gin.Context) {
	config, err := h.keys.GetConfiguration(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	set, err := config.PublicKeys()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("route", c.FullPath()).Error("request failed")
	}
	c.JSON(status, ErrorResponse{Error: kind, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, jwtkit.ErrUnknownType):
		return http.StatusNotFound, "unknown_type"
	case errors.Is(err, jwtkit.ErrUnknownConfiguration):
		return http.StatusNotFound, "unknown_configuration"
	case errors.Is(err, jwtkit.ErrMalformedToken):
		return http.StatusBadRequest, "malformed_token"
	case errors.Is(err, jwtkit.ErrConstraintViolation):
		return http.StatusUnauthorized, "constraint_violation"
	case errors.Is(err, jwtkit.ErrInvalidTokenType):
		return http.StatusUnprocessableEntity, "invalid_token_type"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("handled request")
	}
}

// Serve runs the router on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, router http.Handler, logger logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
