// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package gcpclient

import (
	"context"
	"fmt"
	"net/http"

	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// clientKey is used for caching HTTP clients.
type clientKey struct {
	ServiceAccountEmail string
	Unauthenticated     bool
}

// clientConfig holds configuration for creating a BigQuery HTTP client.
type clientConfig struct {
	ServiceAccountEmail string
	Unauthenticated     bool
}

// ClientOption is a functional option for GetBigQuery.
type ClientOption func(*clientConfig)

// WithImpersonateServiceAccount sets the service account email to impersonate.
func WithImpersonateServiceAccount(email string) ClientOption {
	return func(c *clientConfig) {
		c.ServiceAccountEmail = email
	}
}

// WithoutAuthentication skips credentials, for emulators and local testing.
func WithoutAuthentication() ClientOption {
	return func(c *clientConfig) {
		c.Unauthenticated = true
	}
}

// GetBigQuery returns an HTTP client authorized for the BigQuery API. Clients
// are cached per option set.
func (m *Manager) GetBigQuery(ctx context.Context, opts ...ClientOption) (*http.Client, error) {
	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	key := clientKey(cfg)
	m.RLock()
	client, ok := m.clients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()

	// Double-check after acquiring write lock
	if client, ok = m.clients[key]; ok {
		return client, nil
	}

	clientOpts := []option.ClientOption{option.WithScopes(bigquery.BigqueryScope)}

	switch {
	case cfg.Unauthenticated:
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	case cfg.ServiceAccountEmail != "":
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: cfg.ServiceAccountEmail,
			Scopes:          []string{bigquery.BigqueryScope},
		})
		if err != nil {
			return nil, fmt.Errorf("creating impersonated token source: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}

	client, _, err := htransport.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating BigQuery HTTP client: %w", err)
	}
	m.clients[key] = client

	return client, nil
}

// NewRequester returns a BigQuery requester for baseURL using a cached client.
func (m *Manager) NewRequester(ctx context.Context, baseURL string, opts ...ClientOption) (*HTTPRequester, error) {
	client, err := m.GetBigQuery(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewHTTPRequester(client, baseURL, m.tracer), nil
}
