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

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardinalhq/bqrunner/bqjob"
	"github.com/cardinalhq/bqrunner/config"
	"github.com/cardinalhq/bqrunner/internal/gcpclient"
)

// newExecutor builds a job executor for the configured project.
func newExecutor(ctx context.Context, cfg config.BigQueryConfig) (*bqjob.Executor, error) {
	if cfg.Project == "" {
		return nil, errors.New("BigQuery project is not set (BQRUNNER_BIGQUERY_PROJECT)")
	}

	mgr, err := gcpclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP client manager: %w", err)
	}

	var opts []gcpclient.ClientOption
	switch {
	case cfg.NoAuth:
		opts = append(opts, gcpclient.WithoutAuthentication())
	case cfg.Impersonate != "":
		opts = append(opts, gcpclient.WithImpersonateServiceAccount(cfg.Impersonate))
	}

	req, err := mgr.NewRequester(ctx, cfg.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return bqjob.NewExecutor(req, cfg.JobConfig()), nil
}
