package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensearch-project/opensearch-go/v2"
)

// New builds a client from cfg and fails fast when the cluster is
// unreachable or red.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: no addresses configured", ErrConnectionFailed)
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := Healthcheck(client)(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// Healthcheck reports the cluster as unhealthy when it cannot be reached
// or its status is red. Yellow is accepted: single-node clusters never
// allocate replicas.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := client.Cluster.Health(client.Cluster.Health.WithContext(ctx))
		if err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		defer drain(res)
		if res.IsError() {
			return fmt.Errorf("%w: %s", ErrHealthcheckFailed, res.Status())
		}

		var health struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		if health.Status == "red" {
			return fmt.Errorf("%w: cluster status is red", ErrHealthcheckFailed)
		}
		return nil
	}
}
