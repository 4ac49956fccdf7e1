package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// EngineMetrics is an aggregated view of debate activity over a window.
type EngineMetrics struct {
	Outcomes         map[string]int64 `json:"outcomes" yaml:"outcomes"`
	CapabilityCalls  int64            `json:"capability_calls" yaml:"capability_calls"`
	CapabilityErrors int64            `json:"capability_errors" yaml:"capability_errors"`
	Overrides        int64            `json:"router_overrides" yaml:"router_overrides"`
}

// QueryService queries recorded debate metrics back out of Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a query service against the given Prometheus server.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// scalarSum runs an instant query and returns the first sample value, or 0
// when the series does not exist yet.
func (q *QueryService) scalarSum(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}

// GetEngineMetrics aggregates session outcomes and capability health.
func (q *QueryService) GetEngineMetrics(ctx context.Context) (*EngineMetrics, error) {
	metrics := &EngineMetrics{
		Outcomes: make(map[string]int64),
	}

	outcomeResult, _, err := q.queryAPI.Query(ctx,
		`sum by (kind) (debate_session_outcomes_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	if vector, ok := outcomeResult.(model.Vector); ok {
		for _, sample := range vector {
			if kind, ok := sample.Metric["kind"]; ok {
				metrics.Outcomes[string(kind)] = int64(sample.Value)
			}
		}
	}

	calls, err := q.scalarSum(ctx, `sum(debate_capability_calls_total)`)
	if err != nil {
		return nil, err
	}
	metrics.CapabilityCalls = int64(calls)

	errors, err := q.scalarSum(ctx, `sum(debate_capability_calls_total{status="error"})`)
	if err != nil {
		return nil, err
	}
	metrics.CapabilityErrors = int64(errors)

	overrides, err := q.scalarSum(ctx, `sum(debate_router_overrides_total)`)
	if err != nil {
		return nil, err
	}
	metrics.Overrides = int64(overrides)

	return metrics, nil
}

// GetCapabilityLatency returns the mean call duration per capability kind
// over the given window.
func (q *QueryService) GetCapabilityLatency(ctx context.Context, window time.Duration) (map[string]float64, error) {
	query := fmt.Sprintf(
		`sum by (kind) (rate(debate_capability_duration_seconds_sum[%s])) / sum by (kind) (rate(debate_capability_duration_seconds_count[%s]))`,
		model.Duration(window), model.Duration(window))
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query capability latency: %w", err)
	}

	out := make(map[string]float64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if kind, ok := sample.Metric["kind"]; ok {
				out[string(kind)] = float64(sample.Value)
			}
		}
	}
	return out, nil
}
