package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
	"github.com/predictops/autoscaler/pkg/validation"
)

// Per-policy defaults matching what the policy store's schema leaves optional.
const (
	defaultWindowLength       = 10
	defaultMaxSpikeMult       = 3.0
	defaultMaxHistoricalMult  = 2.0
	defaultMinReplicas        = 1
	defaultMaxReplicas        = 10
	defaultWorkloadPerReplica = 100.0
	defaultRemovalFraction    = 0.5
	defaultCooldownSeconds    = 300
)

// HTTPSource lists policy documents from a configuration service:
// GET /namespaces/<ns>/policies returns {"items": [...]}.
type HTTPSource struct {
	client   *http.Client
	endpoint string
}

type HTTPSourceConfig struct {
	Endpoint string
	Timeout  time.Duration
}

func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSource{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// policyDocument is the wire shape of one policy entry. Optional fields take
// schema defaults; a document missing required fields is skipped, never fatal.
type policyDocument struct {
	TargetID string `json:"target_id"`
	Query    struct {
		ServiceName   string `json:"service_name"`
		QueryTemplate string `json:"query_template"`
		WindowLength  *int   `json:"window_length"`
	} `json:"query"`
	Thresholds struct {
		MaxSpikeMultiplier      *float64 `json:"max_spike_multiplier"`
		MaxHistoricalMultiplier *float64 `json:"max_historical_multiplier"`
	} `json:"thresholds"`
	Scaling struct {
		MinReplicas        *int     `json:"min_replicas"`
		MaxReplicas        *int     `json:"max_replicas"`
		WorkloadPerReplica *float64 `json:"workload_per_replica"`
		RemovalFraction    *float64 `json:"removal_fraction"`
		CooldownSeconds    *int     `json:"cooldown_seconds"`
	} `json:"scaling"`
}

type listResponse struct {
	Items []policyDocument `json:"items"`
}

func (s *HTTPSource) ListPolicies(ctx context.Context, namespace string) ([]models.Policy, error) {
	listURL := fmt.Sprintf("%s/namespaces/%s/policies", s.endpoint, namespace)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrListFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrListFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListFailed, err)
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	policies := make([]models.Policy, 0, len(list.Items))
	for _, doc := range list.Items {
		policy, err := buildPolicy(doc)
		if err != nil {
			logger.Warnf("Skipping malformed policy entry: %v", err)
			continue
		}
		policies = append(policies, policy)
	}

	return policies, nil
}

func buildPolicy(doc policyDocument) (models.Policy, error) {
	policy := models.Policy{
		TargetID: doc.TargetID,
		Query: models.MetricsQuery{
			ServiceName:   doc.Query.ServiceName,
			QueryTemplate: doc.Query.QueryTemplate,
			WindowLength:  intOr(doc.Query.WindowLength, defaultWindowLength),
		},
		Thresholds: models.ValidationThresholds{
			MaxSpikeMultiplier:      floatOr(doc.Thresholds.MaxSpikeMultiplier, defaultMaxSpikeMult),
			MaxHistoricalMultiplier: floatOr(doc.Thresholds.MaxHistoricalMultiplier, defaultMaxHistoricalMult),
		},
		Scaling: models.ScalingPolicy{
			MinReplicas:        intOr(doc.Scaling.MinReplicas, defaultMinReplicas),
			MaxReplicas:        intOr(doc.Scaling.MaxReplicas, defaultMaxReplicas),
			WorkloadPerReplica: floatOr(doc.Scaling.WorkloadPerReplica, defaultWorkloadPerReplica),
			RemovalFraction:    floatOr(doc.Scaling.RemovalFraction, defaultRemovalFraction),
			Cooldown:           time.Duration(intOr(doc.Scaling.CooldownSeconds, defaultCooldownSeconds)) * time.Second,
		},
	}

	if err := validation.ValidateTargetID(policy.TargetID); err != nil {
		return models.Policy{}, fmt.Errorf("invalid target_id %q: %w", policy.TargetID, err)
	}
	if err := validation.ValidateReplicaBounds(policy.Scaling.MinReplicas, policy.Scaling.MaxReplicas); err != nil {
		return models.Policy{}, fmt.Errorf("invalid replica bounds for target %q: %w", policy.TargetID, err)
	}
	if err := policy.Validate(); err != nil {
		return models.Policy{}, err
	}

	return policy, nil
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
