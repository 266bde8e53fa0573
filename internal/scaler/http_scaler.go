package scaler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
)

// HTTPScaler drives an orchestration backend exposing a scale subresource
// per workload: GET /workloads/<id>/scale reads the replica count,
// PATCH /workloads/<id>/scale sets it.
type HTTPScaler struct {
	client    *http.Client
	endpoint  string
	namespace string
}

type HTTPScalerConfig struct {
	Endpoint  string
	Namespace string
	Timeout   time.Duration
}

func NewHTTPScaler(cfg HTTPScalerConfig) *HTTPScaler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPScaler{
		client:    &http.Client{Timeout: timeout},
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		namespace: cfg.Namespace,
	}
}

type scaleResource struct {
	Replicas      int `json:"replicas"`
	ReadyReplicas int `json:"ready_replicas"`
}

func (s *HTTPScaler) scaleURL(targetID string) string {
	if s.namespace != "" {
		return fmt.Sprintf("%s/namespaces/%s/workloads/%s/scale", s.endpoint, s.namespace, targetID)
	}
	return fmt.Sprintf("%s/workloads/%s/scale", s.endpoint, targetID)
}

func (s *HTTPScaler) GetReplicas(ctx context.Context, targetID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.scaleURL(targetID), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create request: %v", ErrScalingFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrTargetNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status code %d", ErrScalingFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response: %v", ErrScalingFailed, err)
	}

	var scale scaleResource
	if err := json.Unmarshal(body, &scale); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}

	return scale.ReadyReplicas, nil
}

func (s *HTTPScaler) SetReplicas(ctx context.Context, targetID string, replicas int) error {
	if replicas < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidReplicas, replicas)
	}

	payload, err := json.Marshal(map[string]int{"replicas": replicas})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.scaleURL(targetID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrScalingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.WithTarget(targetID).Debugf("Patching replica count to %d", replicas)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrTargetNotFound
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: backend rejected replica count %d", ErrInvalidReplicas, replicas)
	default:
		return fmt.Errorf("%w: unexpected status code %d", ErrScalingFailed, resp.StatusCode)
	}
}

func (s *HTTPScaler) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
