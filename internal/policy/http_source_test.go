package policy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_ListPolicies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/namespaces/production/policies", r.URL.Path)
		fmt.Fprint(w, `{"items": [
			{
				"target_id": "web-frontend",
				"query": {"service_name": "web-frontend", "window_length": 15},
				"thresholds": {"max_spike_multiplier": 4.0},
				"scaling": {
					"min_replicas": 2,
					"max_replicas": 20,
					"workload_per_replica": 250.5,
					"removal_fraction": 0.25,
					"cooldown_seconds": 600
				}
			}
		]}`)
	}))
	defer server.Close()

	source := NewHTTPSource(HTTPSourceConfig{Endpoint: server.URL})
	defer source.Close()

	policies, err := source.ListPolicies(context.Background(), "production")
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.Equal(t, "web-frontend", p.TargetID)
	assert.Equal(t, 15, p.Query.WindowLength)
	assert.Equal(t, 4.0, p.Thresholds.MaxSpikeMultiplier)
	assert.Equal(t, defaultMaxHistoricalMult, p.Thresholds.MaxHistoricalMultiplier)
	assert.Equal(t, 2, p.Scaling.MinReplicas)
	assert.Equal(t, 20, p.Scaling.MaxReplicas)
	assert.Equal(t, 250.5, p.Scaling.WorkloadPerReplica)
	assert.Equal(t, 0.25, p.Scaling.RemovalFraction)
	assert.Equal(t, 10*time.Minute, p.Scaling.Cooldown)
}

func TestHTTPSource_ListPoliciesAppliesDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [
			{"target_id": "api-backend", "query": {"service_name": "api-backend"}}
		]}`)
	}))
	defer server.Close()

	source := NewHTTPSource(HTTPSourceConfig{Endpoint: server.URL})
	defer source.Close()

	policies, err := source.ListPolicies(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.Equal(t, defaultWindowLength, p.Query.WindowLength)
	assert.Equal(t, defaultMinReplicas, p.Scaling.MinReplicas)
	assert.Equal(t, defaultMaxReplicas, p.Scaling.MaxReplicas)
	assert.Equal(t, defaultWorkloadPerReplica, p.Scaling.WorkloadPerReplica)
	assert.Equal(t, defaultRemovalFraction, p.Scaling.RemovalFraction)
	assert.Equal(t, time.Duration(defaultCooldownSeconds)*time.Second, p.Scaling.Cooldown)
}

func TestHTTPSource_ListPoliciesSkipsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [
			{"target_id": "", "query": {"service_name": "nameless"}},
			{"target_id": "Bad_ID!", "query": {"service_name": "bad"}},
			{"target_id": "inverted", "query": {"service_name": "inverted"},
				"scaling": {"min_replicas": 5, "max_replicas": 2}},
			{"target_id": "good-target", "query": {"service_name": "good"}}
		]}`)
	}))
	defer server.Close()

	source := NewHTTPSource(HTTPSourceConfig{Endpoint: server.URL})
	defer source.Close()

	policies, err := source.ListPolicies(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "good-target", policies[0].TargetID)
}

func TestHTTPSource_ListPoliciesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	source := NewHTTPSource(HTTPSourceConfig{Endpoint: server.URL})
	defer source.Close()

	policies, err := source.ListPolicies(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestHTTPSource_ListPoliciesErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expectedErr error
	}{
		{
			name: "backend failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			expectedErr: ErrListFailed,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
			expectedErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			source := NewHTTPSource(HTTPSourceConfig{Endpoint: server.URL})
			defer source.Close()

			_, err := source.ListPolicies(context.Background(), "default")
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
