package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictops/autoscaler/pkg/models"
)

func metadataBody(inputs, outputs []string) string {
	inputSlots := map[string]any{}
	for _, name := range inputs {
		inputSlots[name] = map[string]any{"dtype": "DT_FLOAT"}
	}
	outputSlots := map[string]any{}
	for _, name := range outputs {
		outputSlots[name] = map[string]any{"dtype": "DT_FLOAT"}
	}

	body, _ := json.Marshal(map[string]any{
		"metadata": map[string]any{
			"signature_def": map[string]any{
				"signature_def": map[string]any{
					"serving_default": map[string]any{
						"inputs":  inputSlots,
						"outputs": outputSlots,
					},
				},
			},
		},
	})
	return string(body)
}

func newModelServer(t *testing.T, predict http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/forecast/metadata", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, metadataBody([]string{"lstm_input"}, []string{"dense_output"}))
	})
	mux.HandleFunc("/v1/models/forecast:predict", predict)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewServingPredictor_ResolvesSignature(t *testing.T) {
	server := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {})

	p, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:      server.URL,
		ModelName:    "forecast",
		WindowLength: 5,
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "lstm_input", p.inputName)
	assert.Equal(t, "dense_output", p.outputName)
	assert.Equal(t, 5, p.WindowLength())
}

func TestNewServingPredictor_AmbiguousSignature(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models/forecast/metadata", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, metadataBody([]string{"input_a", "input_b"}, []string{"output"}))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:   server.URL,
		ModelName: "forecast",
	})
	assert.ErrorIs(t, err, ErrAmbiguousSignature)
}

func TestNewServingPredictor_ServerDown(t *testing.T) {
	_, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:   "http://127.0.0.1:1",
		ModelName: "forecast",
		Timeout:   500 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestServingPredictor_Predict(t *testing.T) {
	var gotRequest predictRequest

	server := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		// Model echoes the midpoint of the feature range.
		fmt.Fprint(w, `{"outputs": [[0.0]]}`)
	})

	p, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:      server.URL,
		ModelName:    "forecast",
		WindowLength: 3,
	})
	require.NoError(t, err)
	defer p.Close()

	forecast, err := p.Predict(context.Background(), models.HistoryWindow{100, 150, 200})
	require.NoError(t, err)

	// 0.0 in [-1,1] maps back to the middle of the observed range.
	assert.InDelta(t, 150.0, forecast, 1e-9)

	assert.Equal(t, "serving_default", gotRequest.SignatureName)
	sequence := gotRequest.Inputs["lstm_input"]
	require.Len(t, sequence, 1)
	require.Len(t, sequence[0], 3)
	assert.InDelta(t, -1.0, sequence[0][0][0], 1e-9)
	assert.InDelta(t, 0.0, sequence[0][1][0], 1e-9)
	assert.InDelta(t, 1.0, sequence[0][2][0], 1e-9)
}

func TestServingPredictor_PredictNamedOutputs(t *testing.T) {
	server := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"outputs": {"dense_output": [[1.0]]}}`)
	})

	p, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:      server.URL,
		ModelName:    "forecast",
		WindowLength: 3,
	})
	require.NoError(t, err)
	defer p.Close()

	forecast, err := p.Predict(context.Background(), models.HistoryWindow{100, 150, 200})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, forecast, 1e-9)
}

func TestServingPredictor_PredictPadsShortWindow(t *testing.T) {
	var gotRequest predictRequest

	server := newModelServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		fmt.Fprint(w, `{"outputs": [[0.0]]}`)
	})

	p, err := NewServingPredictor(context.Background(), ServingConfig{
		BaseURL:      server.URL,
		ModelName:    "forecast",
		WindowLength: 5,
	})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Predict(context.Background(), models.HistoryWindow{100, 200})
	require.NoError(t, err)
	require.Len(t, gotRequest.Inputs["lstm_input"][0], 5)
}

func TestServingPredictor_PredictErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expectedErr error
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			},
			expectedErr: ErrPredictionFailed,
		},
		{
			name: "inference error in body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"error": "input tensor shape mismatch"}`)
			},
			expectedErr: ErrPredictionFailed,
		},
		{
			name: "empty output tensor",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"outputs": []}`)
			},
			expectedErr: ErrPredictionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newModelServer(t, tt.handler)

			p, err := NewServingPredictor(context.Background(), ServingConfig{
				BaseURL:   server.URL,
				ModelName: "forecast",
			})
			require.NoError(t, err)
			defer p.Close()

			_, err = p.Predict(context.Background(), models.HistoryWindow{100, 150, 200})
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
