package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/predictops/autoscaler/internal/logger"
	"github.com/predictops/autoscaler/pkg/models"
)

const (
	defaultWindowLength = 10
	signatureName       = "serving_default"

	// Model inputs are normalized into this range before inference.
	scaleRangeMin = -1.0
	scaleRangeMax = 1.0
)

// ServingPredictor talks to a TF-Serving-style model server over its REST
// predict API. The input and output tensor names are resolved once from the
// model metadata at construction time; a model exposing more than one slot
// per direction is rejected there rather than silently picking one.
//
// Inference calls are serialized: the underlying model handle is assumed
// not to be safe for concurrent use.
type ServingPredictor struct {
	client       *http.Client
	baseURL      string
	modelName    string
	windowLength int

	inputName  string
	outputName string

	inferMu sync.Mutex
}

type ServingConfig struct {
	BaseURL      string
	ModelName    string
	Timeout      time.Duration
	WindowLength int
}

func NewServingPredictor(ctx context.Context, cfg ServingConfig) (*ServingPredictor, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	windowLength := cfg.WindowLength
	if windowLength <= 0 {
		windowLength = defaultWindowLength
	}

	p := &ServingPredictor{
		client:       &http.Client{Timeout: timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		modelName:    cfg.ModelName,
		windowLength: windowLength,
	}

	if err := p.resolveSignature(ctx); err != nil {
		return nil, err
	}

	logger.Infof("Model %q loaded: input=%s output=%s window=%d",
		p.modelName, p.inputName, p.outputName, p.windowLength)

	return p, nil
}

type metadataResponse struct {
	Metadata struct {
		SignatureDef struct {
			SignatureDef map[string]struct {
				Inputs  map[string]json.RawMessage `json:"inputs"`
				Outputs map[string]json.RawMessage `json:"outputs"`
			} `json:"signature_def"`
		} `json:"signature_def"`
	} `json:"metadata"`
}

func (p *ServingPredictor) resolveSignature(ctx context.Context) error {
	metadataURL := fmt.Sprintf("%s/v1/models/%s/metadata", p.baseURL, p.modelName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: metadata returned status %d", ErrModelUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	var metadata metadataResponse
	if err := json.Unmarshal(body, &metadata); err != nil {
		return fmt.Errorf("%w: malformed metadata: %v", ErrModelUnavailable, err)
	}

	signature, ok := metadata.Metadata.SignatureDef.SignatureDef[signatureName]
	if !ok {
		return fmt.Errorf("%w: model has no %q signature", ErrAmbiguousSignature, signatureName)
	}

	if len(signature.Inputs) != 1 {
		return fmt.Errorf("%w: expected exactly 1 input slot, found %d",
			ErrAmbiguousSignature, len(signature.Inputs))
	}
	if len(signature.Outputs) != 1 {
		return fmt.Errorf("%w: expected exactly 1 output slot, found %d",
			ErrAmbiguousSignature, len(signature.Outputs))
	}

	for name := range signature.Inputs {
		p.inputName = name
	}
	for name := range signature.Outputs {
		p.outputName = name
	}

	return nil
}

type predictRequest struct {
	SignatureName string                   `json:"signature_name"`
	Inputs        map[string][][][]float64 `json:"inputs"`
}

type predictResponse struct {
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error"`
}

func (p *ServingPredictor) Predict(ctx context.Context, window models.HistoryWindow) (float64, error) {
	fitted := FitWindow(window, p.windowLength)

	scaler := NewMinMaxScaler(scaleRangeMin, scaleRangeMax)
	scaled := scaler.FitTransform(fitted)

	raw, err := p.infer(ctx, scaled)
	if err != nil {
		return 0, err
	}

	return scaler.Inverse(raw), nil
}

func (p *ServingPredictor) infer(ctx context.Context, scaled []float64) (float64, error) {
	p.inferMu.Lock()
	defer p.inferMu.Unlock()

	// Input tensor shape is (1, windowLength, 1).
	sequence := make([][]float64, len(scaled))
	for i, v := range scaled {
		sequence[i] = []float64{v}
	}

	reqBody, err := json.Marshal(predictRequest{
		SignatureName: signatureName,
		Inputs:        map[string][][][]float64{p.inputName: {sequence}},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}

	predictURL := fmt.Sprintf("%s/v1/models/%s:predict", p.baseURL, p.modelName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, predictURL, bytes.NewReader(reqBody))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPredictionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: predict returned status %d: %s",
			ErrPredictionFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: malformed response: %v", ErrPredictionFailed, err)
	}
	if parsed.Error != "" {
		return 0, fmt.Errorf("%w: %s", ErrPredictionFailed, parsed.Error)
	}

	return extractScalar(parsed.Outputs)
}

// extractScalar pulls the single forecast value out of the response tensor.
// The server emits either the bare tensor ([[x]]) or a map keyed by output
// name when the signature has named outputs.
func extractScalar(outputs json.RawMessage) (float64, error) {
	var tensor [][]float64
	if err := json.Unmarshal(outputs, &tensor); err == nil {
		if len(tensor) > 0 && len(tensor[0]) > 0 {
			return tensor[0][0], nil
		}
		return 0, fmt.Errorf("%w: empty output tensor", ErrPredictionFailed)
	}

	var named map[string][][]float64
	if err := json.Unmarshal(outputs, &named); err == nil {
		for _, tensor := range named {
			if len(tensor) > 0 && len(tensor[0]) > 0 {
				return tensor[0][0], nil
			}
		}
	}

	return 0, fmt.Errorf("%w: unrecognized output tensor shape", ErrPredictionFailed)
}

func (p *ServingPredictor) WindowLength() int {
	return p.windowLength
}

func (p *ServingPredictor) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
