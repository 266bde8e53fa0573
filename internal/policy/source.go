package policy

import (
	"context"
	"errors"

	"github.com/predictops/autoscaler/pkg/models"
)

var (
	ErrListFailed      = errors.New("policy listing failed")
	ErrInvalidResponse = errors.New("invalid response from policy source")
)

// Source retrieves the declarative per-target policies. An empty result is
// not an error, merely an empty monitored set.
type Source interface {
	ListPolicies(ctx context.Context, namespace string) ([]models.Policy, error)
	Close() error
}
