package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/open-bas/open-bas/internal/metrics"
)

// ErrComponentNotFound is returned when no started integration offers a capability.
var ErrComponentNotFound = errors.New("no started integration offers the requested component")

// RequestStarted asks every started integration for the request and returns the
// first match. Order between integrations offering the same capability is unspecified.
func RequestStarted[T any](integrations []*Integration, request ComponentRequest) (T, error) {
	var zero T

	var found []T
	for _, i := range integrations {
		if i == nil || i.Status() != StatusStarted {
			continue
		}
		matches, err := RequestComponent[T](i, request)
		if err != nil {
			metrics.ComponentRequestsTotal.WithLabelValues("ambiguous").Inc()
			return zero, fmt.Errorf("%s/%s: %w", i.FactoryKey(), i.ID(), err)
		}
		found = append(found, matches...)
	}

	if len(found) == 0 {
		metrics.ComponentRequestsTotal.WithLabelValues("not_found").Inc()
		return zero, fmt.Errorf("%w: %q", ErrComponentNotFound, string(request))
	}
	metrics.ComponentRequestsTotal.WithLabelValues("found").Inc()
	return found[0], nil
}

// RequestFromDirectory is RequestStarted over the integrations a Directory knows about.
func RequestFromDirectory[T any](d Directory, request ComponentRequest) (T, error) {
	if d == nil {
		var zero T
		return zero, fmt.Errorf("%w: %q (no directory)", ErrComponentNotFound, string(request))
	}
	return RequestStarted[T](d.StartedIntegrations(), request)
}

// ResolveSecret resolves a secret reference through a started credential provider.
// A "kind:" prefix, as in "vault:caldera#api_key", pins the provider kind; otherwise
// any provider offering the secrets capability answers.
func ResolveSecret(ctx context.Context, d Directory, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	request := ComponentRequest(CapabilitySecrets)
	if kind, rest, ok := strings.Cut(ref, ":"); ok && kind != "" && !strings.ContainsAny(kind, "/#") {
		request = ComponentRequest(SecretsCapability(kind))
		ref = rest
	}
	resolver, err := RequestFromDirectory[SecretResolver](d, request)
	if err != nil {
		return "", err
	}
	value, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", request, err)
	}
	return value, nil
}
