package registry

import (
	"context"
	"errors"
	"testing"
)

type mapResolver map[string]string

func (m mapResolver) ResolveSecret(_ context.Context, ref string) (string, error) {
	v, ok := m[ref]
	if !ok {
		return "", errors.New("unknown ref " + ref)
	}
	return v, nil
}

type secretRuntime struct {
	StaticRuntime
	kind    string
	secrets mapResolver
}

func (r *secretRuntime) Start(_ context.Context, _ any, env StartEnv) error {
	return env.Components.Register(r.secrets, CapabilitySecrets, SecretsCapability(r.kind))
}

func startedProvider(t *testing.T, kind string, secrets mapResolver) *Integration {
	t.Helper()
	store := NewMemoryStore()
	inst := seedInstance(t, store, RequestStarting, `{}`)
	i := newTestIntegration(t, store, inst, &secretRuntime{kind: kind, secrets: secrets})
	if err := i.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	return i
}

func TestResolveSecret(t *testing.T) {
	t.Parallel()

	vault := startedProvider(t, "vault", mapResolver{"caldera#api_key": "from-vault"})
	aws := startedProvider(t, "aws_secrets", mapResolver{"caldera#api_key": "from-aws"})
	dir := staticDirectory{vault, aws}
	ctx := context.Background()

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "caldera#api_key", want: "from-vault"},
		{ref: "aws_secrets:caldera#api_key", want: "from-aws"},
		{ref: "Vault:caldera#api_key", want: "from-vault"},
		{ref: "gcp:caldera#api_key", wantErr: true},
		{ref: "vault:missing", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ResolveSecret(ctx, dir, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ResolveSecret(%q) expected error, got %q", tt.ref, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ResolveSecret(%q) = %q, %v, want %q", tt.ref, got, err, tt.want)
		}
	}

	if _, err := ResolveSecret(ctx, nil, "caldera#api_key"); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("ResolveSecret(nil directory) error = %v, want ErrComponentNotFound", err)
	}
}
