package configstore

import (
	"testing"
	"time"
)

func TestVaultConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  VaultConfig
		wantErr bool
	}{
		{
			name: "token auth valid",
			config: VaultConfig{
				Address: "https://vault.example.com",
				Token:   "s.test",
			},
		},
		{
			name: "token auth missing token",
			config: VaultConfig{
				Address:  "https://vault.example.com",
				AuthType: VaultAuthTypeToken,
			},
			wantErr: true,
		},
		{
			name: "approle auth valid",
			config: VaultConfig{
				Address:         "https://vault.example.com",
				AuthType:        VaultAuthTypeAppRole,
				AppRoleRoleID:   "role-id",
				AppRoleSecretID: "secret-id",
			},
		},
		{
			name: "approle auth missing secret id",
			config: VaultConfig{
				Address:       "https://vault.example.com",
				AuthType:      VaultAuthTypeAppRole,
				AppRoleRoleID: "role-id",
			},
			wantErr: true,
		},
		{
			name: "invalid CA cert",
			config: VaultConfig{
				Address:      "https://vault.example.com",
				Token:        "s.test",
				TLSCACertPEM: "not-pem",
			},
			wantErr: true,
		},
		{
			name: "unsupported kv version",
			config: VaultConfig{
				Address:   "https://vault.example.com",
				Token:     "s.test",
				KVVersion: 3,
			},
			wantErr: true,
		},
		{
			name: "renew interval too short",
			config: VaultConfig{
				Address:       "https://vault.example.com",
				Token:         "s.test",
				RenewInterval: "1s",
			},
			wantErr: true,
		},
		{
			name: "missing address",
			config: VaultConfig{
				Token: "s.test",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestVaultConfigNormalizedDefaults(t *testing.T) {
	t.Parallel()

	cfg := VaultConfig{Address: " vault.example.com:8200/ ", KVMount: "/kv/"}.Normalized()
	if cfg.Address != "https://vault.example.com:8200" {
		t.Fatalf("Address = %q", cfg.Address)
	}
	if cfg.AuthType != VaultAuthTypeToken {
		t.Fatalf("AuthType = %q, want token", cfg.AuthType)
	}
	if cfg.KVMount != "kv" || cfg.KVVersion != 2 {
		t.Fatalf("KV = %q v%d, want kv v2", cfg.KVMount, cfg.KVVersion)
	}
	if cfg.AppRoleMountPath != "approle" {
		t.Fatalf("AppRoleMountPath = %q", cfg.AppRoleMountPath)
	}
}

func TestAWSSecretsConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  AWSSecretsConfig
		wantErr bool
	}{
		{name: "default chain", config: AWSSecretsConfig{Region: "eu-west-1"}},
		{name: "missing region", config: AWSSecretsConfig{}, wantErr: true},
		{
			name:   "access key",
			config: AWSSecretsConfig{Region: "eu-west-1", AuthType: AWSAuthTypeAccessKey, AccessKeyID: "AKIA", SecretAccessKey: "secret"},
		},
		{
			name:    "access key missing secret",
			config:  AWSSecretsConfig{Region: "eu-west-1", AuthType: AWSAuthTypeAccessKey, AccessKeyID: "AKIA"},
			wantErr: true,
		},
		{name: "unknown auth", config: AWSSecretsConfig{Region: "eu-west-1", AuthType: "sso"}, wantErr: true},
		{name: "bad endpoint", config: AWSSecretsConfig{Region: "eu-west-1", Endpoint: "localhost"}, wantErr: true},
		{name: "custom endpoint", config: AWSSecretsConfig{Region: "eu-west-1", Endpoint: "http://localhost:4566/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalderaConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  CalderaConfig
		wantErr bool
	}{
		{name: "inline key", config: CalderaConfig{URL: "https://caldera.local:8888/", APIKey: "ADMIN123"}},
		{name: "key reference", config: CalderaConfig{URL: "http://caldera.local", APIKeyRef: "caldera#api_key"}},
		{name: "missing key", config: CalderaConfig{URL: "http://caldera.local"}, wantErr: true},
		{name: "both keys", config: CalderaConfig{URL: "http://caldera.local", APIKey: "a", APIKeyRef: "b"}, wantErr: true},
		{name: "bad scheme", config: CalderaConfig{URL: "ftp://caldera.local", APIKey: "a"}, wantErr: true},
		{name: "bad interval", config: CalderaConfig{URL: "http://caldera.local", APIKey: "a", PollInterval: "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	interval, err := CalderaConfig{}.Interval()
	if err != nil || interval != time.Minute {
		t.Fatalf("default Interval() = %s, %v", interval, err)
	}
}

func TestRedisChannelConfig(t *testing.T) {
	t.Parallel()

	cfg := RedisChannelConfig{URL: "redis://localhost:6379/0"}.Normalized()
	if cfg.Channel != "openbas:injects" {
		t.Fatalf("Channel = %q", cfg.Channel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if timeout, _ := cfg.Timeout(); timeout != 5*time.Second {
		t.Fatalf("Timeout() = %s", timeout)
	}
	if err := (RedisChannelConfig{URL: "http://localhost"}).Validate(); err == nil {
		t.Fatalf("expected error for non-redis URL")
	}
}

func TestMaskSecretAndRedact(t *testing.T) {
	t.Parallel()

	if got := MaskSecret("ghp_abcdef123456"); got != "ghp_****3456" {
		t.Fatalf("MaskSecret() = %q", got)
	}
	if got := MaskSecret("abc"); got != "****" {
		t.Fatalf("MaskSecret(short) = %q", got)
	}

	out := RedactSecrets([]byte(`{"url":"http://c","api_key":"ADMIN1234","nested":{"a":1}}`), []string{"api_key", "nested", "absent"})
	if out["url"] != "http://c" {
		t.Fatalf("url = %v", out["url"])
	}
	if out["api_key"] != "****1234" {
		t.Fatalf("api_key = %v", out["api_key"])
	}
	if out["nested"] != "****" {
		t.Fatalf("nested = %v", out["nested"])
	}
	if _, ok := out["absent"]; ok {
		t.Fatalf("absent key should not be added")
	}
	if got := RedactSecrets([]byte(`not json`), nil); len(got) != 0 {
		t.Fatalf("RedactSecrets(invalid) = %v", got)
	}
}
