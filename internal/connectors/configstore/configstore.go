package configstore

import (
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	KindVault        = "vault"
	KindAWSSecrets   = "aws_secrets"
	KindCaldera      = "caldera"
	KindRedisChannel = "redis_channel"
	KindManual       = "manual"
	KindChannel      = "channel"
)

const (
	AWSAuthTypeDefaultChain = "default_chain"
	AWSAuthTypeAccessKey    = "access_key"
	VaultAuthTypeToken      = "token"
	VaultAuthTypeAppRole    = "approle"
)

const (
	defaultVaultKVMount        = "secret"
	defaultCalderaPollInterval = time.Minute
	defaultRedisChannel        = "openbas:injects"
	defaultRedisPublishTimeout = 5 * time.Second
	minPollInterval            = 5 * time.Second
)

type VaultConfig struct {
	Address          string `json:"address" schema:"required" desc:"Vault server address"`
	Namespace        string `json:"namespace"`
	AuthType         string `json:"auth_type" desc:"token or approle"`
	Token            string `json:"token" schema:"secret"`
	AppRoleMountPath string `json:"approle_mount_path"`
	AppRoleRoleID    string `json:"approle_role_id"`
	AppRoleSecretID  string `json:"approle_secret_id" schema:"secret"`
	KVMount          string `json:"kv_mount" desc:"Mount of the KV secrets engine"`
	KVVersion        int    `json:"kv_version" desc:"1 or 2"`
	RenewInterval    string `json:"renew_interval" desc:"Token renewal interval, disabled when empty"`
	TLSSkipVerify    bool   `json:"tls_skip_verify"`
	TLSCACertPEM     string `json:"tls_ca_cert_pem"`
}

func (c VaultConfig) Normalized() VaultConfig {
	out := c
	out.Address = normalizeVaultAddress(out.Address)
	out.Namespace = strings.TrimSpace(out.Namespace)
	out.AuthType = strings.ToLower(strings.TrimSpace(out.AuthType))
	if out.AuthType == "" {
		out.AuthType = VaultAuthTypeToken
	}
	out.Token = strings.TrimSpace(out.Token)
	out.AppRoleMountPath = normalizeMountPath(out.AppRoleMountPath)
	if out.AppRoleMountPath == "" {
		out.AppRoleMountPath = "approle"
	}
	out.AppRoleRoleID = strings.TrimSpace(out.AppRoleRoleID)
	out.AppRoleSecretID = strings.TrimSpace(out.AppRoleSecretID)
	out.KVMount = normalizeMountPath(out.KVMount)
	if out.KVMount == "" {
		out.KVMount = defaultVaultKVMount
	}
	if out.KVVersion == 0 {
		out.KVVersion = 2
	}
	out.RenewInterval = strings.TrimSpace(out.RenewInterval)
	out.TLSCACertPEM = strings.TrimSpace(out.TLSCACertPEM)
	return out
}

func (c VaultConfig) Validate() error {
	c = c.Normalized()
	if c.Address == "" {
		return errors.New("Vault address is required")
	}
	parsed, err := url.Parse(c.Address)
	if err != nil {
		return errors.New("Vault address is invalid")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("Vault address must use http or https")
	}
	if strings.TrimSpace(parsed.Hostname()) == "" {
		return errors.New("Vault address host is required")
	}
	switch c.AuthType {
	case VaultAuthTypeToken:
		if c.Token == "" {
			return errors.New("Vault token is required")
		}
	case VaultAuthTypeAppRole:
		if c.AppRoleRoleID == "" {
			return errors.New("Vault AppRole role ID is required")
		}
		if c.AppRoleSecretID == "" {
			return errors.New("Vault AppRole secret ID is required")
		}
	default:
		return errors.New("Vault auth type is invalid")
	}
	if c.KVVersion != 1 && c.KVVersion != 2 {
		return errors.New("Vault KV version must be 1 or 2")
	}
	if c.RenewInterval != "" {
		if _, err := ParseInterval(c.RenewInterval, 0); err != nil {
			return fmt.Errorf("Vault renew interval: %w", err)
		}
	}
	if c.TLSCACertPEM != "" {
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM([]byte(c.TLSCACertPEM)); !ok {
			return errors.New("Vault CA certificate PEM is invalid")
		}
	}
	return nil
}

type AWSSecretsConfig struct {
	Region          string `json:"region" schema:"required"`
	AuthType        string `json:"auth_type" desc:"default_chain or access_key"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" schema:"secret"`
	SessionToken    string `json:"session_token" schema:"secret"`
	Endpoint        string `json:"endpoint" desc:"Custom Secrets Manager endpoint"`
	Prefix          string `json:"prefix" desc:"Prefix prepended to every secret name"`
}

func (c AWSSecretsConfig) Normalized() AWSSecretsConfig {
	out := c
	out.Region = strings.TrimSpace(out.Region)
	out.AuthType = strings.ToLower(strings.TrimSpace(out.AuthType))
	if out.AuthType == "" {
		out.AuthType = AWSAuthTypeDefaultChain
	}
	out.AccessKeyID = strings.TrimSpace(out.AccessKeyID)
	out.SecretAccessKey = strings.TrimSpace(out.SecretAccessKey)
	out.SessionToken = strings.TrimSpace(out.SessionToken)
	out.Endpoint = strings.TrimRight(strings.TrimSpace(out.Endpoint), "/")
	out.Prefix = strings.TrimSpace(out.Prefix)
	return out
}

func (c AWSSecretsConfig) Validate() error {
	c = c.Normalized()
	if c.Region == "" {
		return errors.New("AWS region is required")
	}
	switch c.AuthType {
	case AWSAuthTypeDefaultChain:
	case AWSAuthTypeAccessKey:
		if c.AccessKeyID == "" {
			return errors.New("AWS access key ID is required")
		}
		if c.SecretAccessKey == "" {
			return errors.New("AWS secret access key is required")
		}
	default:
		return errors.New("AWS credentials type is invalid")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" {
			return errors.New("AWS endpoint is invalid")
		}
	}
	return nil
}

type CalderaConfig struct {
	URL           string `json:"url" schema:"required" desc:"Caldera server URL"`
	APIKey        string `json:"api_key" schema:"secret"`
	APIKeyRef     string `json:"api_key_ref" desc:"Secret reference resolved through a credentials integration"`
	Group         string `json:"group" desc:"Agent group used for simulations"`
	PollInterval  string `json:"poll_interval" desc:"Agent polling interval"`
	TLSSkipVerify bool   `json:"tls_skip_verify"`
}

func (c CalderaConfig) Normalized() CalderaConfig {
	out := c
	out.URL = strings.TrimRight(strings.TrimSpace(out.URL), "/")
	out.APIKey = strings.TrimSpace(out.APIKey)
	out.APIKeyRef = strings.TrimSpace(out.APIKeyRef)
	out.Group = strings.TrimSpace(out.Group)
	out.PollInterval = strings.TrimSpace(out.PollInterval)
	return out
}

func (c CalderaConfig) Validate() error {
	c = c.Normalized()
	if c.URL == "" {
		return errors.New("Caldera URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("Caldera URL must be an http or https URL")
	}
	if c.APIKey == "" && c.APIKeyRef == "" {
		return errors.New("Caldera API key or API key reference is required")
	}
	if c.APIKey != "" && c.APIKeyRef != "" {
		return errors.New("Caldera API key and API key reference are mutually exclusive")
	}
	if _, err := c.Interval(); err != nil {
		return fmt.Errorf("Caldera poll interval: %w", err)
	}
	return nil
}

// Interval returns the agent polling interval.
func (c CalderaConfig) Interval() (time.Duration, error) {
	return ParseInterval(c.PollInterval, defaultCalderaPollInterval)
}

type RedisChannelConfig struct {
	URL            string `json:"url" schema:"required,secret" desc:"redis:// connection URL"`
	Channel        string `json:"channel" desc:"Pub/sub channel stimuli are published to"`
	PublishTimeout string `json:"publish_timeout"`
}

func (c RedisChannelConfig) Normalized() RedisChannelConfig {
	out := c
	out.URL = strings.TrimSpace(out.URL)
	out.Channel = strings.TrimSpace(out.Channel)
	if out.Channel == "" {
		out.Channel = defaultRedisChannel
	}
	out.PublishTimeout = strings.TrimSpace(out.PublishTimeout)
	return out
}

func (c RedisChannelConfig) Validate() error {
	c = c.Normalized()
	if c.URL == "" {
		return errors.New("Redis URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return errors.New("Redis URL must use redis or rediss")
	}
	if _, err := c.Timeout(); err != nil {
		return fmt.Errorf("Redis publish timeout: %w", err)
	}
	return nil
}

func (c RedisChannelConfig) Timeout() (time.Duration, error) {
	return ParseInterval(c.PublishTimeout, defaultRedisPublishTimeout)
}

// ParseInterval parses a Go duration string. Empty input yields def; intervals
// below five seconds are rejected.
func ParseInterval(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < minPollInterval {
		return 0, fmt.Errorf("must be at least %s", minPollInterval)
	}
	return d, nil
}

func MaskSecret(secret string) string {
	s := strings.TrimSpace(secret)
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	tail := s[len(s)-4:]
	prefix := ""
	if idx := strings.Index(s, "_"); idx > 0 && idx <= 6 {
		prefix = s[:idx+1]
	}
	return prefix + "****" + tail
}

// RedactSecrets masks the given top-level keys of a JSON configuration object.
// Invalid documents are replaced with an empty object.
func RedactSecrets(raw []byte, secretKeys []string) map[string]any {
	out := map[string]any{}
	if err := decodeJSON(raw, &out); err != nil || out == nil {
		return map[string]any{}
	}
	for _, key := range secretKeys {
		v, ok := out[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			out[key] = MaskSecret(s)
			continue
		}
		out[key] = "****"
	}
	return out
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func normalizeVaultAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return ""
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return strings.TrimRight(addr, "/")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return strings.TrimSpace(parsed.String())
}

func normalizeMountPath(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), "/")
}
