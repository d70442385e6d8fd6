package vault

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

const (
	vaultAuthTypeToken   = "token"
	vaultAuthTypeAppRole = "approle"
)

// ErrSecretNotFound is returned when a reference points at a missing path or key.
var ErrSecretNotFound = errors.New("vault secret not found")

type Options struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
	KVMount          string
	KVVersion        int
	TLSSkipVerify    bool
	TLSCACertPEM     string
}

// Client reads secrets from a KV engine. It implements registry.SecretResolver.
type Client struct {
	client      *vaultapi.Client
	namespace   string
	addressHost string
	kvMount     string
	kvVersion   int
}

func New(ctx context.Context, opts Options) (*Client, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required")
	}
	authType := strings.ToLower(strings.TrimSpace(opts.AuthType))
	if authType == "" {
		authType = vaultAuthTypeToken
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	cfg.HttpClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: buildHTTPTransport(opts.TLSSkipVerify, strings.TrimSpace(opts.TLSCACertPEM)),
	}
	addressHost := ""
	if parsed, err := neturl.Parse(address); err == nil {
		addressHost = strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	namespace := strings.TrimSpace(opts.Namespace)
	if namespace != "" {
		client.SetNamespace(namespace)
	}

	switch authType {
	case vaultAuthTypeToken:
		token := strings.TrimSpace(opts.Token)
		if token == "" {
			return nil, errors.New("vault token is required")
		}
		client.SetToken(token)
	case vaultAuthTypeAppRole:
		roleID := strings.TrimSpace(opts.AppRoleRoleID)
		secretID := strings.TrimSpace(opts.AppRoleSecretID)
		mountPath := normalizeMountPath(opts.AppRoleMountPath)
		if mountPath == "" {
			mountPath = "approle"
		}
		if roleID == "" {
			return nil, errors.New("vault AppRole role ID is required")
		}
		if secretID == "" {
			return nil, errors.New("vault AppRole secret ID is required")
		}
		loginPath := "auth/" + mountPath + "/login"
		secret, err := client.Logical().WriteWithContext(ctx, loginPath, map[string]any{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login at %s: %w", loginPath, err)
		}
		if secret == nil || secret.Auth == nil || strings.TrimSpace(secret.Auth.ClientToken) == "" {
			return nil, errors.New("vault approle login succeeded without client token")
		}
		client.SetToken(secret.Auth.ClientToken)
	default:
		return nil, errors.New("vault auth type is invalid")
	}

	kvMount := normalizeMountPath(opts.KVMount)
	if kvMount == "" {
		kvMount = "secret"
	}
	kvVersion := opts.KVVersion
	if kvVersion == 0 {
		kvVersion = 2
	}

	return &Client{
		client:      client,
		namespace:   namespace,
		addressHost: addressHost,
		kvMount:     kvMount,
		kvVersion:   kvVersion,
	}, nil
}

// ResolveSecret reads a reference of the form "path#key" relative to the KV mount.
// Without a key the secret must hold exactly one field.
func (c *Client) ResolveSecret(ctx context.Context, ref string) (string, error) {
	path, key, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	data, err := c.read(ctx, c.dataPath(path))
	if err != nil {
		return "", err
	}
	if c.kvVersion == 2 {
		nested, _ := data["data"].(map[string]any)
		data = nested
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	if key == "" {
		if len(data) != 1 {
			return "", fmt.Errorf("vault secret %s has %d fields, reference a key with %s#<key>", path, len(data), path)
		}
		for k := range data {
			key = k
		}
	}
	value, ok := data[key]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: %s#%s", ErrSecretNotFound, path, key)
	}
	return strings.TrimSpace(fmt.Sprint(value)), nil
}

// RenewToken renews the client token. It is a no-op for tokens that are not renewable.
func (c *Client) RenewToken(ctx context.Context) error {
	secret, err := c.client.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault token lookup: %w", c.withNamespaceHint(err))
	}
	renewable, err := secret.TokenIsRenewable()
	if err != nil {
		return fmt.Errorf("vault token lookup: %w", err)
	}
	if !renewable {
		return nil
	}
	if _, err := c.client.Auth().Token().RenewSelfWithContext(ctx, 0); err != nil {
		return fmt.Errorf("vault token renew: %w", c.withNamespaceHint(err))
	}
	return nil
}

func (c *Client) dataPath(path string) string {
	if c.kvVersion == 2 {
		return c.kvMount + "/data/" + path
	}
	return c.kvMount + "/" + path
}

func (c *Client) read(ctx context.Context, path string) (map[string]any, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("vault read %s: %w", path, c.withNamespaceHint(err))
	}
	if secret == nil || secret.Data == nil {
		return map[string]any{}, nil
	}
	return secret.Data, nil
}

func parseRef(ref string) (string, string, error) {
	path, key, _ := strings.Cut(strings.TrimSpace(ref), "#")
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", "", errors.New("vault secret reference is empty")
	}
	return path, strings.TrimSpace(key), nil
}

func normalizeMountPath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

func (c *Client) withNamespaceHint(err error) error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(c.namespace) != "" {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(c.addressHost)), ".hashicorp.cloud") {
		return err
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "permission denied") && !strings.Contains(msg, "403") {
		return err
	}
	return fmt.Errorf("%w (tip: set namespace to \"admin\" for HCP Vault Dedicated)", err)
}

func buildHTTPTransport(skipVerify bool, caCertPEM string) http.RoundTripper {
	base, _ := http.DefaultTransport.(*http.Transport)
	if base == nil {
		return http.DefaultTransport
	}
	transport := base.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12
	transport.TLSClientConfig.InsecureSkipVerify = skipVerify
	if strings.TrimSpace(caCertPEM) != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(caCertPEM)) {
			transport.TLSClientConfig.RootCAs = pool
		}
	}
	return transport
}
