package awssecrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultCacheTTL    = 5 * time.Minute
)

// ErrSecretNotFound is returned when a secret has no value under the referenced key.
var ErrSecretNotFound = errors.New("aws secret not found")

// Options configure the Secrets Manager client.
type Options struct {
	Region          string
	AuthType        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
	Prefix          string
	CacheTTL        time.Duration
}

type secretsAPI interface {
	GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Client resolves secret references against AWS Secrets Manager. It implements
// registry.SecretResolver.
type Client struct {
	api    secretsAPI
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func New(ctx context.Context, opts Options) (*Client, error) {
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		return nil, errors.New("aws secrets manager region is required")
	}

	authType := strings.ToLower(strings.TrimSpace(opts.AuthType))
	switch authType {
	case "", "default_chain":
		authType = "default_chain"
	case "access_key":
		if strings.TrimSpace(opts.AccessKeyID) == "" || strings.TrimSpace(opts.SecretAccessKey) == "" {
			return nil, errors.New("aws access key id and secret access key are required")
		}
	default:
		return nil, errors.New("unsupported aws credential auth type")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(&http.Client{Timeout: defaultHTTPTimeout}),
	}
	if authType == "access_key" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			strings.TrimSpace(opts.AccessKeyID),
			strings.TrimSpace(opts.SecretAccessKey),
			strings.TrimSpace(opts.SessionToken),
		)))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithConfig(cfg, opts), nil
}

func NewWithConfig(cfg aws.Config, opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	api := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return newWithAPI(api, opts)
}

func newWithAPI(api secretsAPI, opts Options) *Client {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		api:    api,
		prefix: strings.TrimSpace(opts.Prefix),
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// ResolveSecret reads a reference of the form "name#key". JSON object secrets are
// indexed by key; plain string secrets are returned whole when no key is given.
func (c *Client) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, key, _ := strings.Cut(strings.TrimSpace(ref), "#")
	name = strings.TrimSpace(name)
	key = strings.TrimSpace(key)
	if name == "" {
		return "", errors.New("aws secret reference is empty")
	}
	secretID := c.prefix + name

	raw, err := c.secretString(ctx, secretID)
	if err != nil {
		return "", err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		if key != "" {
			return "", fmt.Errorf("%w: %s#%s (secret is not a JSON object)", ErrSecretNotFound, name, key)
		}
		return raw, nil
	}
	if key == "" {
		if len(fields) != 1 {
			return "", fmt.Errorf("aws secret %s has %d fields, reference a key with %s#<key>", name, len(fields), name)
		}
		for k := range fields {
			key = k
		}
	}
	value, ok := fields[key]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: %s#%s", ErrSecretNotFound, name, key)
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	return strings.TrimSpace(fmt.Sprint(value)), nil
}

// Invalidate drops every cached secret.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *Client) secretString(ctx context.Context, secretID string) (string, error) {
	c.mu.RLock()
	entry, ok := c.cache[secretID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", secretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("aws secret %s has no string value", secretID)
	}

	value := aws.ToString(out.SecretString)
	c.mu.Lock()
	c.cache[secretID] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}
