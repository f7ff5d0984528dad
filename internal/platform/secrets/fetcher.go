package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const refPrefix = "sm://"

// ErrInvalidRef indicates the reference is not an sm:// secret URI.
var ErrInvalidRef = errors.New("secrets: invalid secret reference")

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves sm:// references using Google Secret Manager with
// in-process caching. References take the form
// sm://projects/<project>/secrets/<name>[/versions/<version>].
type Fetcher struct {
	client     accessClient
	ownsClient bool
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

// FetcherOption customises Fetcher construction.
type FetcherOption func(*Fetcher)

// WithCacheTTL overrides how long resolved secrets are served from cache.
func WithCacheTTL(ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithClient injects a pre-built Secret Manager client (used in tests).
func WithClient(client accessClient) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
		f.ownsClient = false
	}
}

// NewFetcher constructs a Fetcher, dialing Secret Manager unless a client is injected.
func NewFetcher(ctx context.Context, logger *zap.Logger, opts []option.ClientOption, fetcherOpts ...FetcherOption) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher := &Fetcher{
		logger: logger,
		cache:  make(map[string]cacheEntry),
		ttl:    5 * time.Minute,
	}
	for _, opt := range fetcherOpts {
		if opt != nil {
			opt(fetcher)
		}
	}
	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: dial secret manager: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}
	return fetcher, nil
}

// Resolve returns the payload for the referenced secret version.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}

	name, err := canonicalName(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	entry, ok := f.cache[name]
	f.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < f.ttl {
		return entry.value, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	value := string(resp.GetPayload().GetData())

	f.mu.Lock()
	f.cache[name] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()

	f.logger.Debug("secret resolved", zap.String("name", name))
	return value, nil
}

// Close releases the underlying client when owned by the fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func canonicalName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, refPrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	path := strings.Trim(strings.TrimPrefix(trimmed, refPrefix), "/")
	if path == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "secrets":
		return path + "/versions/latest", nil
	case len(parts) == 6 && parts[0] == "projects" && parts[2] == "secrets" && parts[4] == "versions":
		return path, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
}
