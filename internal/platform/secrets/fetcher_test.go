package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
)

type stubAccessClient struct {
	calls  int
	values map[string]string
	err    error
}

func (s *stubAccessClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.values[req.GetName()]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (s *stubAccessClient) Close() error { return nil }

func TestResolveAppendsLatestVersion(t *testing.T) {
	client := &stubAccessClient{values: map[string]string{
		"projects/demo/secrets/gateway/versions/latest": "top-secret",
	}}
	fetcher, err := NewFetcher(context.Background(), zap.NewNop(), nil, WithClient(client))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "sm://projects/demo/secrets/gateway")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "top-secret" {
		t.Fatalf("expected top-secret, got %s", value)
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	client := &stubAccessClient{values: map[string]string{
		"projects/demo/secrets/gateway/versions/3": "v3",
	}}
	fetcher, err := NewFetcher(context.Background(), zap.NewNop(), nil,
		WithClient(client), WithCacheTTL(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := fetcher.Resolve(context.Background(), "sm://projects/demo/secrets/gateway/versions/3"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", client.calls)
	}
}

func TestResolveRejectsMalformedRefs(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), zap.NewNop(), nil, WithClient(&stubAccessClient{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ref := range []string{"", "gateway", "sm://", "sm://secrets/gateway"} {
		if _, err := fetcher.Resolve(context.Background(), ref); !errors.Is(err, ErrInvalidRef) {
			t.Fatalf("expected ErrInvalidRef for %q, got %v", ref, err)
		}
	}
}
