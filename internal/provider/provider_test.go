package provider

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cambio-ai/cambio/internal/config"
	"github.com/cambio-ai/cambio/internal/log"
)

func testConfig() *config.Config {
	return &config.Config{
		Endpoint:   "https://models.example.com",
		Deployment: "gpt-4o",
		APIVersion: "2024-06-01",
		APIKey:     "test-key",
	}
}

// stubInit replaces genkit wiring so resolution behavior can be
// tested without a live backend.
func stubInit(p *Provider, err error) *int {
	calls := new(int)
	p.initFn = func(context.Context, string) (*Handle, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return &Handle{modelName: "stub/model"}, nil
	}
	return calls
}

func TestResolve_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "missing endpoint", mutate: func(c *config.Config) { c.Endpoint = "" }, wantErr: ErrMissingEndpoint},
		{name: "missing deployment", mutate: func(c *config.Config) { c.Deployment = "" }, wantErr: ErrMissingDeployment},
		{name: "missing api version", mutate: func(c *config.Config) { c.APIVersion = "" }, wantErr: ErrMissingAPIVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			p := New(cfg, log.NewNop())
			stubInit(p, nil)

			_, err := p.Resolve(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Resolve() error = %v, want it to match ErrConfiguration", err)
			}
		})
	}
}

func TestResolve_CachesHandle(t *testing.T) {
	p := New(testConfig(), log.NewNop())
	calls := stubInit(p, nil)

	first, err := p.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	second, err := p.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() second call error: %v", err)
	}

	if first != second {
		t.Error("Resolve() returned different handles across calls, want cached singleton")
	}
	if *calls != 1 {
		t.Errorf("init ran %d times, want 1", *calls)
	}
}

func TestResolve_RetriesAfterFailure(t *testing.T) {
	p := New(testConfig(), log.NewNop())

	initErr := errors.New("backend unreachable")
	failing := stubInit(p, initErr)

	if _, err := p.Resolve(context.Background()); !errors.Is(err, initErr) {
		t.Fatalf("Resolve() error = %v, want %v", err, initErr)
	}
	if p.Resolved() {
		t.Fatal("Resolved() = true after a failed resolution, want false")
	}
	if *failing != 1 {
		t.Fatalf("init ran %d times, want 1", *failing)
	}

	// Next attempt succeeds and is cached.
	stubInit(p, nil)
	if _, err := p.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve() after recovery error: %v", err)
	}
	if !p.Resolved() {
		t.Error("Resolved() = false after successful resolution, want true")
	}
}

func TestResolve_ConcurrentFirstCalls(t *testing.T) {
	p := New(testConfig(), log.NewNop())
	calls := stubInit(p, nil)

	const n = 16
	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := p.Resolve(context.Background())
			if err != nil {
				t.Errorf("Resolve() error: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	if *calls != 1 {
		t.Errorf("init ran %d times under concurrent first calls, want 1", *calls)
	}
	for i := 1; i < n; i++ {
		if handles[i] != handles[0] {
			t.Fatalf("caller %d observed a different handle", i)
		}
	}
}

func TestCredentialMode(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		provider string
		want     string
	}{
		{name: "static key", apiKey: "sk-something", want: ModeKey},
		{name: "no key uses ambient identity", apiKey: "", want: ModeIdentity},
		{name: "explicit ollama overrides key", apiKey: "sk-something", provider: ModeOllama, want: ModeOllama},
		{name: "explicit ollama without key", apiKey: "", provider: ModeOllama, want: ModeOllama},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.APIKey = tt.apiKey
			cfg.Provider = tt.provider
			p := New(cfg, log.NewNop())

			if got := p.credentialMode(); got != tt.want {
				t.Errorf("credentialMode() = %q, want %q", got, tt.want)
			}
		})
	}
}
