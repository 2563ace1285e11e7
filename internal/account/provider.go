package account

import (
	"sync/atomic"

	"github.com/airelay/qwen-bridge/internal/errors"
)

// TokenProvider supplies bearer credentials for upstream calls.
// Rotation policy is internal to the implementation; callers ask for
// a token per call and never cache it.
type TokenProvider interface {
	GetToken() string
}

// RotatingProvider cycles through a fixed set of account tokens using
// an atomic round-robin counter.
type RotatingProvider struct {
	tokens []string
	next   atomic.Uint64
}

// NewRotatingProvider creates a provider over the given token list
func NewRotatingProvider(tokens []string) (*RotatingProvider, error) {
	if len(tokens) == 0 {
		return nil, errors.NewConfigurationError("at least one upstream account token is required")
	}
	copied := make([]string, len(tokens))
	copy(copied, tokens)
	return &RotatingProvider{tokens: copied}, nil
}

// GetToken returns the next token in round-robin order
func (p *RotatingProvider) GetToken() string {
	n := p.next.Add(1) - 1
	return p.tokens[n%uint64(len(p.tokens))]
}

// Size returns the number of configured tokens
func (p *RotatingProvider) Size() int {
	return len(p.tokens)
}

// StaticProvider always returns the same token. Useful for tests and
// single-account deployments.
type StaticProvider struct {
	token string
}

// NewStaticProvider creates a provider for a single token
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

// GetToken returns the configured token
func (p *StaticProvider) GetToken() string {
	return p.token
}
