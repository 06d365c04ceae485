package adapters

import (
	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/internal/config"
	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/services/retry"
)

// Registry resolves the adapter for an account's provider tag. Unknown
// tags fall back to the generic adapter so a mistagged account still
// syncs over plain IMAP.
type Registry struct {
	adapters map[enum.EmailProvider]interfaces.ProviderAdapter
	fallback interfaces.ProviderAdapter
}

func NewRegistry(cfg *config.SyncConfig, tokens interfaces.TokenService, retrier *retry.Executor, log logger.Logger) *Registry {
	generic := NewGenericAdapter(cfg, tokens, retrier, log)

	r := &Registry{
		adapters: make(map[enum.EmailProvider]interfaces.ProviderAdapter),
		fallback: generic,
	}
	r.Register(NewGmailAdapter(cfg, tokens, retrier, log))
	r.Register(NewOutlookAdapter(cfg, tokens, retrier, log))
	r.Register(generic)
	return r
}

func (r *Registry) Register(adapter interfaces.ProviderAdapter) {
	r.adapters[adapter.Provider()] = adapter
}

func (r *Registry) Get(provider enum.EmailProvider) interfaces.ProviderAdapter {
	if adapter, ok := r.adapters[provider]; ok {
		return adapter
	}
	return r.fallback
}
