// File: internal/usecase/gateway_resolver_uc.go
package usecase

import (
	"fmt"

	"github.com/rs/zerolog"

	"zeen-connect/internal/domain"
	"zeen-connect/internal/domain/model"
	"zeen-connect/internal/domain/ports/adapter"
)

// Compile-time check
var _ GatewayResolver = (*gatewayResolver)(nil)

// GatewayResolver selects the concrete payment strategy for a provider:
// direct split when the provider holds an active, verified, split-capable
// merchant account, platform escrow otherwise.
type GatewayResolver interface {
	Resolve(provider *model.Provider) (adapter.GatewayStrategy, error)
	// ResolveByName routes inbound webhooks where only a gateway identifier
	// is known. Unknown names fail with domain.ErrUnknownGateway.
	ResolveByName(name string) (adapter.GatewayStrategy, error)
	// DetermineGatewayType exposes the decision for display without
	// instantiating a strategy (and without decrypting credentials).
	DetermineGatewayType(provider *model.Provider) model.GatewayType
}

// CredentialDecrypter decrypts stored merchant credentials. Satisfied by
// security.EncryptionService.
type CredentialDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// SplitFactory builds a split strategy bound to one provider's merchant
// account. Keyed by gateway name in the resolver.
type SplitFactory func(merchantID, apiKey string) (adapter.SplitGateway, error)

type gatewayResolver struct {
	escrow         adapter.GatewayStrategy
	splitFactories map[string]SplitFactory
	byName         map[string]adapter.GatewayStrategy
	decrypter      CredentialDecrypter
	log            *zerolog.Logger
}

func NewGatewayResolver(escrow adapter.GatewayStrategy, splitFactories map[string]SplitFactory, decrypter CredentialDecrypter, logger *zerolog.Logger) *gatewayResolver {
	byName := map[string]adapter.GatewayStrategy{escrow.Name(): escrow}
	return &gatewayResolver{
		escrow:         escrow,
		splitFactories: splitFactories,
		byName:         byName,
		decrypter:      decrypter,
		log:            logger,
	}
}

// RegisterGateway adds a named strategy for webhook routing (e.g. a shared
// split strategy instance used only for name resolution).
func (r *gatewayResolver) RegisterGateway(s adapter.GatewayStrategy) {
	r.byName[s.Name()] = s
}

func (r *gatewayResolver) Resolve(provider *model.Provider) (adapter.GatewayStrategy, error) {
	if provider == nil {
		return nil, domain.ErrInvalidArgument
	}
	if !provider.UsesSplitSettlement() {
		return r.escrow, nil
	}
	m := provider.Merchant
	factory, ok := r.splitFactories[m.Gateway]
	if !ok {
		// Merchant gateway we have no split support for; settle via escrow.
		r.log.Warn().Str("provider_id", provider.ID).Str("gateway", m.Gateway).
			Msg("merchant gateway has no split factory; falling back to escrow")
		return r.escrow, nil
	}
	apiKey, err := r.decrypter.Decrypt(m.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("decrypt merchant credentials: %w", err)
	}
	s, err := factory(m.MerchantID, apiKey)
	if err != nil {
		return nil, fmt.Errorf("split strategy for %s: %w", m.Gateway, err)
	}
	return s, nil
}

func (r *gatewayResolver) ResolveByName(name string) (adapter.GatewayStrategy, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGateway, name)
	}
	return s, nil
}

func (r *gatewayResolver) DetermineGatewayType(provider *model.Provider) model.GatewayType {
	if provider != nil && provider.UsesSplitSettlement() {
		if _, ok := r.splitFactories[provider.Merchant.Gateway]; ok {
			return model.GatewayTypeSplit
		}
	}
	return model.GatewayTypeEscrow
}
