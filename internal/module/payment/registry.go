package payment

import (
	"fmt"

	"github.com/shopstack/server/internal/module/payment/domain"
	"github.com/shopstack/server/internal/module/payment/provider"
)

// Registry holds the three gateway adapters. The providers' wire
// protocols are genuinely different, so the registry keeps them as
// concrete types rather than forcing a polymorphic payment interface;
// only webhook verification is looked up uniformly.
type Registry struct {
	paypal  *provider.PayPalProvider
	bitcoin *provider.BitcoinProvider
	monero  *provider.MoneroProvider
}

// NewRegistry creates a registry over the configured adapters.
func NewRegistry(paypal *provider.PayPalProvider, bitcoin *provider.BitcoinProvider, monero *provider.MoneroProvider) *Registry {
	return &Registry{paypal: paypal, bitcoin: bitcoin, monero: monero}
}

// PayPal returns the card/wallet gateway adapter.
func (r *Registry) PayPal() *provider.PayPalProvider { return r.paypal }

// Bitcoin returns the address-based crypto gateway adapter.
func (r *Registry) Bitcoin() *provider.BitcoinProvider { return r.bitcoin }

// Monero returns the payment-request crypto gateway adapter.
func (r *Registry) Monero() *provider.MoneroProvider { return r.monero }

// Verifier returns the webhook verifier for the given provider. The
// bitcoin gateway is poll-driven and has no webhook verifier.
func (r *Registry) Verifier(p domain.Provider) (provider.WebhookVerifier, error) {
	switch p {
	case domain.ProviderPayPal:
		return r.paypal, nil
	case domain.ProviderMonero:
		return r.monero, nil
	default:
		return nil, fmt.Errorf("%w: no webhook verifier for %q", ErrUnknownProvider, p)
	}
}
