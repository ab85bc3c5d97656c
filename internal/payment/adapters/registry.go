package adapters

import (
	"github.com/smallbiznis/paylink/internal/payment/domain"
)

// Registry selects the adapter for an order's stored gateway.
type Registry struct {
	adapters map[domain.Gateway]domain.GatewayAdapter
}

func NewRegistry(adapters ...domain.GatewayAdapter) *Registry {
	registry := &Registry{adapters: map[domain.Gateway]domain.GatewayAdapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		registry.adapters[adapter.Gateway()] = adapter
	}
	return registry
}

func (r *Registry) GatewayExists(g domain.Gateway) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[g]
	return ok
}

func (r *Registry) Adapter(g domain.Gateway) (domain.GatewayAdapter, error) {
	if r == nil {
		return nil, domain.ErrUnknownGateway
	}
	adapter, ok := r.adapters[g]
	if !ok {
		return nil, domain.ErrUnknownGateway
	}
	return adapter, nil
}

// StatusPageResolver returns the adapter's status page capability, if it has one.
func (r *Registry) StatusPageResolver(g domain.Gateway) (domain.StatusPageResolver, bool) {
	adapter, err := r.Adapter(g)
	if err != nil {
		return nil, false
	}
	resolver, ok := adapter.(domain.StatusPageResolver)
	return resolver, ok
}

func (r *Registry) AgreementCanceller(g domain.Gateway) (domain.AgreementCanceller, bool) {
	adapter, err := r.Adapter(g)
	if err != nil {
		return nil, false
	}
	canceller, ok := adapter.(domain.AgreementCanceller)
	return canceller, ok
}
