package registry

import (
	"context"
	"fmt"
	"strings"

	"lockmint/pkg/domain"
	dErrors "lockmint/pkg/domain-errors"
)

// BaseURIProvider renders base + token id, the usual static metadata layout.
type BaseURIProvider struct {
	registry *Registry
	base     string
}

func NewBaseURIProvider(registry *Registry, base string) *BaseURIProvider {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &BaseURIProvider{registry: registry, base: base}
}

func (p *BaseURIProvider) TokenURI(ctx context.Context, tokenID domain.TokenID) (string, error) {
	exists, err := p.registry.Exists(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", dErrors.Wrap(ErrTokenNotFound, dErrors.CodeNotFound, fmt.Sprintf("token %d does not exist", tokenID))
	}
	return p.base + tokenID.String(), nil
}
