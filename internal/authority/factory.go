package authority

import (
	"fmt"

	"otodo-go/internal/config"
	"otodo-go/internal/otodo"
)

// NewAuthorityFromConfig creates an Authority implementation based on the
// server config type.
func NewAuthorityFromConfig(cfg config.ServerConfig) (otodo.Authority, error) {
	switch cfg.Type {
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base_url required for http server")
		}
		return NewHTTPAuthority(cfg.BaseURL), nil
	case "memory":
		return NewMemoryAuthority(), nil
	default:
		return nil, fmt.Errorf("unknown server type: %s", cfg.Type)
	}
}
