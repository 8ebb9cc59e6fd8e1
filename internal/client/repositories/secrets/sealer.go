package secrets

import (
	"fmt"

	"github.com/dmitrijs2005/bizkeeper/internal/cryptox"
)

// sealer encrypts values before they reach a backend. A nil key disables it.
type sealer struct {
	key []byte
}

func (s sealer) seal(key string, value []byte) ([]byte, error) {
	if s.key == nil {
		return value, nil
	}
	out, err := cryptox.Seal(value, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to seal secret[%s]: %w", key, err)
	}
	return out, nil
}

func (s sealer) open(key string, value []byte) ([]byte, error) {
	if s.key == nil || value == nil {
		return value, nil
	}
	out, err := cryptox.Open(value, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to open secret[%s]: %w", key, err)
	}
	return out, nil
}
