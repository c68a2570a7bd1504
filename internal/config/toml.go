package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
)

// TOML implements koanf.Parser on top of BurntSushi/toml.
type TOML struct{}

// Unmarshal decodes TOML into a nested map.
func (TOML) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Marshal encodes a nested map as TOML.
func (TOML) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
