package handlers

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// decodeInto converts loosely typed run data (usually decoded JSON) into a
// typed value. Numbers arriving as float64 are accepted for int fields.
func decodeInto(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func configString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func configBool(cfg map[string]any, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}
