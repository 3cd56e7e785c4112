package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "OPSFLOW_"

// Loader assembles a Config from layered sources. Later layers win:
// defaults, then environment, then overrides.
type Loader struct {
	// Environ returns the environment as KEY=value pairs. Defaults to
	// os.Environ; tests inject a fixed slice.
	Environ func() []string

	validate *validator.Validate
}

// NewLoader returns a Loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Load builds the configuration. Overrides are keyed by koanf path
// ("http.addr", "store.driver"); nil values are ignored so unset CLI flags
// can be passed through unconditionally.
func (l *Loader) Load(overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	opt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnvKey,
	}
	if l.Environ != nil {
		opt.EnvironFunc = l.Environ
	}
	if err := k.Load(env.Provider(".", opt), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, value := range overrides {
		if value == nil {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Load is shorthand for NewLoader().Load(overrides).
func Load(overrides map[string]any) (*Config, error) {
	return NewLoader().Load(overrides)
}

// transformEnvKey maps OPSFLOW_STORE_CACHE_SIZE to store.cache_size. The
// first segment after the prefix is the section; the rest is the field.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], value
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_"), value
	}
}
