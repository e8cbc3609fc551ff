package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "RINGELECT"

// Load reads the file at path into cfg. Keys missing from the file keep the
// values already in cfg, and RINGELECT_* environment variables win over both.
func Load(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "yml" {
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only reaches keys viper already knows about
	if err := bindEnv(v, "", reflect.TypeOf(*cfg)); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

// bindEnv registers every mapstructure key of t, nested sections as
// "section.key", so RINGELECT_SECTION_KEY is picked up.
func bindEnv(v *viper.Viper, prefix string, t reflect.Type) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if f.Type.Kind() == reflect.Struct {
			if err := bindEnv(v, key, f.Type); err != nil {
				return err
			}
			continue
		}
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}
