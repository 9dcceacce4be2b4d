package opendb

import (
	"os"

	"github.com/opendb-io/opendb/opendberr"
	"github.com/opendb-io/opendb/vector"
	"gopkg.in/yaml.v3"
)

// optionsFile is the YAML shape LoadOptionsFile accepts. It mirrors Options
// field-for-field so callers can keep OpenDB tuning alongside other
// YAML-based service config; this is purely an additive convenience — the
// persisted on-disk config marker stays JSON regardless of whether this was
// used to produce the Options passed to Open.
type optionsFile struct {
	VectorDimension int    `yaml:"vector_dimension"`
	KVCacheSize     int    `yaml:"kv_cache_size"`
	RecordCacheSize int    `yaml:"record_cache_size"`
	VectorPreset    string `yaml:"vector_preset"`
}

// LoadOptionsFile reads a YAML options override from path and returns the
// corresponding Options. Unset fields decode as their Go zero value, which
// withDefaults then resolves the same way a zero-valued Options{} would.
func LoadOptionsFile(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, opendberr.Wrap(opendberr.Storage, "opendb.LoadOptionsFile", err)
	}
	var f optionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Options{}, opendberr.Wrap(opendberr.Codec, "opendb.LoadOptionsFile", err)
	}
	return Options{
		VectorDimension: f.VectorDimension,
		KVCacheSize:     f.KVCacheSize,
		RecordCacheSize: f.RecordCacheSize,
		VectorPreset:    vector.Preset(f.VectorPreset),
	}, nil
}
