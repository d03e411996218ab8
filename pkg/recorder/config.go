package recorder

import (
	"os"

	"github.com/tracewalk/callstack/pkg/envelope"
	"gopkg.in/yaml.v3"
)

// DefaultBufferCapacity is the reference ring buffer sizing (1 MiB).
const DefaultBufferCapacity = 1 * 1024 * 1024

// Config configures a Recorder. The recorder never reads environment
// variables (SPEC_FULL.md §3.1): every value here comes from the host
// process, typically loaded once at startup via LoadConfigFile.
type Config struct {
	BufferCapacity int                 `yaml:"buffer_capacity"`
	Overflow       OverflowPolicy      `yaml:"overflow_policy"`
	Compression    envelope.CompressionType `yaml:"-"`
	EncryptionKey  []byte              `yaml:"-"`
	IntegrityKey   []byte              `yaml:"-"`
}

// DefaultConfig returns a Config with a 1 MiB buffer, drop-on-overflow,
// and no at-rest compression or encryption.
func DefaultConfig() Config {
	return Config{
		BufferCapacity: DefaultBufferCapacity,
		Overflow:       OverflowDrop,
		Compression:    envelope.NoCompression,
	}
}

// LoadConfigFile reads a YAML config file and overlays its fields on top
// of DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envelopeOptions translates Config's security/compression fields into the
// options Dump passes to envelope.Seal.
func (c Config) envelopeOptions() envelope.Options {
	opts := envelope.Options{Compression: c.Compression}
	if len(c.EncryptionKey) > 0 {
		opts.Encryption = &envelope.EncryptionOptions{Key: c.EncryptionKey}
	}
	if len(c.IntegrityKey) > 0 {
		opts.Integrity = &envelope.IntegrityOptions{Key: c.IntegrityKey}
	}
	return opts
}
