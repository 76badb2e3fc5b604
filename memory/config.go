package memory

// Config holds transcript persistence parameters.
type Config struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // FileStore root directory; empty disables persistence.
}

// DefaultConfig returns the default memory configuration (disabled).
func DefaultConfig() Config {
	return Config{}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
}

// New creates file-backed Transcripts from configuration. It returns nil
// when Path is empty, indicating persistence is disabled.
func New(cfg *Config) (*Transcripts, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return NewTranscripts(NewFileStore(cfg.Path))
}
