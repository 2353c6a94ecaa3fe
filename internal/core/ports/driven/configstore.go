package driven

// ConfigStore edits the persisted configuration one key at a time.
// Keys use dot notation, for example "llm.provider".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// Keys returns every key present in storage.
	Keys() []string

	// Set stores a value. The value is persisted immediately.
	Set(key, value string) error

	// Unset removes a key so that its default applies again.
	Unset(key string) error

	// Restore puts back a value previously returned by Get, or removes the
	// key when existed is false.
	Restore(key string, value any, existed bool) error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
