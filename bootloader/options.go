package bootloader

// Config holds the programming driver's configuration. Assembled once via
// New and a set of Options rather than positional arguments.
type Config struct {
	// ProgressCallback reports phase and per-row progress (optional).
	ProgressCallback ProgressCallback

	// Logger receives driver-level diagnostics (optional).
	Logger Logger

	// RowRetries is the number of times a row is fully re-programmed after
	// a VerifyRow checksum mismatch before the run aborts.
	RowRetries int

	// Erase requests a full-device erase pass before WRITE.
	Erase bool

	// PSoC5 selects the offset-192 metadata footer layout instead of the
	// default offset-64 layout when reading the image's embedded metadata.
	PSoC5 bool

	// DowngradeDecider is consulted when the device's application version
	// is newer than the image's. Defaults to AlwaysReject.
	DowngradeDecider DowngradeDecider

	// NewAppDecider is consulted when the device's application id differs
	// from the image's. Defaults to AlwaysReject.
	NewAppDecider NewAppDecider
}

// defaultConfig returns the driver's default configuration.
func defaultConfig() Config {
	return Config{
		RowRetries:       3,
		DowngradeDecider: AlwaysReject,
		NewAppDecider:    AlwaysReject,
	}
}

// Option is a functional option for configuring a Programmer.
type Option func(*Config)

// WithProgressCallback sets the progress callback.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) { c.ProgressCallback = callback }
}

// WithLogger sets the driver's logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithRowRetries overrides the number of re-program attempts for a row
// that fails VerifyRow. Values below zero are ignored.
func WithRowRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.RowRetries = retries
		}
	}
}

// WithErase enables a full-device erase pass before rows are written.
func WithErase(erase bool) Option {
	return func(c *Config) { c.Erase = erase }
}

// WithPSoC5 selects the PSoC5 metadata footer offset.
func WithPSoC5(psoc5 bool) Option {
	return func(c *Config) { c.PSoC5 = psoc5 }
}

// WithDowngradeDecider overrides how a newer-on-device application version
// is handled. Use AlwaysAllow, AlwaysReject, or an interactive prompt.
func WithDowngradeDecider(decider DowngradeDecider) Option {
	return func(c *Config) {
		if decider != nil {
			c.DowngradeDecider = decider
		}
	}
}

// WithNewAppDecider overrides how a changed application id is handled.
func WithNewAppDecider(decider NewAppDecider) Option {
	return func(c *Config) {
		if decider != nil {
			c.NewAppDecider = decider
		}
	}
}
