// Package httpx JSON envelope, error mapping and typed handlers for the gin routes
package httpx

// ErrorLoggingConfig the server.error_logging section
type ErrorLoggingConfig struct {
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus statuses never logged; 429 is the usual entry
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// FullErrorChain log the wrapped cause, not just code and message
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel error (default), warn or info
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultErrorLoggingConfig logging off, full chain at error level once enabled
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{FullErrorChain: true, LogLevel: "error"}
}
