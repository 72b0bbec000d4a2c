package wapi

import (
	"fmt"
	"net/http"
	"time"
)

// WithTimeout sets the bound on each network exchange.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithCache enables the response cache. Whether a response is stored is still
// decided per request by its content name and cache time.
func WithCache() Option {
	return func(c *Client) {
		c.cacheEnabled = true
	}
}

// WithCacheCapacity bounds the number of cached responses per content name.
func WithCacheCapacity(n int) Option {
	return func(c *Client) {
		c.cacheCapacity = n
	}
}

// WithAllowDuplicates controls duplicate suppression. With allow set, identical
// requests that overlap each run their own exchange.
func WithAllowDuplicates(allow bool) Option {
	return func(c *Client) {
		c.allowDuplicates = allow
	}
}

// WithPersistentURLParameter adds a parameter sent with every request.
func WithPersistentURLParameter(name, value string) Option {
	return func(c *Client) {
		c.persistentParams.Set(name, value)
	}
}

// WithHTTPClient sets the http.Client used by the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
		c.customTransport = true
	}
}

// WithMiddleware adds middleware to the default transport.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithMaxConcurrency limits how many network exchanges run at once. Started
// requests beyond the limit wait for a slot. Zero means no limit.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		c.maxConcurrency = n
	}
}

// WithDispatcher routes every listener callback through dispatch.
func WithDispatcher(dispatch Dispatcher) Option {
	return func(c *Client) {
		c.dispatcher = dispatch
	}
}

// WithMetrics records client metrics on the default Prometheus registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector records client metrics on collector, which may use its
// own registry.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug turns on the debug categories of the current DebugConfig. Output
// needs a logger, see WithLogger.
func WithDebug() Option {
	return func(c *Client) {
		c.debugConfig().Enabled = true
	}
}

// WithDebugConfig replaces the debug settings. A nil config turns debug
// output off.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger is WithDebug plus a slog text logger on stderr.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.debugConfig().Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets how debug output labels each started request.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.debugConfig().RequestIDGen = gen
	}
}

// debugConfig returns the debug settings, installing the defaults when none
// are set.
func (c *Client) debugConfig() *DebugConfig {
	if c.debug == nil {
		c.debug = DefaultDebugConfig()
	}
	return c.debug
}

// ValidateConfiguration checks every configuration section and reports all
// problems found in one ClientError of type ErrorTypeValidation.
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateTimeoutConfig()...)
	errors = append(errors, c.validateCacheConfig()...)
	errors = append(errors, c.validateConcurrencyConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateBaseURL() []string {
	if c.baseURL == "" {
		return []string{"baseURL must not be empty"}
	}
	return nil
}

func (c *Client) validateTimeoutConfig() []string {
	var errors []string

	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}
	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}

func (c *Client) validateCacheConfig() []string {
	var errors []string

	if c.cacheCapacity < 0 {
		errors = append(errors, "cacheCapacity must be non-negative")
	}

	return errors
}

func (c *Client) validateConcurrencyConfig() []string {
	var errors []string

	if c.maxConcurrency < 0 {
		errors = append(errors, "maxConcurrency must be non-negative")
	}

	return errors
}

func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.customTransport && c.transport == nil {
		errors = append(errors, "transport cannot be nil")
	}
	if !c.customTransport && c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}
	if c.customTransport && len(c.middleware) > 0 {
		errors = append(errors, "middleware requires the default HTTP transport")
	}

	return errors
}
