package observatory

import (
	"github.com/BerriAI/litellm-observatory/model/types"
	"github.com/BerriAI/litellm-observatory/service/executor"
	"github.com/BerriAI/litellm-observatory/service/lifecycle"
	"github.com/BerriAI/litellm-observatory/service/notifier"
	"github.com/BerriAI/litellm-observatory/tracing"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the observatory service
type Option func(s *Service)

// WithConfig sets the whole configuration at once.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithMaxConcurrentTests sets the global concurrency ceiling
func WithMaxConcurrentTests(count int) Option {
	return func(s *Service) { s.config.MaxConcurrentTests = count }
}

// WithCompletedHistoryLimit sets the terminal-history retention bound
func WithCompletedHistoryLimit(limit int) Option {
	return func(s *Service) { s.config.CompletedHistoryLimit = limit }
}

// WithLifecycleStore sets the lifecycle store
func WithLifecycleStore(store lifecycle.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithNotifier sets the notification sink
func WithNotifier(aNotifier notifier.Notifier) Option {
	return func(s *Service) { s.notifier = aNotifier }
}

// WithSuites registers additional test suites
func WithSuites(suites ...types.Suite) Option {
	return func(s *Service) {
		s.extensionSuites = append(s.extensionSuites, suites...)
	}
}

// WithExtensionTypes sets the extension types
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = append(s.extensionTypes, types...)
	}
}

// WithExecutorOptions lets the caller supply additional options passed to
// executor.NewService (e.g. disabling the default LogListener).
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Service) {
		s.executorOptions = append(s.executorOptions, opts...)
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The function is safe to call multiple times – the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, enabling integrations with exporters other than the built-in
// stdout one (OTLP, Jaeger, Zipkin).
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
