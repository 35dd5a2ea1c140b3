// Package logging defines CoderLang's logging surface.
//
// Components take the four-method Logger interface so any structured
// logger can be injected. The package ships three implementations:
//
//   - ContextLogger, the default, built on slog with component / session /
//     run scoping and structured tool, model and flow records
//   - SlogAdapter for callers that already hold a *slog.Logger
//   - NoOpLogger for tests and silent setups
//
// Typical wiring:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	cl, err := coderlang.New(ctx, func(o *coderlang.Options) {
//		o.Logger = logger
//	})
package logging
