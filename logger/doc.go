// Package logger provides structured logging for fetchguard components
// using zerolog.
//
// Every component logs through a component-scoped logger obtained from the
// registry unless the caller injects one:
//
//	log := logger.Get(logger.ComponentLimiter)
//	log.Info("waiting for window slot", logger.Fields(logger.FieldLimiter, "api", logger.FieldWaitMs, 250))
//
// RegisterComponents seeds the registry once at startup, applying any
// per-component level:
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  components:
//	    proxy: "debug"
package logger
