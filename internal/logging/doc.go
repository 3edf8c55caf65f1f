// Package logging provides structured debug logging for mb runs.
//
// This package wraps Go's log/slog to write JSON-formatted logs to
// .mb/logs/debug.log inside the workspace. The debug log is separate from
// the per-stage build logs: it traces what the store, the agents and the
// orchestrator did so a failed run can be analyzed after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".mb/logs", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("package published", "storage_id", "APP", "hash", hash)
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	stageLogger := logger.WithStage("build").WithStorage("APP")
//	stageLogger.Info("downloaded inbox package", "hash", hash)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"downloaded inbox package","stage":"build","storage_id":"APP","hash":"..."}
//
// # Log Rotation
//
// The debug log is rotated once it exceeds RotationConfig.MaxSizeMB. Rotated
// files are named debug.log.1, debug.log.2, etc., where .1 is the most recent
// backup, and become debug.log.1.gz when compression is enabled.
//
// # Testing
//
// Use [NopLogger] to discard all log output.
package logging
