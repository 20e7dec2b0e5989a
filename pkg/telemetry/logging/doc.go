// Package logging configures structured logging for readbreak.
//
// The package wraps log/slog. New builds a *slog.Logger from a level and a
// format ("json", "text" or "console") whose handler also copies run
// metadata carried in a context.Context (run id, read id, step id,
// pipeline, trace and span ids) into every record logged with a
// *Context method:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	ctx = logging.WithRunID(ctx, state.ID)
//	logger.InfoContext(ctx, "processing reads") // includes run_id
package logging
