// Package logging provides structured logging for projectd.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Automatic context field injection (trace_id, span_id, request.id, user.id)
//   - Encoder-level secret redaction for field names and value patterns
//   - Per-level sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromSettings("info", "json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Components take the underlying *zap.Logger:
//
//	mgr, err := project.NewManager(store, project.ManagerConfig{}, logger.Underlying())
//
// Request handlers log with context so correlation fields are attached:
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	ctx = logging.WithUserID(ctx, userID)
//	logger.Info(ctx, "request processed", zap.Duration("duration", d))
//
// # Secret Redaction
//
// Secrets are redacted at multiple layers:
//  1. Domain primitives (config.Secret type, logging.Secret field)
//  2. Encoder-level field name filtering (jwt_secret, mongo_uri, ...)
//  3. Encoder-level pattern matching (bearer tokens, credentialed URIs)
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
package logging
