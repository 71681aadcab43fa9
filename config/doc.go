// Package config provides configuration loading and validation for filegate.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (FILEGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with FILEGATE_ prefix:
//   - server.port → FILEGATE_SERVER_PORT
//   - store.endpoint → FILEGATE_STORE_ENDPOINT
//   - upload.allowed_extensions → FILEGATE_UPLOAD_ALLOWED_EXTENSIONS (comma separated)
//
// # Configuration Structure
//
// The Config struct contains:
//   - Env: "prod" switches logging to JSON
//   - Server: listen host, port and shutdown timeout
//   - Store: backend type (s3 or filesystem), connection settings, bucket,
//     and the per-call operation timeout
//   - Upload: maximum size in bytes and allowed extensions
//   - CORS: cross-origin resource sharing settings
//   - Metrics, Tracing: Prometheus endpoint and OpenTelemetry export
//   - Log: logging level
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Store type must be s3 or filesystem; s3 needs an endpoint, filesystem a path
//   - Bucket names are 3-63 characters
//   - Tracing sample ratio must be within 0-1
//   - Log level must be debug, info, warn, or error
package config
