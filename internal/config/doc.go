// Package config handles configuration loading for qmserver.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. The package provides validation and sensible defaults; a missing
// file is fine, in which case defaults and environment variables apply.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${JWT_SECRET_KEY}"
//
// Syntax: ${VAR_NAME}
//
// A handful of settings also fall back to well-known environment variables
// when the file leaves them unset: MODULES_REPO_URL, MODULES_REPO_TOKEN,
// JWT_SECRET_KEY, and APP_LOG_LEVEL.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	modules:
//	  fetch_timeout: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: ":8000"
//	  cors_origins:
//	    - "http://localhost:5173"
//	    - "http://localhost:5174"
//
// Module repository settings:
//
//	modules:
//	  repo_url: "https://gitlab.com/example/modules.git"
//	  repo_token: "${MODULES_REPO_TOKEN}"
//	  install_root: "./modules"
//	  enabled: ["sqlite"]
//	  source: "branch"   # or "directory"
//	  fetch_timeout: "60s"
//
// Authentication and logging:
//
//	auth:
//	  jwt_secret: "${JWT_SECRET_KEY}"
//	logging:
//	  level: "info"
//	  format: "text"
package config
