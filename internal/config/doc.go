// Package config handles configuration loading for the academa portal.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	sessions:
//	  token_secret: "${ACADEMA_TOKEN_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  ttl: "24h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # Portal pages and API
//
// ProfileStore service:
//
//	profilestore:
//	  base_url: "http://localhost:9090"  # How the portal reaches the store
//	  http_addr: "0.0.0.0:9090"          # Bundled service listen address
//	  database_path: "/var/lib/academa/profiles.db"
//
// Identity:
//
//	identity:
//	  bcrypt_cost: 10   # 0 selects the library default
//
// Browser sessions:
//
//	sessions:
//	  token_secret: "${ACADEMA_TOKEN_SECRET}"  # Required
//	  ttl: "24h"
//
// Route guard:
//
//	guard:
//	  protected_paths: ["/profile", "/my-college", "/colleges/*"]
//	  sign_in_path: "/login"
//	  default_path: "/"
//
// Interactive sign-in providers:
//
//	oauth:
//	  google:
//	    client_id: "${GOOGLE_CLIENT_ID}"
//	    client_secret: "${GOOGLE_CLIENT_SECRET}"
//	    auth_url: "https://accounts.google.com/o/oauth2/auth"
//	    token_url: "https://oauth2.googleapis.com/token"
//	    userinfo_url: "https://openidconnect.googleapis.com/v1/userinfo"
//	    redirect_url: "http://localhost:8080/oauth/callback"
//	    scopes: ["openid", "profile", "email"]
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Portal and ProfileStore addresses are present
//   - Session token secret is present
//   - Each oauth provider entry is complete
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/academa/portal.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
