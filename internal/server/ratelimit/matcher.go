package ratelimit

import (
	"strings"
)

// unlimited paths are never rate limited
var unlimited = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// Returns the matching EndpointConfig or nil if no match is found.
// Configs whose path ends with "/" match by prefix ("/runs/" matches "/runs/{id}/logs").
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if unlimited[path] && method == "GET" {
		return &EndpointConfig{Path: path, Method: method}
	}

	for i := range configs {
		config := &configs[i]
		if config.Path == path && config.Method == method {
			return config
		}
	}

	for i := range configs {
		config := &configs[i]
		if config.Method == method && strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			return config
		}
	}

	return nil
}
