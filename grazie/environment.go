// Package grazie talks to the JetBrains AI (Grazie) LLM gateway: token
// checks, model discovery, chat and an Anthropic-compatible reverse proxy.
package grazie

import "strings"

const (
	EnvironmentProduction = "PRODUCTION"
	EnvironmentStaging    = "STAGING"
	EnvironmentPreprod    = "PREPROD"

	productionURL = "https://api.jetbrains.ai/user/v5/llm"
	stagingURL    = "https://api.stgn.jetbrains.ai/user/v5/llm"
	preprodURL    = "https://api-preprod.jetbrains.ai/user/v5/llm"
)

// AuthHeader carries the user's Grazie JWT on every gateway request
const AuthHeader = "Grazie-Authenticate-JWT"

// NormalizeEnvironment upper-cases env and falls back to PREPROD when empty
func NormalizeEnvironment(env string) string {
	env = strings.ToUpper(strings.TrimSpace(env))
	if env == "" {
		return EnvironmentPreprod
	}
	return env
}

// BaseURLFor maps an environment name to the gateway base URL. Unknown
// names resolve to preprod.
func BaseURLFor(env string) string {
	switch NormalizeEnvironment(env) {
	case EnvironmentProduction:
		return productionURL
	case EnvironmentStaging:
		return stagingURL
	default:
		return preprodURL
	}
}

// Resolver returns a function that prefers override over the per-environment URL
func Resolver(override string) func(env string) string {
	override = strings.TrimRight(strings.TrimSpace(override), "/")
	return func(env string) string {
		if override != "" {
			return override
		}
		return BaseURLFor(env)
	}
}
