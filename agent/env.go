package agent

import (
	"strings"

	"orca-agent-backend/types"
)

// EnvConfig carries what the agent process needs to reach the gateway
type EnvConfig struct {
	Token       string
	Environment string
	// GatewayURL is the Grazie base URL for Environment
	GatewayURL string
	// ProxyURL, when set, is a local Anthropic-compatible proxy that the
	// Claude CLI talks to instead of the gateway directly
	ProxyURL string
	GitToken string
}

// Environment returns the KEY=VALUE entries added to the agent's environment
func Environment(kind AgentKind, cfg EnvConfig) []string {
	env := []string{
		"GRAZIE_API_TOKEN=" + cfg.Token,
		"GRAZIE_ENVIRONMENT=" + cfg.Environment,
	}

	if kind == types.AgentClaudeCode {
		baseURL := strings.TrimRight(cfg.ProxyURL, "/")
		if baseURL == "" {
			baseURL = strings.TrimRight(cfg.GatewayURL, "/") + "/anthropic/v1"
		}
		env = append(env,
			"ANTHROPIC_API_KEY=use-grazie-token",
			"ANTHROPIC_BASE_URL="+baseURL,
		)
	}

	if cfg.GitToken != "" {
		env = append(env, "GITHUB_TOKEN="+cfg.GitToken)
	}
	return env
}
