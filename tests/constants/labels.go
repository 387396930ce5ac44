// Package constants provides constants shared across test suites
package constants

// Test Label Constants - used for organizing and categorizing Ginkgo tests
const (
	// Top-level test categories
	LabelUnit        = "unit"
	LabelIntegration = "integration"

	// Package/area labels
	LabelHandlers     = "handlers"
	LabelOrchestrator = "orchestrator"
	LabelGit          = "git"
	LabelTypes        = "types"
	LabelCommon       = "common"

	// Specific component labels for handlers
	LabelAgent      = "agent"
	LabelSessions   = "sessions"
	LabelGitTask    = "git-task"
	LabelGrazie     = "grazie"
	LabelProxy      = "proxy"
	LabelMiddleware = "middleware"
	LabelRPC        = "rpc"
	LabelHealth     = "health"

	// Specific component labels for other areas
	LabelOperations = "operations" // for git operations
	LabelPool       = "pool"
)

// Environment variables read by the test configuration
const (
	EnvSkipGitTests = "SKIP_GIT_TESTS"
)
