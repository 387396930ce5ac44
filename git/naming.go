package git

import (
	"strings"
	"time"
)

const commitSubjectRunes = 50

// BranchName returns requested when set, otherwise agent-task-<timestamp>
func BranchName(requested string, now time.Time) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	return "agent-task-" + now.Format("20060102-150405")
}

// CommitMessage derives a commit subject from the first 50 characters of
// the task, with "..." appended when the task was longer.
func CommitMessage(task string) string {
	runes := []rune(strings.TrimSpace(task))
	if len(runes) <= commitSubjectRunes {
		return string(runes)
	}
	return string(runes[:commitSubjectRunes]) + "..."
}
