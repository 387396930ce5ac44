package git

import "fmt"

// Level grades the outcome of a workflow step
type Level int

const (
	LevelOK Level = iota
	LevelWarning
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelFatal:
		return "fatal"
	default:
		return "ok"
	}
}

// StepResult is returned by every Driver operation. Only clone failures are
// fatal; everything after the clone degrades to a warning.
type StepResult struct {
	Step    string
	Level   Level
	Message string
}

func ok(step, format string, args ...any) StepResult {
	return StepResult{Step: step, Level: LevelOK, Message: fmt.Sprintf(format, args...)}
}

func warning(step, format string, args ...any) StepResult {
	return StepResult{Step: step, Level: LevelWarning, Message: fmt.Sprintf(format, args...)}
}

func fatal(step, format string, args ...any) StepResult {
	return StepResult{Step: step, Level: LevelFatal, Message: fmt.Sprintf(format, args...)}
}

func (r StepResult) OK() bool      { return r.Level == LevelOK }
func (r StepResult) IsFatal() bool { return r.Level == LevelFatal }

func (r StepResult) String() string {
	return fmt.Sprintf("%s [%s]: %s", r.Step, r.Level, r.Message)
}
