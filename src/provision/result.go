package provision

import (
	"time"

	"github.com/sofmeright/setupenv/src/env"
)

// Step statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusCached  = "cached"
)

// Result captures the outcome of a provisioning run.
type Result struct {
	Conduit   env.Conduit
	Layout    Layout
	Steps     []StepResult
	Installed bool
	Duration  time.Duration
}

// StepResult captures the outcome of a single dependency or the installer.
type StepResult struct {
	Name     string
	Dir      string
	Status   string // "success", "failed", "cached"
	Duration time.Duration
	Error    error
}
