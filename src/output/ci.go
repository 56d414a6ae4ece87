package output

import (
	"fmt"
	"io"
	"os"
	"time"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers. Long builds (LLVM) fold away in the
// job log; outside GitLab these are no-ops.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// StepLine prints a compact single-line step summary.
func StepLine(w io.Writer, name, status, detail string, elapsed time.Duration, color bool) {
	icon := StatusIcon(status, color)
	fmt.Fprintf(w, "  %-8s %s  %-50s (%s)\n", name, icon, detail, formatElapsed(elapsed))
}
