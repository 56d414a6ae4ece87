package provision

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile is written inside a dependency directory once every step for
// that dependency has succeeded.
const MarkerFile = ".setupenv-complete"

// State is the completion state of a dependency directory.
type State int

const (
	StateMissing    State = iota // directory absent
	StateIncomplete              // directory present, no marker
	StateComplete                // marker present
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateIncomplete:
		return "incomplete"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Marker is the content of MarkerFile.
type Marker struct {
	Name      string    `json:"name"`
	Version   string    `json:"version,omitempty"`
	Ref       string    `json:"ref,omitempty"`
	Completed time.Time `json:"completed"`
}

// Inspect reports the completion state of dir.
func Inspect(dir string) (State, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return StateMissing, nil
	}
	if err != nil {
		return StateMissing, err
	}
	if !info.IsDir() {
		return StateIncomplete, nil
	}

	_, err = os.Stat(filepath.Join(dir, MarkerFile))
	switch {
	case err == nil:
		return StateComplete, nil
	case errors.Is(err, fs.ErrNotExist):
		return StateIncomplete, nil
	default:
		return StateMissing, err
	}
}

// MarkComplete writes the marker atomically: a temporary file is renamed
// into place, so an interrupted write never reads as complete.
func MarkComplete(dir string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, MarkerFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing completion marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing completion marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, MarkerFile))
}

// ReadMarker loads the marker from dir.
func ReadMarker(dir string) (Marker, error) {
	var m Marker
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%s: %w", filepath.Join(dir, MarkerFile), err)
	}
	return m, nil
}
