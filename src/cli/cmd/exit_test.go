package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/setupenv/src/env"
	"github.com/sofmeright/setupenv/src/fetch"
	"github.com/sofmeright/setupenv/src/provision"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing var", fmt.Errorf("validate-env: %w", env.ErrMissingVar), exitEnv},
		{"forbidden var", fmt.Errorf("validate-env: %w", env.ErrForbiddenVar), exitEnv},
		{"no conduit", fmt.Errorf("discover-conduit: %w", env.ErrNoConduit), exitEnv},
		{"digest", fmt.Errorf("cmake: %w", fetch.ErrDigestMismatch), exitIntegrity},
		{"incomplete", fmt.Errorf("llvm: %w", provision.ErrIncomplete), exitIncomplete},
		{"other", errors.New("make: exit status 2"), exitFailure},
		{"already classified", &ExitError{Code: exitConfig, Err: errors.New("bad config")}, exitConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitErr *ExitError
			require.ErrorAs(t, classify(tt.err), &exitErr)
			assert.Equal(t, tt.want, exitErr.Code)
			assert.ErrorIs(t, exitErr, tt.err)
		})
	}
	assert.NoError(t, classify(nil))
}
