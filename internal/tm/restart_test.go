package tm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoRestartAliasesNumRestartReasons(t *testing.T) {
	assert.Equal(t, RestartReason(numRestartReasons), NoRestart)
	assert.Equal(t, "NO_RESTART", NoRestart.String())
}

func TestRestartReasonString(t *testing.T) {
	assert.Equal(t, "LOCKED_READ", RestartLockedRead.String())
	assert.Equal(t, "VALIDATE_WRITE", RestartValidateWrite.String())
	assert.Equal(t, "UNKNOWN_RESTART_REASON", RestartReason(999).String())
}

func TestPropertiesHas(t *testing.T) {
	p := PropReadOnly | PropHasNoAbort
	assert.True(t, p.has(PropReadOnly))
	assert.True(t, p.has(PropHasNoAbort))
	assert.False(t, p.has(PropUndoLogCode))
}
