package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsInnermostCode(t *testing.T) {
	base := ConfigInvalid("bad timeunit")
	err := Wrapf(Wrap(base, "test amp"), "load %s", "test.yaml")

	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.True(t, HasCode(err, CodeConfigInvalid))
	assert.Equal(t, "load test.yaml: test amp: bad timeunit", err.Error())
	assert.True(t, stderrors.Is(err, base))
}

func TestWrapPlainError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, "write csv")

	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(cause))
}

func TestWithCodeAndHasCode(t *testing.T) {
	err := WithCode(CodeNotFound, Wrap(DatabaseError("no rows"), "run 1"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, HasCode(err, CodeNotFound))
	assert.True(t, HasCode(err, CodeDatabaseError))
	assert.False(t, HasCode(err, CodeSimulationFailure))
	assert.True(t, IsAppError(err))
}

func TestConstructors(t *testing.T) {
	sim := SimulationFailure("/run/0", fmt.Errorf("exit 1"))
	assert.Equal(t, "simulation in /run/0 failed: exit 1", sim.Error())
	assert.Equal(t, CodeRegressionSingular, RegressionSingular("vout").Code)
	assert.Equal(t, "model not found", NotFound("model").Error())
	assert.Equal(t, CodeExternalService, ExternalServiceError("agent", nil).Code)
}
