package utils_test

import (
	"errors"
	"os"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/revel/devproxy/utils"
	"github.com/stretchr/testify/assert"
)

func TestSpawnErrorWrapsCause(t *testing.T) {
	err := utils.NewSpawnError(os.ErrNotExist, "python manage.py runserver", "fec")

	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, os.ErrNotExist, pkgerrors.Cause(err))
	assert.Contains(t, err.Error(), "python manage.py runserver")
	assert.NotEmpty(t, err.Stack)
	assert.True(t, utils.IsFatal(err))
}

func TestBindErrorIsDetectable(t *testing.T) {
	wrapped := utils.Wrapf(utils.NewBindError(errors.New("address already in use"), ":8010"), "proxy")

	var bindErr *utils.BindError
	assert.True(t, errors.As(wrapped, &bindErr))
	assert.Equal(t, ":8010", bindErr.Addr)
	assert.True(t, utils.IsFatal(wrapped))
}

func TestBackendCrashIsNotFatal(t *testing.T) {
	crash := &utils.BackendCrash{Pid: 10, ExitCode: 1, Status: "exit status 1"}
	assert.False(t, utils.IsFatal(crash))
	assert.False(t, utils.IsFatal(nil))
	assert.Equal(t, "backend (pid 10) exited: exit status 1", crash.Error())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"**/*.css", "**/*.py"}, utils.SplitList(" **/*.css, ,**/*.py "))
	assert.Nil(t, utils.SplitList(""))
}
