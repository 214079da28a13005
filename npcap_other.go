//go:build !windows

package datalink

import (
	"runtime"

	"github.com/pkg/errors"
)

func defaultDriver() (Driver, error) {
	return nil, errors.WithMessagef(ErrNoDriver, "platform %s", runtime.GOOS)
}
