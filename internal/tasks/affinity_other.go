//go:build !linux

package tasks

import "errors"

func pinCurrentThread(cpu int) error {
	return errors.New("cpu affinity not supported on this platform")
}
