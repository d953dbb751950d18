//go:build !linux && !darwin

package utils

func setSocketBuffers(fd uintptr, size int) {}
