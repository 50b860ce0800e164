package service

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already exists")
	ErrTimerNotFound  = errors.New("timer not found")
	ErrInvalidDevice  = errors.New("invalid device")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidTimer   = errors.New("invalid timer")

	ErrDeviceOffline  = errors.New("device is offline")
	ErrDeviceRejected = errors.New("device rejected the update")
)

// SyncError reports a change that was stored but could not be applied on
// the device. Err is one of ErrDeviceOffline, ErrDeviceRejected or a
// gateway timeout/close error.
type SyncError struct {
	DeviceID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync device %s: %v", e.DeviceID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
