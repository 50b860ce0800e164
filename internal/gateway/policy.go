package gateway

import (
	"errors"
	"fmt"

	"sonoff_server/internal/models"
)

// ErrUnknownDevice is returned when a device that is not in the store tries
// to register and the policy does not allow provisioning it.
var ErrUnknownDevice = errors.New("unknown device")

const defaultManufacturer = "Sonoff"

// RegistrationPolicy decides what happens when an unknown device registers.
type RegistrationPolicy interface {
	Provision(deviceID string) (*models.Device, error)
}

// AutoProvision creates a new device record named after its id.
type AutoProvision struct {
	Manufacturer string
}

func (p AutoProvision) Provision(deviceID string) (*models.Device, error) {
	d := models.NewDevice(deviceID)
	d.ManufacturerName = p.Manufacturer
	if d.ManufacturerName == "" {
		d.ManufacturerName = defaultManufacturer
	}
	return d, nil
}

// RejectUnknown refuses every device that was not created through the API.
type RejectUnknown struct{}

func (RejectUnknown) Provision(deviceID string) (*models.Device, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
}

// PolicyFor picks the policy matching the deployment mode.
func PolicyFor(multiUser bool) RegistrationPolicy {
	if multiUser {
		return RejectUnknown{}
	}
	return AutoProvision{Manufacturer: defaultManufacturer}
}
