package audio

import (
	"fmt"
	"sync"
)

// Registry lists capture devices of a Context and remembers which input the
// user picked for this process.
type Registry struct {
	ctx Context

	mu       sync.Mutex
	selected *DeviceInfo
}

func NewRegistry(ctx Context) *Registry {
	return &Registry{ctx: ctx}
}

// ListInputDevices returns the microphones, monitors excluded.
func (r *Registry) ListInputDevices() ([]DeviceInfo, error) {
	all, err := r.ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	var inputs []DeviceInfo
	for _, d := range all {
		if !d.IsMonitor {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// MonitorDevices returns the sources that capture system playback.
func (r *Registry) MonitorDevices() ([]DeviceInfo, error) {
	all, err := r.ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	var monitors []DeviceInfo
	for _, d := range all {
		if d.IsMonitor {
			monitors = append(monitors, d)
		}
	}
	return monitors, nil
}

// DefaultInputDevice returns the selected input if still present, else the
// platform default, else the first input. It returns nil without error when
// there are no inputs at all.
func (r *Registry) DefaultInputDevice() (*DeviceInfo, error) {
	inputs, err := r.ListInputDevices()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	sel := r.selected
	r.mu.Unlock()

	if sel != nil {
		for i := range inputs {
			if inputs[i].ID == sel.ID {
				return &inputs[i], nil
			}
		}
	}
	for i := range inputs {
		if inputs[i].IsDefault {
			return &inputs[i], nil
		}
	}
	if len(inputs) > 0 {
		return &inputs[0], nil
	}
	return nil, nil
}

// SetDefaultInputDevice selects d for later captures. It reports false when
// d is not a known input.
func (r *Registry) SetDefaultInputDevice(d DeviceInfo) bool {
	inputs, err := r.ListInputDevices()
	if err != nil {
		return false
	}
	for _, in := range inputs {
		if in.ID == d.ID {
			r.mu.Lock()
			r.selected = &in
			r.mu.Unlock()
			return true
		}
	}
	return false
}

// FindInput looks an input up by ID or name.
func (r *Registry) FindInput(nameOrID string) (*DeviceInfo, bool) {
	inputs, err := r.ListInputDevices()
	if err != nil {
		return nil, false
	}
	for i := range inputs {
		if inputs[i].ID == nameOrID || inputs[i].Name == nameOrID {
			return &inputs[i], true
		}
	}
	return nil, false
}

// SystemSource returns the monitor to capture for system audio, preferring
// the one marked default.
func (r *Registry) SystemSource() (*DeviceInfo, error) {
	monitors, err := r.MonitorDevices()
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, ErrNoMonitorSource
	}
	for i := range monitors {
		if monitors[i].IsDefault {
			return &monitors[i], nil
		}
	}
	return &monitors[0], nil
}
