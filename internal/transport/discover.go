package transport

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// DiscoverSPIDevices enumerates /dev/spidevN.M nodes through udev.
// github.com/jochenvg/go-udev is declared in the teacher's go.mod but
// never actually imported there — cm108.go's USB HID enumeration goes
// through cgo's libudev.h directly instead. This gives the Go wrapper
// its first real caller: enumerating the "spidev" subsystem so a caller
// can pick a bus device without hardcoding "/dev/spidev0.0".
func DiscoverSPIDevices() ([]string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("spidev"); err != nil {
		return nil, fmt.Errorf("transport: udev match spidev: %w", err)
	}
	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("transport: udev enumerate: %w", err)
	}
	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		if p := d.Devnode(); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}
