package devices

import (
	"context"
)

// DeviceType classifies a V4L2 device by what kind of signal it presents.
type DeviceType int

const (
	DeviceTypeWebcam  DeviceType = 0
	DeviceTypeHDMI    DeviceType = 1
	DeviceTypeUnknown DeviceType = -1
)

// DeviceInfo represents information about a V4L2 device
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceId   string
	Caps       uint32
	Ready      bool
	Type       DeviceType
}

// EventBroadcaster interface for broadcasting device events
type EventBroadcaster interface {
	BroadcastDeviceDiscovery(action string, device DeviceInfo, timestamp string)
}

// FormatInfo represents information about a video format
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a video resolution
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a video framerate
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// ControlType identifies the shape of a device control's value.
type ControlType int

const (
	ControlTypeUnknown ControlType = iota
	ControlTypeInteger
	ControlTypeBoolean
	ControlTypeMenu
)

// MenuItem is one option of a ControlTypeMenu control.
type MenuItem struct {
	Index int32
	Name  string
}

// ControlInfo describes one controllable device parameter and its current
// value.
type ControlInfo struct {
	ID      uint32
	Name    string
	Type    ControlType
	Min     int32
	Max     int32
	Step    int32
	Default int32
	Value   int32
	Menu    []MenuItem
}

// DeviceDetector provides platform-specific device detection
type DeviceDetector interface {
	// FindDevices returns all currently available V4L2 devices
	FindDevices() ([]DeviceInfo, error)

	// GetDeviceFormats returns supported formats for a device
	GetDeviceFormats(devicePath string) ([]FormatInfo, error)

	// GetDevicePathByID returns the device path for a given device ID
	GetDevicePathByID(deviceID string) (string, error)

	// GetDeviceResolutions returns supported resolutions for a format
	GetDeviceResolutions(devicePath string, pixelFormat uint32) ([]Resolution, error)

	// GetDeviceFramerates returns supported framerates for a resolution
	GetDeviceFramerates(devicePath string, pixelFormat uint32, width, height uint32) ([]Framerate, error)

	// GetControls returns the controllable parameters exposed by a device.
	GetControls(devicePath string) ([]ControlInfo, error)

	// SetControl applies value to the control identified by id on a device.
	SetControl(devicePath string, id uint32, value int32) error

	// StartMonitoring starts monitoring for device changes
	StartMonitoring(ctx context.Context, broadcaster EventBroadcaster) error

	// StopMonitoring stops the device monitoring
	StopMonitoring()
}

// NewDetector creates a platform-specific device detector
func NewDetector() DeviceDetector {
	return newDetector()
}

// ConvertToAPIDeviceInfo converts internal DeviceInfo to API model
func ConvertToAPIDeviceInfo(device DeviceInfo) interface{} {
	// This will be used to convert to api/models.DeviceInfo
	// We'll update this when we refactor the imports
	return struct {
		DevicePath string
		DeviceName string
		DeviceId   string
		Caps       uint32
	}{
		DevicePath: device.DevicePath,
		DeviceName: device.DeviceName,
		DeviceId:   device.DeviceId,
		Caps:       device.Caps,
	}
}
