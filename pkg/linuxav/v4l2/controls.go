//go:build linux

package v4l2

import (
	"fmt"
	"unsafe"
)

const (
	vidiocQueryCtrl = 0xc0445624
	vidiocGCtrl     = 0xc008561b
	vidiocSCtrl     = 0xc008561c
	vidiocQueryMenu = 0xc02c5625
)

// Control kinds, matching the v4l2_ctrl_type enum values this package cares
// about; anything else is reported as ControlTypeUnknown.
type ControlType int

const (
	ControlTypeUnknown ControlType = 0
	ControlTypeInteger ControlType = 1
	ControlTypeBoolean ControlType = 2
	ControlTypeMenu    ControlType = 3
)

const v4l2CtrlFlagDisabled = 0x0001
const v4l2CtrlFlagNextCtrl = 0x80000000

// ControlInfo describes one V4L2 control as reported by VIDIOC_QUERYCTRL.
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

// MenuItem is one option of a ControlTypeMenu control.
type MenuItem struct {
	Index int32
	Name  string
}

type v4l2QueryMenu struct {
	id       uint32
	index    uint32
	name     [32]byte
	reserved uint32
}

type v4l2QueryCtrl struct {
	id           uint32
	typ          uint32
	name         [32]byte
	minimum      int32
	maximum      int32
	step         int32
	defaultValue int32
	flags        uint32
	reserved     [2]uint32
}

type v4l2Control struct {
	id    uint32
	value int32
}

// QueryControls enumerates all user-class controls a device exposes along
// with their current value. Disabled controls are skipped.
func QueryControls(devicePath string) ([]ControlInfo, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}
	defer close(fd)

	var controls []ControlInfo
	id := uint32(v4l2CtrlFlagNextCtrl)
	for {
		q := v4l2QueryCtrl{id: id}
		if err := ioctl(fd, vidiocQueryCtrl, unsafe.Pointer(&q)); err != nil {
			break
		}
		if q.flags&v4l2CtrlFlagDisabled == 0 {
			value, _ := getControlValue(fd, q.id)
			info := ControlInfo{
				ID:      q.id,
				Name:    cstr(q.name[:]),
				Type:    ControlType(q.typ),
				Min:     q.minimum,
				Max:     q.maximum,
				Step:    q.step,
				Default: q.defaultValue,
				Value:   value,
			}
			if info.Type == ControlTypeMenu {
				info.Menu = queryMenuItems(fd, q.id, q.minimum, q.maximum)
			}
			controls = append(controls, info)
		}
		id = q.id | v4l2CtrlFlagNextCtrl
	}
	return controls, nil
}

func queryMenuItems(fd int, id uint32, min, max int32) []MenuItem {
	var items []MenuItem
	for idx := min; idx <= max; idx++ {
		m := v4l2QueryMenu{id: id, index: uint32(idx)}
		if err := ioctl(fd, vidiocQueryMenu, unsafe.Pointer(&m)); err != nil {
			continue
		}
		items = append(items, MenuItem{Index: idx, Name: cstr(m.name[:])})
	}
	return items
}

func getControlValue(fd int, id uint32) (int32, error) {
	c := v4l2Control{id: id}
	if err := ioctl(fd, vidiocGCtrl, unsafe.Pointer(&c)); err != nil {
		return 0, err
	}
	return c.value, nil
}

// SetControl applies value to the control identified by id on devicePath.
func SetControl(devicePath string, id uint32, value int32) error {
	fd, err := open(devicePath)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer close(fd)

	c := v4l2Control{id: id, value: value}
	if err := ioctl(fd, vidiocSCtrl, unsafe.Pointer(&c)); err != nil {
		return fmt.Errorf("failed to set control %d: %w", id, err)
	}
	return nil
}
