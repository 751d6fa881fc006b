//go:build windows
// +build windows

package spanninglib

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type monitorRect struct {
	left   int32
	top    int32
	right  int32
	bottom int32
}

// DesktopWallpaper does not extend IDispatch so this needs to be done manually
type IDesktopWallpaperVtbl struct {
	QueryInterface            uintptr
	AddRef                    uintptr
	Release                   uintptr
	SetWallpaper              uintptr
	GetWallpaper              uintptr
	GetMonitorDevicePathAt    uintptr
	GetMonitorDevicePathCount uintptr
	GetMonitorRECT            uintptr
}

// Pulled from headers
const CLSID = "{C2CF3110-460E-4fc1-B9D0-8A1C0C9CC4BD}"
const IID = "{B92B56A9-8B55-4E14-9A89-0199BBB6F93B}"

// Monitor is counted but isn't attached to the computer
const S_FALSE = uintptr(2147500037)

const (
	spiSetDeskWallpaper  = 0x14
	spifUpdateIniFile    = 0x01
	spifSendWinIniChange = 0x02
)

var sysProcAttr = &syscall.SysProcAttr{HideWindow: true}

var modole32 = windows.NewLazySystemDLL("ole32.dll")
var coTaskMemFree = modole32.NewProc("CoTaskMemFree")

var moduser32 = windows.NewLazySystemDLL("user32.dll")
var systemParametersInfo = moduser32.NewProc("SystemParametersInfoW")

// QueryDisplays returns monitor rectangles in Windows coordinates, where the
// primary display's top-left is (0,0) and others may be negative.
func QueryDisplays() ([]Rect, error) {
	err := ole.CoInitialize(0)
	if err != nil {
		return nil, err
	}
	defer ole.CoUninitialize()

	desktop, err := ole.CreateInstance(
		ole.NewGUID(CLSID),
		ole.NewGUID(IID))
	if err != nil {
		return nil, err
	}
	defer desktop.Release()

	vtable := (*IDesktopWallpaperVtbl)(unsafe.Pointer(desktop.RawVTable))

	var count uint32

	hr, _, err := syscall.Syscall(
		vtable.GetMonitorDevicePathCount,
		2,
		uintptr(unsafe.Pointer(desktop)),
		uintptr(unsafe.Pointer(&count)),
		0)
	if hr != 0 {
		return nil, fmt.Errorf(
			"Unexpected value from GetMonitorDevicePathCount %d %v", hr, err)
	}

	rects := []Rect{}
	for i := uint32(0); i < count; i++ {
		var pathOut *uint16

		hr, _, err = syscall.Syscall(
			vtable.GetMonitorDevicePathAt,
			3,
			uintptr(unsafe.Pointer(desktop)),
			uintptr(i),
			uintptr(unsafe.Pointer(&pathOut)))
		if hr != 0 {
			return nil, fmt.Errorf(
				"Unexpected value from GetMonitorDevicePathAt %d %v", hr, err)
		}

		m := monitorRect{}
		rectHR, _, _ := syscall.Syscall(
			vtable.GetMonitorRECT,
			3,
			uintptr(unsafe.Pointer(desktop)),
			uintptr(unsafe.Pointer(pathOut)),
			uintptr(unsafe.Pointer(&m)))

		// Memory allocated outside of Go's control
		_, _, _ = syscall.Syscall(
			coTaskMemFree.Addr(),
			1,
			uintptr(unsafe.Pointer(pathOut)),
			0,
			0)

		if rectHR == S_FALSE {
			continue
		}
		if rectHR != 0 {
			return nil, fmt.Errorf("Unexpected value from GetMonitorRECT %d", rectHR)
		}

		rects = append(rects, Rect{
			X:      int(m.left),
			Y:      int(m.top),
			Width:  int(m.right - m.left),
			Height: int(m.bottom - m.top),
		})
	}

	return rects, nil
}

// SetSpanningWallpaper tiles the composite from the primary display's
// top-left, which is why it has to be wrapped first.
func SetSpanningWallpaper(path string, l Layout) error {
	if !l.NeedsWrap() && len(l.Displays) > 1 {
		log.Debugln("Tiling an image that was not wrapped for the primary display")
	}

	err := setTiledRegistryKeys()
	if err != nil {
		return err
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}

	ret, _, err := systemParametersInfo.Call(
		spiSetDeskWallpaper,
		0,
		uintptr(unsafe.Pointer(p)),
		spifUpdateIniFile|spifSendWinIniChange)
	if ret == 0 {
		return fmt.Errorf("SystemParametersInfoW failed: %v", err)
	}
	return nil
}

func setTiledRegistryKeys() error {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Control Panel\Desktop`, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer k.Close()

	err = k.SetStringValue("WallpaperStyle", "0")
	if err != nil {
		return err
	}

	err = k.SetStringValue("TileWallpaper", "1")
	if err != nil {
		return err
	}

	err = k.SetDWordValue("JPEGImportQuality", 100)
	return err
}

const ATTACH_PARENT_PROCESS = uintptr(^uint32(0)) // (DWORD)-1

var modkernel32 = windows.NewLazySystemDLL("kernel32.dll")
var procAttachConsole = modkernel32.NewProc("AttachConsole")

// Attempts to attach to the parent console if one exists so we can get stdout
// See https://stackoverflow.com/questions/23743217/
func AttachParentConsole() {
	r, _, _ := procAttachConsole.Call(ATTACH_PARENT_PROCESS)
	if r == 0 {
		return
	}

	hout, err := syscall.GetStdHandle(syscall.STD_OUTPUT_HANDLE)
	if err != nil {
		return
	}
	herr, err := syscall.GetStdHandle(syscall.STD_ERROR_HANDLE)
	if err != nil {
		return
	}

	os.Stdout = os.NewFile(uintptr(hout), "/dev/stdout")
	os.Stderr = os.NewFile(uintptr(herr), "/dev/stderr")
}
