//go:build windows

package capture

// GDI screen grab: BitBlt the requested rectangle of the screen DC into a
// top-down 32-bit DIB section, then convert BGRA into a pooled RGBA frame.

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	smCxScreen   = 0
	smCyScreen   = 1
	srcCopy      = 0x00CC0020
	dibRGBColors = 0
	biRGB        = 0
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
)

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	_      [4]byte
}

// grabRect captures r clipped to the primary screen. The returned frame comes
// from the frame pool.
func grabRect(sel image.Rectangle) (*image.RGBA, bool, error) {
	screen := image.Rect(0, 0, int(systemMetric(smCxScreen)), int(systemMetric(smCyScreen)))
	r := sel.Intersect(screen)
	if r.Empty() {
		return nil, false, fmt.Errorf("selection %v outside screen %v", sel, screen)
	}
	w, h := r.Dx(), r.Dy()

	screenDC, _, _ := procGetDC.Call(0)
	if screenDC == 0 {
		return nil, false, fmt.Errorf("GetDC failed: %v", windows.GetLastError())
	}
	defer procReleaseDC.Call(0, screenDC)

	memDC, _, _ := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		return nil, false, fmt.Errorf("CreateCompatibleDC failed: %v", windows.GetLastError())
	}
	defer procDeleteDC.Call(memDC)

	var bi bitmapInfo
	bi.Header.BiSize = uint32(unsafe.Sizeof(bi.Header))
	bi.Header.BiWidth = int32(w)
	bi.Header.BiHeight = -int32(h) // top-down rows
	bi.Header.BiPlanes = 1
	bi.Header.BiBitCount = 32
	bi.Header.BiCompression = biRGB
	bi.Header.BiSizeImage = uint32(w * h * 4)

	var bits unsafe.Pointer
	bmp, _, _ := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bi)), dibRGBColors, uintptr(unsafe.Pointer(&bits)), 0, 0)
	if bmp == 0 {
		return nil, false, fmt.Errorf("CreateDIBSection failed: %v", windows.GetLastError())
	}
	defer procDeleteObject.Call(bmp)

	if prev, _, _ := procSelectObject.Call(memDC, bmp); prev == 0 || prev == ^uintptr(0) {
		return nil, false, fmt.Errorf("SelectObject failed: %v", windows.GetLastError())
	}
	if ok, _, _ := procBitBlt.Call(memDC, 0, 0, uintptr(w), uintptr(h), screenDC, uintptr(r.Min.X), uintptr(r.Min.Y), srcCopy); ok == 0 {
		return nil, false, fmt.Errorf("BitBlt %v failed: %v", r, windows.GetLastError())
	}

	n := w * h * 4
	src := unsafe.Slice((*byte)(bits), n)
	dst := acquireFrame(r)
	for i := 0; i < n; i += 4 {
		dst.Pix[i+0] = src[i+2]
		dst.Pix[i+1] = src[i+1]
		dst.Pix[i+2] = src[i+0]
		dst.Pix[i+3] = 0xFF
	}
	return dst, true, nil
}

func systemMetric(idx int) int32 {
	v, _, _ := procGetSystemMetrics.Call(uintptr(idx))
	return int32(v)
}
