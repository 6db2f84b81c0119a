package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

var (
	colorIdle    = color.NRGBA{R: 0x3a, G: 0x3a, B: 0x3c, A: 0xff}
	colorBusyOn  = color.NRGBA{R: 0x0a, G: 0x84, B: 0xff, A: 0xff}
	colorBusyOff = color.NRGBA{R: 0x0a, G: 0x84, B: 0xff, A: 0x60}
	colorError   = color.NRGBA{R: 0xff, G: 0x45, B: 0x3a, A: 0xff}
)

// Icons holds the encoded images the indicator switches between.
type Icons struct {
	Ready      []byte
	Processing [2][]byte
	Error      []byte
}

// DefaultIcons renders the built-in set: a text cursor inside a dot.
func DefaultIcons() Icons {
	return Icons{
		Ready:      encodeIcon(renderIcon(colorIdle)),
		Processing: [2][]byte{encodeIcon(renderIcon(colorBusyOn)), encodeIcon(renderIcon(colorBusyOff))},
		Error:      encodeIcon(renderIcon(colorError)),
	}
}

func renderIcon(fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	c := float64(iconSize-1) / 2
	r2 := c * c
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r2 {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	// I-beam
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	mid := iconSize / 2
	for y := 8; y < iconSize-8; y++ {
		img.SetNRGBA(mid-1, y, white)
		img.SetNRGBA(mid, y, white)
	}
	for x := mid - 5; x <= mid+4; x++ {
		img.SetNRGBA(x, 8, white)
		img.SetNRGBA(x, iconSize-9, white)
	}
	return img
}

// encodeIcon produces PNG bytes, wrapped in an ICO container on Windows
// where the tray API only accepts .ico data.
func encodeIcon(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	if runtime.GOOS != "windows" {
		return buf.Bytes()
	}
	return wrapICO(buf.Bytes(), iconSize)
}

// wrapICO embeds one PNG image in an ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, struct {
		Reserved, Type, Count uint16
	}{0, 1, 1})
	_ = binary.Write(&out, binary.LittleEndian, struct {
		Width, Height, Colors, Reserved uint8
		Planes, BitCount                uint16
		Size, Offset                    uint32
	}{uint8(size), uint8(size), 0, 0, 1, 32, uint32(len(pngData)), 6 + 16})
	out.Write(pngData)
	return out.Bytes()
}
