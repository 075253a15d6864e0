package decode

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"ledcat/internal/common"
)

// DefaultPixelFormat is used when no format is configured.
const DefaultPixelFormat = "RGB u8"

// supported channel orders, all 8 bits per channel
var channelOrders = map[string]bool{
	"RGB":  true,
	"BGR":  true,
	"RGBA": true,
	"BGRA": true,
}

// PixelFormat describes the byte layout of one pixel in a raw frame.
type PixelFormat struct {
	Channels string // channel order, e.g. "RGB"
}

// ParsePixelFormat parses a format such as "RGB u8".
// The sample type defaults to u8, which is the only one supported.
func ParsePixelFormat(s string) (PixelFormat, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return PixelFormat{}, fmt.Errorf("%q: %w", s, common.ErrUnsupportedFormat)
	}
	channels := strings.ToUpper(fields[0])
	if !channelOrders[channels] {
		return PixelFormat{}, fmt.Errorf("%q: %w", s, common.ErrUnsupportedFormat)
	}
	if len(fields) == 2 && strings.ToLower(fields[1]) != "u8" {
		return PixelFormat{}, fmt.Errorf("%q: only u8 samples are supported: %w", s, common.ErrUnsupportedFormat)
	}
	return PixelFormat{Channels: channels}, nil
}

// String returns the canonical name, e.g. "RGB u8".
func (f PixelFormat) String() string {
	return f.Channels + " u8"
}

// BytesPerPixel returns the size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	return len(f.Channels)
}

// FrameSize returns the byte length of a width x height frame.
func FrameSize(width, height int, f PixelFormat) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%dx%d: %w", width, height, common.ErrInvalidDimensions)
	}
	return width * height * f.BytesPerPixel(), nil
}

// Export writes the top-left width x height region of img into buf.
// Pixels outside img are black with zero alpha. buf must hold exactly one frame.
func (f PixelFormat) Export(img image.Image, width, height int, buf []byte) error {
	bpp := f.BytesPerPixel()
	if len(buf) != width*height*bpp {
		return fmt.Errorf("buffer is %d bytes, frame is %d: %w", len(buf), width*height*bpp, common.ErrInvalidFrame)
	}

	b := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.RGBA
			p := image.Pt(b.Min.X+x, b.Min.Y+y)
			if p.In(b) {
				c = color.RGBAModel.Convert(img.At(p.X, p.Y)).(color.RGBA)
			}

			off := (y*width + x) * bpp
			for i := 0; i < bpp; i++ {
				switch f.Channels[i] {
				case 'R':
					buf[off+i] = c.R
				case 'G':
					buf[off+i] = c.G
				case 'B':
					buf[off+i] = c.B
				case 'A':
					buf[off+i] = c.A
				}
			}
		}
	}
	return nil
}
