package decode

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledcat/internal/common"
)

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		bpp     int
		wantErr bool
	}{
		{"RGB u8", "RGB u8", 3, false},
		{"rgb", "RGB u8", 3, false},
		{"BGR u8", "BGR u8", 3, false},
		{"  RGBA   U8 ", "RGBA u8", 4, false},
		{"BGRA u8", "BGRA u8", 4, false},
		{"RGB u16", "", 0, true},
		{"CMYK u8", "", 0, true},
		{"", "", 0, true},
		{"RGB u8 extra", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParsePixelFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
			assert.Equal(t, tt.bpp, f.BytesPerPixel())
		})
	}
}

func TestFrameSize(t *testing.T) {
	rgb, err := ParsePixelFormat(DefaultPixelFormat)
	require.NoError(t, err)

	size, err := FrameSize(10, 4, rgb)
	require.NoError(t, err)
	assert.Equal(t, 120, size)

	_, err = FrameSize(0, 4, rgb)
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)
	_, err = FrameSize(4, -1, rgb)
	assert.ErrorIs(t, err, common.ErrInvalidDimensions)
}

func TestExportChannelOrder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	tests := []struct {
		format string
		want   []byte
	}{
		{"RGB u8", []byte{1, 2, 3}},
		{"BGR u8", []byte{3, 2, 1}},
		{"RGBA u8", []byte{1, 2, 3, 255}},
		{"BGRA u8", []byte{3, 2, 1, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := ParsePixelFormat(tt.format)
			require.NoError(t, err)
			buf := make([]byte, f.BytesPerPixel())
			require.NoError(t, f.Export(img, 1, 1, buf))
			assert.Equal(t, tt.want, buf)
		})
	}
}

func TestExportOffsetBounds(t *testing.T) {
	// Sub-images keep their parent's coordinates; export starts at Bounds().Min.
	parent := image.NewRGBA(image.Rect(0, 0, 3, 3))
	parent.SetRGBA(2, 2, color.RGBA{9, 9, 9, 255})
	sub := parent.SubImage(image.Rect(2, 2, 3, 3))

	f, err := ParsePixelFormat("RGB u8")
	require.NoError(t, err)
	buf := make([]byte, 3)
	require.NoError(t, f.Export(sub, 1, 1, buf))
	assert.Equal(t, []byte{9, 9, 9}, buf)
}

func TestExportTransparentIsBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 0})

	f, err := ParsePixelFormat("RGB u8")
	require.NoError(t, err)
	buf := make([]byte, 3)
	require.NoError(t, f.Export(img, 1, 1, buf))
	assert.Equal(t, []byte{0, 0, 0}, buf)
}
