// Package decode turns encoded images (png, jpeg, gif, bmp, tiff, webp) into raw frames.
//
// A source may hold several images back to back; each call to Stream.Next
// yields the next frame. Animated GIFs yield one composited frame per image.
package decode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"

	_ "image/jpeg"
	_ "image/png"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"ledcat/internal/common"
	"ledcat/internal/stream"
)

// ErrDecode is returned when an image in the stream cannot be decoded.
var ErrDecode = errors.New("image decode failed")

var gifMagic = []byte("GIF8")

// Decoder exports decoded images as Width x Height frames in Format.
type Decoder struct {
	Width  int
	Height int
	Format PixelFormat
}

// FrameSize returns the byte length of one exported frame.
func (d *Decoder) FrameSize() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

// Open starts decoding images from r.
func (d *Decoder) Open(r io.Reader) *Stream {
	return &Stream{d: d, br: bufio.NewReader(r)}
}

// Stream yields successive frames from one source.
type Stream struct {
	d       *Decoder
	br      *bufio.Reader
	pending []image.Image
	images  int
}

// Next decodes the next frame into buf.
// Returns StatusEndOfStream once the source holds no more images.
func (s *Stream) Next(ctx context.Context, buf []byte) (stream.Result, error) {
	if ctx.Err() != nil {
		return stream.Result{Status: stream.StatusCancelled}, nil
	}
	if len(buf) != s.d.FrameSize() {
		return stream.Result{}, fmt.Errorf("buffer is %d bytes, frame is %d: %w", len(buf), s.d.FrameSize(), common.ErrInvalidFrame)
	}

	if len(s.pending) == 0 {
		if _, err := s.br.Peek(1); err != nil {
			if err == io.EOF {
				return stream.Result{Status: stream.StatusEndOfStream}, nil
			}
			return stream.Result{}, fmt.Errorf("read: %w: %w", common.ErrIO, err)
		}
		if err := s.decodeNext(); err != nil {
			return stream.Result{}, err
		}
	}

	img := s.pending[0]
	s.pending = s.pending[1:]
	if err := s.d.Format.Export(img, s.d.Width, s.d.Height, buf); err != nil {
		return stream.Result{}, err
	}
	return stream.Result{N: len(buf), Status: stream.StatusComplete}, nil
}

func (s *Stream) decodeNext() error {
	header, _ := s.br.Peek(len(gifMagic))
	if bytes.Equal(header, gifMagic) {
		g, err := gif.DecodeAll(s.br)
		if err != nil {
			return fmt.Errorf("image %d: %w: %w", s.images, ErrDecode, err)
		}
		s.pending = compositeGIF(g)
		log.Debugf("[Decoder] image %d: gif with %d frames", s.images, len(s.pending))
	} else {
		img, format, err := image.Decode(s.br)
		if err != nil {
			return fmt.Errorf("image %d: %w: %w", s.images, ErrDecode, err)
		}
		s.pending = []image.Image{img}
		log.Debugf("[Decoder] image %d: %s %v", s.images, format, img.Bounds().Size())
	}
	s.images++
	return nil
}

// compositeGIF renders every GIF frame onto the logical screen, honoring disposal.
func compositeGIF(g *gif.GIF) []image.Image {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() && len(g.Image) > 0 {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)

	frames := make([]image.Image, 0, len(g.Image))
	for i, frame := range g.Image {
		var previous *image.RGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneRGBA(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, cloneRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return frames
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
