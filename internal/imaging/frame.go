// Package imaging adapts staged objects into the pipeline's frame
// representation: RGB float frames in [0,1] plus inverted alpha masks.
// The Loader pulls and decodes images from the store, the Saver encodes
// frames and writes them back under collision-free keys.
package imaging

import (
	"image"
)

// defaultMaskSize is the edge length of the placeholder mask attached to
// frames that carry no alpha channel.
const defaultMaskSize = 64

// Frame is a single decoded image: RGB triples row-major, values in [0,1].
type Frame struct {
	Width  int
	Height int
	Pix    []float32
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) Frame {
	return Frame{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*3),
	}
}

// RGBAt returns the pixel at (x, y).
func (f Frame) RGBAt(x, y int) (r, g, b float32) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB sets the pixel at (x, y).
func (f Frame) SetRGB(x, y int, r, g, b float32) {
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// ToNRGBA renders the frame into an opaque 8-bit image for encoding.
func (f Frame) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			r, g, b := f.RGBAt(x, y)
			o := img.PixOffset(x, y)
			img.Pix[o] = quantize(r)
			img.Pix[o+1] = quantize(g)
			img.Pix[o+2] = quantize(b)
			img.Pix[o+3] = 0xff
		}
	}
	return img
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

// Mask is an inverted alpha channel: 0 where the source pixel is opaque,
// 1 where fully transparent.
type Mask struct {
	Width  int
	Height int
	Pix    []float32
}

// NewMask allocates a zeroed mask of the given dimensions.
func NewMask(width, height int) Mask {
	return Mask{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height),
	}
}

// ZeroMask returns the placeholder mask used for frames without alpha.
func ZeroMask() Mask {
	return NewMask(defaultMaskSize, defaultMaskSize)
}

// At returns the mask value at (x, y).
func (m Mask) At(x, y int) float32 {
	return m.Pix[y*m.Width+x]
}

// Image is a decoded object: one or more frames with a mask per frame.
// Single still images yield exactly one of each; animated sources yield
// one per animation frame.
type Image struct {
	Frames []Frame
	Masks  []Mask
}

// frameFromImage converts any decoded image into a Frame. Straight (non
// premultiplied) sources are read channel-direct; everything else goes
// through the color model.
func frameFromImage(img image.Image) Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())

	i := 0
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := src.NRGBAAt(x, y)
				f.Pix[i] = float32(c.R) / 255
				f.Pix[i+1] = float32(c.G) / 255
				f.Pix[i+2] = float32(c.B) / 255
				i += 3
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				f.Pix[i] = float32(r) / 65535
				f.Pix[i+1] = float32(g) / 65535
				f.Pix[i+2] = float32(bl) / 65535
				i += 3
			}
		}
	}
	return f
}

// maskFor derives the mask for a decoded image: the inverted alpha channel
// when the format carries one, the placeholder zero mask otherwise.
func maskFor(img image.Image) Mask {
	if !hasAlphaChannel(img) {
		return ZeroMask()
	}

	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			m.Pix[i] = 1 - float32(a)/65535
			i++
		}
	}
	return m
}

// hasAlphaChannel reports whether the decoded representation carries a
// dedicated alpha channel. Opaque truecolor PNGs decode to *image.RGBA and
// JPEG to *image.YCbCr, so both fall to the placeholder mask, matching how
// sources without a declared alpha band are treated.
func hasAlphaChannel(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	default:
		return false
	}
}
