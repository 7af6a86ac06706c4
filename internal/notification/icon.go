package notification

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/colornames"
)

const DefaultIconSize = 64

// Icon is a solid square used as the notification's small icon.
type Icon struct {
	Size  int
	Color color.NRGBA
}

// DefaultIcon returns a 64x64 opaque white square.
func DefaultIcon() Icon {
	return Icon{
		Size:  DefaultIconSize,
		Color: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	}
}

// Validate reports whether the icon can be rendered.
func (i Icon) Validate() error {
	if i.Size <= 0 {
		return fmt.Errorf("%w: icon size %d", ErrInvalid, i.Size)
	}
	return nil
}

// Image renders the icon.
func (i Icon) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, i.Size, i.Size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: i.Color}, image.Point{}, draw.Src)
	return img
}

// PNG encodes the rendered icon; this is the form handed to the OS.
func (i Icon) PNG() ([]byte, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseColor accepts "#RRGGBB", "#RRGGBBAA" or an SVG colour name such as "white".
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		raw, err := hex.DecodeString(s[1:])
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: colour %q: %v", ErrInvalid, s, err)
		}
		switch len(raw) {
		case 3:
			return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 0xff}, nil
		case 4:
			return color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: raw[3]}, nil
		}
		return color.NRGBA{}, fmt.Errorf("%w: colour %q must be #RRGGBB or #RRGGBBAA", ErrInvalid, s)
	}

	c, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return color.NRGBA{}, fmt.Errorf("%w: unknown colour %q", ErrInvalid, s)
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}
