// Package svgrender rasterizes SVG documents into PNG images.
package svgrender

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const fallbackSize = 100

// Render rasterizes the SVG into a PNG of the requested dimensions. Zero
// width or height fall back to the document's viewBox (then to 100).
// background is "", "transparent", a #rgb/#rrggbb hex value or one of a few
// common color names.
func Render(svg []byte, width, height int, background string) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("svgrender: parse svg: %w", err)
	}

	if width <= 0 {
		if w := int(icon.ViewBox.W); w > 0 {
			width = w
		} else {
			width = fallbackSize
		}
	}
	if height <= 0 {
		if h := int(icon.ViewBox.H); h > 0 {
			height = h
		} else {
			height = fallbackSize
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if bg, ok, err := parseColor(background); err != nil {
		return nil, err
	} else if ok {
		draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	}

	icon.SetTarget(0, 0, float64(width), float64(height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("svgrender: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var namedColors = map[string]color.RGBA{
	"white": {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"black": {A: 0xff},
	"red":   {R: 0xff, A: 0xff},
	"green": {G: 0x80, A: 0xff},
	"blue":  {B: 0xff, A: 0xff},
	"gray":  {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
}

// parseColor resolves a background spec; ok is false for transparent
// backgrounds.
func parseColor(spec string) (color.RGBA, bool, error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if spec == "" || spec == "transparent" || spec == "none" {
		return color.RGBA{}, false, nil
	}
	if c, ok := namedColors[spec]; ok {
		return c, true, nil
	}
	if strings.HasPrefix(spec, "#") {
		hex := spec[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			v, err := strconv.ParseUint(hex, 16, 32)
			if err == nil {
				return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true, nil
			}
		}
	}
	return color.RGBA{}, false, fmt.Errorf("svgrender: unsupported background %q", spec)
}
