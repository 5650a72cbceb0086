// Package ico assembles Windows ICO containers around PNG-encoded frames.
package ico

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sort"

	"github.com/nfnt/resize"

	"iconforge/pkg/svgrender"
)

// DefaultSizes are the frame sizes used when the caller does not request any.
var DefaultSizes = []int{256, 128, 64, 48, 32, 16}

// FromPNG builds an ICO from a PNG source, resampling it to each requested
// size.
func FromPNG(data []byte, sizes []int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ico: decode png: %w", err)
	}

	frames := make([][]byte, 0, len(sizes))
	for _, size := range normalizeSizes(sizes) {
		frame := resize.Resize(uint(size), uint(size), src, resize.Lanczos3)
		encoded, err := encodePNG(frame)
		if err != nil {
			return nil, err
		}
		frames = append(frames, encoded)
	}
	return assemble(frames)
}

// FromSVG builds an ICO by rasterizing the SVG at each requested size.
func FromSVG(svg []byte, sizes []int, background string) ([]byte, error) {
	frames := make([][]byte, 0, len(sizes))
	for _, size := range normalizeSizes(sizes) {
		frame, err := svgrender.Render(svg, size, size, background)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return assemble(frames)
}

// normalizeSizes dedupes, keeps only 1..256 and orders largest first.
func normalizeSizes(sizes []int) []int {
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	seen := make(map[int]bool, len(sizes))
	out := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s < 1 || s > 256 || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("ico: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// assemble writes the ICONDIR header, one directory entry per frame and the
// PNG payloads.
func assemble(frames [][]byte) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("ico: no frames to encode")
	}

	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), image count.
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(len(frames)))

	offset := 6 + 16*len(frames)
	for _, frame := range frames {
		cfg, err := png.DecodeConfig(bytes.NewReader(frame))
		if err != nil {
			return nil, fmt.Errorf("ico: inspect frame: %w", err)
		}
		// Width/height bytes encode 256 as 0.
		buf.WriteByte(dimensionByte(cfg.Width))
		buf.WriteByte(dimensionByte(cfg.Height))
		buf.WriteByte(0) // palette size
		buf.WriteByte(0) // reserved
		binary.Write(&buf, binary.LittleEndian, uint16(1))  // color planes
		binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
		binary.Write(&buf, binary.LittleEndian, uint32(len(frame)))
		binary.Write(&buf, binary.LittleEndian, uint32(offset))
		offset += len(frame)
	}
	for _, frame := range frames {
		buf.Write(frame)
	}
	return buf.Bytes(), nil
}

func dimensionByte(d int) byte {
	if d >= 256 {
		return 0
	}
	return byte(d)
}
