package ico

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"
)

const sampleSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><circle cx="12" cy="12" r="10" fill="#336699"/></svg>`

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func samplePNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func checkContainer(t *testing.T, data []byte, wantFrames int) {
	t.Helper()
	if len(data) < 6+16*wantFrames {
		t.Fatalf("container too small: %d bytes", len(data))
	}
	if binary.LittleEndian.Uint16(data[0:2]) != 0 {
		t.Fatalf("reserved field not zero")
	}
	if binary.LittleEndian.Uint16(data[2:4]) != 1 {
		t.Fatalf("type field not icon")
	}
	if got := int(binary.LittleEndian.Uint16(data[4:6])); got != wantFrames {
		t.Fatalf("frame count %d, want %d", got, wantFrames)
	}
	for i := 0; i < wantFrames; i++ {
		entry := data[6+16*i : 6+16*(i+1)]
		size := binary.LittleEndian.Uint32(entry[8:12])
		offset := binary.LittleEndian.Uint32(entry[12:16])
		if int(offset)+int(size) > len(data) {
			t.Fatalf("entry %d exceeds container", i)
		}
		if !bytes.HasPrefix(data[offset:], pngMagic) {
			t.Fatalf("entry %d payload is not png", i)
		}
	}
}

func TestFromPNG(t *testing.T) {
	data, err := FromPNG(samplePNG(t, 64), []int{16, 32})
	if err != nil {
		t.Fatalf("FromPNG: %v", err)
	}
	checkContainer(t, data, 2)

	// Largest frame first.
	first := data[6 : 6+16]
	if first[0] != 32 || first[1] != 32 {
		t.Fatalf("first frame is %dx%d, want 32x32", first[0], first[1])
	}
}

func TestFromPNG256EncodesZeroDimension(t *testing.T) {
	data, err := FromPNG(samplePNG(t, 64), []int{256})
	if err != nil {
		t.Fatalf("FromPNG: %v", err)
	}
	entry := data[6 : 6+16]
	if entry[0] != 0 || entry[1] != 0 {
		t.Fatalf("256px frame must encode dimensions as 0, got %d %d", entry[0], entry[1])
	}
}

func TestFromSVG(t *testing.T) {
	data, err := FromSVG([]byte(sampleSVG), []int{16, 48}, "transparent")
	if err != nil {
		t.Fatalf("FromSVG: %v", err)
	}
	checkContainer(t, data, 2)
}

func TestFromPNGDefaultSizes(t *testing.T) {
	data, err := FromPNG(samplePNG(t, 64), nil)
	if err != nil {
		t.Fatalf("FromPNG: %v", err)
	}
	checkContainer(t, data, len(DefaultSizes))
}

func TestNormalizeSizes(t *testing.T) {
	got := normalizeSizes([]int{16, 0, 512, 32, 16, 48})
	if !reflect.DeepEqual(got, []int{48, 32, 16}) {
		t.Fatalf("unexpected sizes: %v", got)
	}
}

func TestFromPNGRejectsGarbage(t *testing.T) {
	if _, err := FromPNG([]byte("not a png"), []int{16}); err == nil {
		t.Fatalf("expected decode error")
	}
}
