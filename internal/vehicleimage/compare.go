package vehicleimage

import (
	"bytes"
	_ "embed"
	"image"
	"os"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

//go:embed res/not_found.png
var notFoundPng []byte

// Decode decodes any of the registered raster formats.
func Decode(data []byte) (image.Image, string, error) {
	return image.Decode(bytes.NewReader(data))
}

// DiffBoundingBox returns the smallest rectangle (relative to each image's
// origin) containing every pixel whose normalized RGBA value differs between a
// and b. The rectangle is empty when the images are pixel-identical. ok is
// false when the dimensions differ and no pixel comparison was made.
func DiffBoundingBox(a, b image.Image) (rect image.Rectangle, ok bool) {
	ab := a.Bounds()
	bb := b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return image.Rectangle{}, false
	}

	minX, minY := ab.Dx(), ab.Dy()
	maxX, maxY := -1, -1
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			ar, ag, abl, aa := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			br, bg, bbl, ba := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if ar == br && ag == bg && abl == bbl && aa == ba {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, true
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Reference is the decoded placeholder image, it is never mutated after load.
type Reference struct {
	img image.Image
}

func LoadReference(data []byte) (Reference, error) {
	img, _, err := Decode(data)
	if err != nil {
		return Reference{}, &ImageDecodeError{Source: "reference", Err: err}
	}
	return Reference{img: img}, nil
}

func LoadReferenceFile(path string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, err
	}
	return LoadReference(data)
}

var defaultReference = sync.OnceValues(func() (Reference, error) {
	return LoadReference(notFoundPng)
})

// DefaultReference is the bundled placeholder, decoded on first use.
func DefaultReference() (Reference, error) {
	return defaultReference()
}

// Classify decodes data and compares it against the placeholder. Images with a
// different size can't be the placeholder and are genuine.
func (r Reference) Classify(data []byte) (Classification, error) {
	if r.img == nil {
		return Placeholder, &ImageDecodeError{Source: "reference", Err: image.ErrFormat}
	}
	img, _, err := Decode(data)
	if err != nil {
		return Placeholder, &ImageDecodeError{Source: "downloaded", Err: err}
	}
	rect, comparable := DiffBoundingBox(r.img, img)
	if !comparable || !rect.Empty() {
		return Genuine, nil
	}
	return Placeholder, nil
}
