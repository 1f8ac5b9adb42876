package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned before the first frame has been stored.
var ErrNoFrame = errors.New("no frame available")

// boxColor is the outline drawn around a detected hand in previews.
var boxColor = color.RGBA{R: 255, A: 255}

// FrameBuffer holds the latest display frame, which is the camera frame
// mirrored horizontally. It is safe for concurrent use; the capture loop
// stores frames while the sampler and preview stream read them.
type FrameBuffer struct {
	mu    sync.Mutex
	frame gocv.Mat
	ready bool
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{frame: gocv.NewMat()}
}

// Store mirrors src into the buffer. src is not retained.
func (b *FrameBuffer) Store(src *gocv.Mat) error {
	if src == nil || src.Empty() {
		return ErrNoFrame
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	gocv.Flip(*src, &b.frame, 1)
	b.ready = true
	return nil
}

// Size returns the display frame dimensions, or zero before the first frame.
func (b *FrameBuffer) Size() (width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		return 0, 0
	}
	return b.frame.Cols(), b.frame.Rows()
}

// EncodeRegion returns r of the display frame as JPEG. Parts of r outside
// the frame come out black, so the image is always r's size.
func (b *FrameBuffer) EncodeRegion(r image.Rectangle) ([]byte, error) {
	if r.Empty() {
		return nil, fmt.Errorf("empty region %v", r)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready {
		return nil, ErrNoFrame
	}

	crop := gocv.NewMatWithSize(r.Dy(), r.Dx(), b.frame.Type())
	defer crop.Close()
	crop.SetTo(gocv.NewScalar(0, 0, 0, 0))

	bounds := image.Rect(0, 0, b.frame.Cols(), b.frame.Rows())
	if overlap := r.Intersect(bounds); !overlap.Empty() {
		src := b.frame.Region(overlap)
		defer src.Close()
		dst := crop.Region(overlap.Sub(r.Min))
		defer dst.Close()
		src.CopyTo(&dst)
	}

	return encodeJPEG(crop)
}

// EncodePreview returns the display frame as JPEG, with box outlined when
// highlight is set.
func (b *FrameBuffer) EncodePreview(box image.Rectangle, highlight bool) ([]byte, error) {
	b.mu.Lock()
	if !b.ready {
		b.mu.Unlock()
		return nil, ErrNoFrame
	}
	img := b.frame.Clone()
	b.mu.Unlock()
	defer img.Close()

	if highlight {
		gocv.Rectangle(&img, box, boxColor, 1)
	}
	return encodeJPEG(img)
}

// Close releases the frame.
func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ready = false
	return b.frame.Close()
}

func encodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}
