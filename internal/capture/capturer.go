package capture

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/draw"
	"image/png"
)

const (
	captureFileName    = "camera-capture.png"
	captureContentType = "image/png"
)

// Image is an encoded still ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	FileName    string
	Width       int
	Height      int
}

// PreviewURL returns a data URL the browser can display directly.
func (i *Image) PreviewURL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// CaptureFrame rasterises the stream's current frame at its native size,
// mirrored horizontally to match the preview the user saw, and encodes it as
// PNG. Every failure is an *EncodeError.
func CaptureFrame(stream Stream) (*Image, error) {
	if stream == nil {
		return nil, &EncodeError{Err: ErrNoFrame}
	}

	frame, err := stream.Frame()
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	mirrored := Mirror(frame)
	bounds := mirrored.Bounds()
	if bounds.Empty() {
		return nil, &EncodeError{Err: ErrNoFrame}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mirrored); err != nil {
		return nil, &EncodeError{Err: err}
	}

	return &Image{
		Data:        buf.Bytes(),
		ContentType: captureContentType,
		FileName:    captureFileName,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// Mirror returns a horizontally flipped copy of src anchored at the origin.
func Mirror(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			for k := 0; k < 4; k++ {
				row[li+k], row[ri+k] = row[ri+k], row[li+k]
			}
		}
	}
	return dst
}
