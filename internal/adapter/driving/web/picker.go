package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

const (
	// ImageField is the multipart field carrying the picked image.
	ImageField = "image"

	maxUploadBytes = 10 << 20
	maxImageSide   = 500
	jpegQuality    = 50
)

var errImageTooLarge = errors.New("image exceeds 10 MiB")

// Compile-time interface satisfaction check.
var _ driven.ImagePicker = (*MultipartPicker)(nil)

// MultipartPicker picks the image uploaded in a multipart form. A request
// without a file is a cancelled pick. The image is downscaled to fit in
// 500x500 and re-encoded as JPEG at quality 50.
type MultipartPicker struct {
	r *http.Request
}

// NewMultipartPicker creates a picker over the upload in r.
func NewMultipartPicker(r *http.Request) driven.ImagePicker {
	return &MultipartPicker{r: r}
}

// Pick reads and re-encodes the uploaded image.
func (p *MultipartPicker) Pick(ctx context.Context) model.PickResult {
	if err := ctx.Err(); err != nil {
		return model.PickFailed(err)
	}

	if err := p.r.ParseMultipartForm(maxUploadBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return model.PickCancelled()
		}
		return model.PickFailed(fmt.Errorf("read upload: %w", err))
	}

	file, header, err := p.r.FormFile(ImageField)
	if errors.Is(err, http.ErrMissingFile) {
		return model.PickCancelled()
	}
	if err != nil {
		return model.PickFailed(fmt.Errorf("read upload: %w", err))
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return model.PickFailed(fmt.Errorf("read upload: %w", err))
	}
	if len(data) > maxUploadBytes {
		return model.PickFailed(errImageTooLarge)
	}
	if len(data) == 0 {
		// Nothing inline to send.
		return model.Picked(model.ImageAsset{Type: header.Header.Get("Content-Type")})
	}

	asset, err := encodeImage(data)
	if err != nil {
		return model.PickFailed(err)
	}
	return model.Picked(asset)
}

func encodeImage(data []byte) (model.ImageAsset, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.ImageAsset{}, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, downscale(src, maxImageSide), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return model.ImageAsset{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return model.ImageAsset{
		Type:   "image/jpeg",
		Base64: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// downscale fits src within side x side keeping its aspect ratio, over a
// white background since JPEG has no alpha.
func downscale(src image.Image, side int) image.Image {
	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), side)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	return dst
}

func fitWithin(w, h, side int) (int, int) {
	if w <= side && h <= side {
		return w, h
	}
	if w >= h {
		return side, max(1, h*side/w)
	}
	return max(1, w*side/h), side
}
