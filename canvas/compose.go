package canvas

import (
	"errors"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/chaos-io/removebg-square/util"
)

var ErrEmptyCutout = errors.New("empty cutout: no non-transparent pixels")

// Composite 把抠图主体裁剪、等比缩放到安全区内并居中，贴到目标尺寸的新画布上
func Composite(cutout image.Image, spec Spec) (*image.NRGBA, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	src := util.ToNRGBA(cutout)
	bbox, ok := alphaBBox(src)
	if !ok {
		return nil, ErrEmptyCutout
	}

	subject := crop(src, bbox)
	placed := Fit(bbox.Size(), spec)

	var scaled image.Image = subject
	if placed.Size() != bbox.Size() {
		scaled = resize.Resize(uint(placed.Dx()), uint(placed.Dy()), subject, resize.Lanczos3)
	}

	out := image.NewNRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	if spec.Background.A != 0 {
		draw.Draw(out, out.Bounds(), image.NewUniform(spec.Background), image.Point{}, draw.Src)
	}
	draw.Draw(out, placed, scaled, scaled.Bounds().Min, draw.Over)
	return out, nil
}

// Fit 计算主体在画布上的位置：等比缩放到恰好放进安全区，在安全区内居中
func Fit(subject image.Point, spec Spec) image.Rectangle {
	safe := spec.SafeArea()
	sw, sh := safe.Dx(), safe.Dy()
	cw, ch := subject.X, subject.Y

	// 整数运算避免浮点取整误差，受限的一边恰好贴合安全区
	var nw, nh int
	if sw*ch <= sh*cw {
		nw, nh = sw, ch*sw/cw
	} else {
		nw, nh = cw*sh/ch, sh
	}
	nw = min(max(1, nw), sw)
	nh = min(max(1, nh), sh)

	x := safe.Min.X + (sw-nw)/2
	y := safe.Min.Y + (sh-nh)/2
	return image.Rect(x, y, x+nw, y+nh)
}

// alphaBBox 找出所有 alpha > 0 像素的包围盒
func alphaBBox(img *image.NRGBA) (image.Rectangle, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] == 0 {
				continue
			}
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func crop(img *image.NRGBA, rect image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
