package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Codec recompresses one encoded image.
type Codec interface {
	Encode(ctx context.Context, src []byte) ([]byte, error)
}

// CodecFunc adapts a function to Codec.
type CodecFunc func(ctx context.Context, src []byte) ([]byte, error)

// Encode implements Codec.
func (f CodecFunc) Encode(ctx context.Context, src []byte) ([]byte, error) { return f(ctx, src) }

// JPEGCodec re-encodes JPEG images at a fixed quality.
type JPEGCodec struct {
	Quality int
}

// Encode implements Codec.
func (c JPEGCodec) Encode(ctx context.Context, src []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	quality := c.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// PNGCodec quantizes true-colour PNGs with Floyd-Steinberg dithering and
// writes them with the best compression level. The web-safe palette is used
// when it reaches QualityMax, the 256 colour Plan 9 palette otherwise. When
// neither reaches QualityMin the image keeps its original pixels and is only
// recompressed. Paletted input is only recompressed.
//
// Qualities are fractions in [0, 1]. A zero QualityMax means
// DefaultPNGQualityMax.
type PNGCodec struct {
	QualityMin float64
	QualityMax float64
}

// Encode implements Codec.
func (c PNGCodec) Encode(ctx context.Context, src []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, paletted := img.(*image.Paletted); !paletted {
		if q, ok := c.reduce(img); ok {
			img = q
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// reduce returns the paletted image to write, or false when no palette
// reaches QualityMin.
func (c PNGCodec) reduce(img image.Image) (*image.Paletted, bool) {
	qmax := c.QualityMax
	if qmax <= 0 {
		qmax = DefaultPNGQualityMax
	}

	small := quantize(img, palette.WebSafe)
	if quality(img, small) >= qmax {
		return small, true
	}

	full := quantize(img, palette.Plan9)
	if quality(img, full) < c.QualityMin {
		return nil, false
	}
	return full, true
}

func quantize(img image.Image, base []color.Color) *image.Paletted {
	bounds := img.Bounds()

	pal := color.Palette(base)
	if !isOpaque(img) {
		n := len(base)
		if n > 255 {
			n = 255
		}
		pal = append(color.Palette{color.Transparent}, base[:n]...)
	}

	dst := image.NewPaletted(bounds, pal)
	draw.FloydSteinberg.Draw(dst, bounds, img, bounds.Min)
	return dst
}

// quality scores how closely dst reproduces src: one minus the mean
// absolute channel error, so identical images score 1.
func quality(src image.Image, dst *image.Paletted) float64 {
	bounds := src.Bounds()
	if bounds.Empty() {
		return 1
	}

	var diff float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := src.At(x, y).RGBA()
			r2, g2, b2, a2 := dst.At(x, y).RGBA()
			diff += absDiff(r1, r2) + absDiff(g1, g2) + absDiff(b1, b2) + absDiff(a1, a2)
		}
	}
	samples := float64(bounds.Dx()*bounds.Dy()) * 4
	return 1 - diff/(samples*0xffff)
}

func absDiff(a, b uint32) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// GIFCodec decodes every frame and writes the animation back out. Level
// follows gifsicle's -O scale and is clamped to 1..3: level 2 merges
// consecutive identical frames, level 3 also drops unused palette entries.
type GIFCodec struct {
	Level int
}

// Encode implements Codec.
func (c GIFCodec) Encode(ctx context.Context, src []byte) ([]byte, error) {
	anim, err := gif.DecodeAll(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("decoding gif: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	level := gifsicleLevel(c.Level)
	if level >= 2 {
		mergeDuplicateFrames(anim)
	}
	if level >= 3 {
		trimPalettes(anim)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encoding gif: %w", err)
	}
	return buf.Bytes(), nil
}

// mergeDuplicateFrames folds each frame that repeats its predecessor into
// the predecessor's delay.
func mergeDuplicateFrames(anim *gif.GIF) {
	if len(anim.Image) < 2 || len(anim.Delay) != len(anim.Image) {
		return
	}
	hasDisposal := len(anim.Disposal) == len(anim.Image)

	images := anim.Image[:1]
	delays := anim.Delay[:1]
	var disposals []byte
	if hasDisposal {
		disposals = anim.Disposal[:1]
	}

	for i := 1; i < len(anim.Image); i++ {
		last := len(images) - 1
		same := sameFrame(images[last], anim.Image[i])
		if hasDisposal {
			same = same && disposals[last] == anim.Disposal[i]
		}
		if same {
			delays[last] += anim.Delay[i]
			continue
		}
		images = append(images, anim.Image[i])
		delays = append(delays, anim.Delay[i])
		if hasDisposal {
			disposals = append(disposals, anim.Disposal[i])
		}
	}

	anim.Image = images
	anim.Delay = delays
	if hasDisposal {
		anim.Disposal = disposals
	}
}

func sameFrame(a, b *image.Paletted) bool {
	return a.Rect == b.Rect && a.Stride == b.Stride &&
		samePalette(a.Palette, b.Palette) && bytes.Equal(a.Pix, b.Pix)
}

func samePalette(a, b color.Palette) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		r1, g1, b1, a1 := a[i].RGBA()
		r2, g2, b2, a2 := b[i].RGBA()
		if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
			return false
		}
	}
	return true
}

// trimPalettes drops palette entries no pixel uses. Frames sharing the
// global colour table keep sharing one trimmed table.
func trimPalettes(anim *gif.GIF) {
	global, _ := anim.Config.ColorModel.(color.Palette)

	var shared []*image.Paletted
	for _, frame := range anim.Image {
		if global != nil && samePalette(frame.Palette, global) {
			shared = append(shared, frame)
			continue
		}
		remapFrames(frame.Palette, -1, frame)
	}

	if len(shared) > 0 {
		bg := -1
		if int(anim.BackgroundIndex) < len(global) {
			bg = int(anim.BackgroundIndex)
		}
		pal, index := remapFrames(global, bg, shared...)
		anim.Config.ColorModel = pal
		if bg >= 0 {
			anim.BackgroundIndex = index[bg]
		}
	}
}

// remapFrames rewrites frames to a palette holding only the entries of pal
// they use, plus keep when it is not negative. It returns the new palette
// and the old-to-new index map.
func remapFrames(pal color.Palette, keep int, frames ...*image.Paletted) (color.Palette, map[int]uint8) {
	used := make([]bool, len(pal))
	if keep >= 0 {
		used[keep] = true
	}
	for _, frame := range frames {
		for _, p := range frame.Pix {
			if int(p) < len(used) {
				used[p] = true
			}
		}
	}

	trimmed := make(color.Palette, 0, len(pal))
	index := make(map[int]uint8, len(pal))
	for i, u := range used {
		if u {
			index[i] = uint8(len(trimmed))
			trimmed = append(trimmed, pal[i])
		}
	}
	if len(trimmed) == len(pal) || len(trimmed) == 0 {
		return pal, identity(len(pal))
	}

	for _, frame := range frames {
		for i, p := range frame.Pix {
			if n, ok := index[int(p)]; ok {
				frame.Pix[i] = n
			}
		}
		frame.Palette = trimmed
	}
	return trimmed, index
}

func identity(n int) map[int]uint8 {
	index := make(map[int]uint8, n)
	for i := 0; i < n; i++ {
		index[i] = uint8(i)
	}
	return index
}
