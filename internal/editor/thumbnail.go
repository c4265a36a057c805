package editor

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

const (
	thumbWidth  = 1280
	thumbHeight = 720
	thumbGap    = 8
)

var thumbBackground = color.RGBA{R: 24, G: 24, B: 32, A: 255}

// ComposeThumbnail lays up to four result screenshots out on a 2x2
// grid. With a single source it fills the canvas.
func ComposeThumbnail(sources []image.Image) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, thumbWidth, thumbHeight))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(thumbBackground), image.Point{}, xdraw.Src)

	if len(sources) == 0 {
		return canvas
	}
	if len(sources) == 1 {
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), sources[0], sources[0].Bounds(), xdraw.Over, nil)
		return canvas
	}

	if len(sources) > 4 {
		sources = sources[:4]
	}
	cellW := (thumbWidth - thumbGap) / 2
	cellH := (thumbHeight - thumbGap) / 2
	for i, src := range sources {
		col := i % 2
		row := i / 2
		x0 := col * (cellW + thumbGap)
		y0 := row * (cellH + thumbGap)
		dst := image.Rect(x0, y0, x0+cellW, y0+cellH)
		xdraw.CatmullRom.Scale(canvas, dst, src, src.Bounds(), xdraw.Over, nil)
	}
	return canvas
}

// loadThumbnailSources decodes the available asset screenshots.
func loadThumbnailSources(paths []string) []image.Image {
	var sources []image.Image
	for _, path := range paths {
		if path == "" {
			continue
		}
		fh, err := os.Open(path)
		if err != nil {
			continue
		}
		img, _, err := image.Decode(fh)
		fh.Close()
		if err != nil {
			continue
		}
		sources = append(sources, img)
	}
	return sources
}

func writePNG(path string, img image.Image) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer fh.Close()
	return png.Encode(fh, img)
}
