package level

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"

	"golang.org/x/image/draw"

	"github.com/dmitrymomot/levelqueue/pkg/file"
	"github.com/dmitrymomot/levelqueue/pkg/queue"
	"github.com/dmitrymomot/levelqueue/svc/jobs"
)

var (
	colorFloor   = color.RGBA{0xee, 0xee, 0xee, 0xff}
	colorWall    = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorExit    = color.RGBA{0x2e, 0xcc, 0x71, 0xff}
	colorStart   = color.RGBA{0x34, 0x98, 0xdb, 0xff}
	colorHazard  = color.RGBA{0xe7, 0x4c, 0x3c, 0xff}
	colorSpecial = color.RGBA{0xf1, 0xc4, 0x0f, 0xff}
	colorBlank   = color.RGBA{0x1e, 0x1e, 0x1e, 0xff}
)

func tileColor(c byte) color.RGBA {
	switch c {
	case '0':
		return colorFloor
	case '1':
		return colorWall
	case '2':
		return colorHazard
	case tileExit:
		return colorExit
	case tileStart:
		return colorStart
	}
	return colorSpecial
}

// RenderThumbnail draws the level grid one pixel per tile and scales it,
// centered and aspect preserved, onto a size x size square.
func RenderThumbnail(lvl *Level, size int) ([]byte, error) {
	if lvl.Width <= 0 || lvl.Height <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: cannot render %dx%d level", ErrValidation, lvl.Width, lvl.Height)
	}

	src := image.NewRGBA(image.Rect(0, 0, lvl.Width, lvl.Height))
	for y, row := range lvl.Data {
		for x := 0; x < len(row) && x < lvl.Width; x++ {
			src.SetRGBA(x, y, tileColor(row[x]))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(colorBlank), image.Point{}, draw.Src)

	scale := size / max(lvl.Width, lvl.Height)
	if scale < 1 {
		scale = 1
	}
	w, h := min(lvl.Width*scale, size), min(lvl.Height*scale, size)
	off := image.Pt((size-w)/2, (size-h)/2)
	draw.NearestNeighbor.Scale(dst, image.Rectangle{Min: off, Max: off.Add(image.Pt(w, h))}, src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImageHandler handles GEN_LEVEL_IMAGE by rendering a thumbnail into images
// and recording its URL on the level.
func (p *Publisher) ImageHandler(images file.ObjectStore) queue.Handler {
	return queue.NewTaskHandler(jobs.TypeGenLevelImage,
		func(ctx context.Context, msg *queue.Message, payload jobs.LevelPayload) error {
			lvl, err := p.jobLevel(ctx, payload.LevelID)
			if err != nil {
				return err
			}
			data, err := RenderThumbnail(lvl, p.cfg.ImageSize)
			if err != nil {
				return queue.Permanent(err)
			}
			url, err := images.Put(ctx, path.Join(p.cfg.ImagePrefix, lvl.ID+".png"), "image/png", data)
			if err != nil {
				return err
			}
			if err := p.store.SetImageURL(ctx, nil, lvl.ID, url, p.clock.Now()); err != nil {
				return err
			}
			msg.AppendLog("level image uploaded to " + url)
			return nil
		})
}
