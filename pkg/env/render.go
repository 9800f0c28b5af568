package env

import (
	"image"
	"image/draw"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"

	"github.com/gwillem/armrecord/pkg/kinematics"
	"github.com/gwillem/armrecord/pkg/robot"
)

// render draws the arm top-down with the base at the image center and
// returns HWC pixels with the requested channel count (1 or 3).
func render(height, width, channels int, arm kinematics.Planar, angles robot.JointAngles, target r2.Point) []byte {
	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	_, outer := arm.Reach()
	scale := 0.45 * float64(min(width, height)) / outer
	cx, cy := float64(width)/2, float64(height)/2
	px := func(p r2.Point) (float64, float64) { return cx + p.X*scale, cy - p.Y*scale }

	elbow := arm.Elbow(angles)
	tip := arm.Forward(angles)

	dc.SetLineWidth(max(1, float64(min(width, height))/32))
	dc.SetRGB(1, 1, 1)
	ex, ey := px(elbow)
	tx, ty := px(tip)
	dc.DrawLine(cx, cy, ex, ey)
	dc.LineTo(tx, ty)
	dc.Stroke()

	dc.SetRGB(1, 0, 0)
	gx, gy := px(target)
	dc.DrawCircle(gx, gy, max(1, float64(min(width, height))/24))
	dc.Fill()

	return pixels(dc.Image(), channels)
}

func pixels(img image.Image, channels int) []byte {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		b := img.Bounds()
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
	}
	b := rgba.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := rgba.Pix[(y-b.Min.Y)*rgba.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := row[4*x], row[4*x+1], row[4*x+2]
			if channels == 1 {
				out = append(out, uint8((299*int(r)+587*int(g)+114*int(bl))/1000))
				continue
			}
			out = append(out, r, g, bl)
		}
	}
	return out
}
