package server

import (
	"image"
	"net/http"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/www"
	"github.com/fogleman/gg"
	"github.com/julienschmidt/httprouter"
	"github.com/moodcam/moodcam/pkg/emotion"
)

// Overlay bar geometry, in pixels at the bottom of the frame
const (
	overlayBarHeight  = 10
	overlayBarSpacing = 14
	overlayMarginX    = 8
	overlayLabelWidth = 70
)

// Render the session's latest preview frame with the smoothed emotion vector
// drawn over it. This is a debugging/preview aid; the browser UI normally
// renders its own overlay from the live websocket results.
func (s *Server) httpSessionOverlay(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	sess := s.getSession(www.ParseID(params.ByName("id")))
	if sess == nil {
		www.PanicNotFound()
	}
	frame, ok := sess.LatestFrame()
	if !ok {
		www.PanicNoContent()
	}

	smoothed := sess.Smoothed()
	dominant, _ := sess.Dominant()
	jpg, err := renderOverlay(frame.Image, smoothed, dominant)
	www.Check(err)

	www.CacheNever(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}

// renderOverlay draws per-emotion bars onto a copy of the frame and returns JPEG
func renderOverlay(img *cimg.Image, v emotion.Vector, dominant string) ([]byte, error) {
	rgba := toRGBA(img)
	dc := gg.NewContextForRGBA(rgba)

	panelHeight := float64(len(emotion.Keys))*overlayBarSpacing + overlayBarSpacing
	top := float64(rgba.Rect.Dy()) - panelHeight
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRectangle(0, top, float64(rgba.Rect.Dx()), panelHeight)
	dc.Fill()

	maxBarWidth := float64(rgba.Rect.Dx()) - overlayLabelWidth - 2*overlayMarginX
	if maxBarWidth < 0 {
		maxBarWidth = 0
	}
	for i, key := range emotion.Keys {
		y := top + float64(i)*overlayBarSpacing + overlayBarSpacing
		label := key
		if key == dominant {
			label = key + " *"
		}
		dc.SetRGB(1, 1, 1)
		dc.DrawString(label, overlayMarginX, y)
		dc.SetRGBA(0.3, 0.9, 0.4, 0.9)
		dc.DrawRectangle(overlayLabelWidth, y-overlayBarHeight+2, maxBarWidth*float64(v[key]), overlayBarHeight)
		dc.Fill()
	}

	rgb := fromRGBA(rgba)
	return cimg.Compress(rgb, cimg.MakeCompressParams(cimg.Sampling420, 85, 0))
}

func toRGBA(img *cimg.Image) *image.RGBA {
	rgb := img.ToRGB()
	rgba := image.NewRGBA(image.Rect(0, 0, rgb.Width, rgb.Height))
	for y := 0; y < rgb.Height; y++ {
		src := rgb.Pixels[y*rgb.Stride:]
		dst := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < rgb.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	return rgba
}

func fromRGBA(rgba *image.RGBA) *cimg.Image {
	width := rgba.Rect.Dx()
	height := rgba.Rect.Dy()
	buf := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := buf[y*width*3:]
		for x := 0; x < width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return cimg.WrapImage(width, height, cimg.PixelFormatRGB, buf)
}
