package webui

import (
	"testing"

	"github.com/marcan/kinlarm/internal/frame"
)

func TestHuePaletteHasMoreThanOneColor(t *testing.T) {
	seen := map[[3]byte]bool{}
	for _, rgb := range huePalette {
		seen[rgb] = true
	}
	if len(seen) < 2 {
		t.Fatal("palette collapsed to a single color")
	}
}

func TestRenderDepthProducesPreviewSizedImage(t *testing.T) {
	df := frame.NewDepthFrame(64, 48)
	for i := range df.Pix {
		df.Pix[i] = 600
	}
	img := renderDepth(df)
	b := img.Bounds()
	if b.Dx() != previewW || b.Dy() != previewH {
		t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), previewW, previewH)
	}
}

func TestRenderVideoProducesPreviewSizedImage(t *testing.T) {
	vf := frame.NewVideoFrame(64, 48)
	for i := range vf.Pix {
		vf.Pix[i] = 128
	}
	img := renderVideo(vf)
	b := img.Bounds()
	if b.Dx() != previewW || b.Dy() != previewH {
		t.Fatalf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), previewW, previewH)
	}
}

func TestStampStateLabelDoesNotPanicOnSmallImage(t *testing.T) {
	img := renderVideo(frame.NewVideoFrame(10, 10))
	_ = stampStateLabel(img, "armed")
}
