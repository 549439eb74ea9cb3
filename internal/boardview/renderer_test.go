package boardview

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/mhardt/gambit/internal/rules"
)

func TestRenderPNGInitialPosition(t *testing.T) {
	r := NewRenderer()
	data, err := r.RenderPNG(context.Background(), rules.NewOracle().Board(), RenderOptions{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64*8+48 || b.Dy() != 64*8+48 {
		t.Fatalf("unexpected dimensions %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderPNGWithHighlight(t *testing.T) {
	oracle := rules.NewOracle()
	if err := oracle.ApplyUCI("e2e4"); err != nil {
		t.Fatalf("ApplyUCI: %v", err)
	}
	from, _ := parseSquare("e2")
	to, _ := parseSquare("e4")

	r := NewRenderer()
	data, err := r.RenderPNG(context.Background(), oracle.Board(), RenderOptions{
		Highlight: &MoveHighlight{From: from, To: to},
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("highlighted output is not a PNG: %v", err)
	}
}

func TestRenderPNGNilBoard(t *testing.T) {
	r := NewRenderer()
	if _, err := r.RenderPNG(context.Background(), nil, RenderOptions{}); err == nil {
		t.Fatalf("nil board accepted")
	}
}

func TestRenderPNGCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRenderer()
	if _, err := r.RenderPNG(ctx, rules.NewOracle().Board(), RenderOptions{}); err == nil {
		t.Fatalf("cancelled context accepted")
	}
}
