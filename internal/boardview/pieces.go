package boardview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs are kept as inline SVG so the renderer has no asset files to
// ship. The shapes are simple silhouettes on a 45x45 viewbox.
const (
	whiteFill   = "#f0f0f0"
	whiteStroke = "#1f1f1f"
	blackFill   = "#1f1f1f"
	blackStroke = "#e8e8e8"
)

var pieceGlyphs = map[nchess.PieceType]string{
	nchess.Pawn:   `<circle cx="22.5" cy="13" r="6" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/><path d="M17 39 L28 39 L26 24 C29 22 29 17 22.5 17 C16 17 16 22 19 24 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Rook:   `<path d="M12 39 H33 V34 H30 V16 H33 V9 H29 V12 H25 V9 H20 V12 H16 V9 H12 V16 H15 V34 H12 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M14 39 H32 C32 28 30 20 24 16 L26 10 L20 13 L15 19 L17 22 L21 20 C18 26 15 31 14 39 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Bishop: `<path d="M15 39 H30 L27 33 C31 28 30 20 22.5 12 C15 20 14 28 18 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/><circle cx="22.5" cy="9" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Queen:  `<path d="M13 39 H32 L34 18 L28 26 L25 13 L22.5 24 L20 13 L17 26 L11 18 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.King:   `<path d="M14 39 H31 L29 22 C33 19 31 13 26 14 L24 17 H21 L19 14 C14 13 12 19 16 22 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/><path d="M21 5 H24 V8 H27 V11 H24 V14 H21 V11 H18 V8 H21 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
}

func pieceSVG(piece nchess.Piece) (string, error) {
	glyph, ok := pieceGlyphs[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := whiteFill, whiteStroke
	if piece.Color() == nchess.Black {
		fill, stroke = blackFill, blackStroke
	}
	body := fmt.Sprintf(glyph, fill, stroke)
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">` + body + `</svg>`, nil
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	svg, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
