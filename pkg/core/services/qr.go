package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"github.com/wadjakorntonsri/go-qr-shortener/pkg/core/domain"
)

// QRRenderer encodes short links as QR codes.
type QRRenderer struct {
	Level   qrcode.RecoveryLevel
	MinSize int // minimum SVG width and height in pixels
}

func NewQRRenderer() *QRRenderer {
	return &QRRenderer{Level: qrcode.Medium, MinSize: 200}
}

// SVG renders content as a standalone <svg> document. Dark modules of each row
// are merged into horizontal runs to keep the path short.
func (q *QRRenderer) SVG(content string) (string, error) {
	code, err := qrcode.New(content, q.Level)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRender, err)
	}

	bitmap := code.Bitmap()
	modules := len(bitmap)
	if modules == 0 {
		return "", domain.ErrRender
	}
	scale := (q.MinSize + modules - 1) / modules
	if scale < 1 {
		scale = 1
	}
	size := strconv.Itoa(modules * scale)
	view := strconv.Itoa(modules)

	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="` + size + `" height="` + size +
		`" viewBox="0 0 ` + view + ` ` + view + `" shape-rendering="crispEdges">`)
	b.WriteString(`<rect width="` + view + `" height="` + view + `" fill="#fff"/>`)
	b.WriteString(`<path fill="#000" d="`)
	for y, row := range bitmap {
		for x := 0; x < len(row); {
			if !row[x] {
				x++
				continue
			}
			start := x
			for x < len(row) && row[x] {
				x++
			}
			fmt.Fprintf(&b, "M%d,%dh%dv1h-%dz", start, y, x-start, x-start)
		}
	}
	b.WriteString(`"/></svg>`)
	return b.String(), nil
}

// PNG renders content as a size x size PNG image.
func (q *QRRenderer) PNG(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, q.Level, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRender, err)
	}
	return png, nil
}
