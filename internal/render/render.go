// Package render turns card records into printable images.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/cardkiosk/printbroker/internal/domain"
)

// Renderer produces a printable image for a card.
type Renderer interface {
	RenderCard(card *domain.CardRecord) ([]byte, error)
}

// Card geometry in pixels.
const (
	CardWidth  = 600
	CardHeight = 840

	margin       = 32
	headerHeight = 160
	barHeight    = 36
	barGap       = 24
)

var (
	background = color.RGBA{0xfa, 0xf7, 0xf0, 0xff}
	border     = color.RGBA{0x22, 0x22, 0x22, 0xff}
	track      = color.RGBA{0xdd, 0xd8, 0xcc, 0xff}

	statColors = map[string]color.RGBA{
		domain.StatAttack:  {0xc6, 0x28, 0x28, 0xff},
		domain.StatDefense: {0x45, 0x5a, 0x64, 0xff},
		domain.StatMagic:   {0x6a, 0x1b, 0x9a, 0xff},
		domain.StatAgility: {0x2e, 0x7d, 0x32, 0xff},
		domain.StatLuck:    {0xf9, 0xa8, 0x25, 0xff},
	}

	palette = []color.RGBA{
		{0x1e, 0x88, 0xe5, 0xff},
		{0xd8, 0x43, 0x15, 0xff},
		{0x00, 0x89, 0x7b, 0xff},
		{0x8e, 0x24, 0xaa, 0xff},
		{0xf4, 0x51, 0x1e, 0xff},
		{0x3f, 0x51, 0xb5, 0xff},
	}
)

// CardRenderer draws a fixed-layout card: a header band colored by class and
// one horizontal bar per stat. Text is left to the print station.
type CardRenderer struct{}

// NewCardRenderer returns the default renderer.
func NewCardRenderer() *CardRenderer {
	return &CardRenderer{}
}

// RenderCard encodes the card as PNG.
func (CardRenderer) RenderCard(card *domain.CardRecord) ([]byte, error) {
	if card == nil {
		return nil, errors.New("render: nil card")
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	fill(img, img.Bounds(), border)
	fill(img, img.Bounds().Inset(6), background)
	fill(img, image.Rect(margin, margin, CardWidth-margin, margin+headerHeight), ClassColor(card.Class))

	maxWidth := CardWidth - 2*margin
	y := margin + headerHeight + 2*barGap
	for _, key := range domain.StatKeys {
		value := card.Stats[key]
		if value < 0 {
			value = 0
		}
		if value > 100 {
			value = 100
		}
		row := image.Rect(margin, y, margin+maxWidth, y+barHeight)
		fill(img, row, track)
		fill(img, image.Rect(margin, y, margin+maxWidth*value/100, y+barHeight), statColors[key])
		y += barHeight + barGap
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ClassColor picks a stable header color for a class name.
func ClassColor(class string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(class))
	return palette[h.Sum32()%uint32(len(palette))]
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}
