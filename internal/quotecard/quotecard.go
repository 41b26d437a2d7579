// Package quotecard renders a share-ready PNG card for a client quote, used
// as the image variant of LinkedIn posts.
package quotecard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	xfont "golang.org/x/image/font"
)

const (
	cardWidth  = 1200
	cardHeight = 628 // LinkedIn link-preview aspect ratio
	marginX    = 90
)

var (
	bgColor     = color.RGBA{R: 0x10, G: 0x1c, B: 0x2e, A: 0xff}
	accentColor = color.RGBA{R: 0x2e, G: 0xc4, B: 0x8f, A: 0xff}
	textColor   = color.RGBA{R: 0xf2, G: 0xf4, B: 0xf8, A: 0xff}
	mutedColor  = color.RGBA{R: 0x9a, G: 0xa7, B: 0xb8, A: 0xff}
)

// Renderer draws quote cards with a TTF font loaded once at startup.
type Renderer struct {
	font *truetype.Font
}

// NewRendererFromEnv loads the TTF named by QUOTE_CARD_FONT.
func NewRendererFromEnv() (*Renderer, error) {
	path := os.Getenv("QUOTE_CARD_FONT")
	if path == "" {
		path = "assets/fonts/DejaVuSans.ttf"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return &Renderer{font: f}, nil
}

// Render draws the quote with attribution onto the card and returns PNG
// bytes suitable for BLOB storage or direct download.
func (r *Renderer) Render(quote, attribution string) ([]byte, error) {
	if r == nil || r.font == nil {
		return nil, fmt.Errorf("quote card renderer not configured")
	}
	quote = strings.TrimSpace(quote)
	if quote == "" {
		return nil, fmt.Errorf("empty quote")
	}

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)
	// Accent bar down the left edge.
	draw.Draw(img, image.Rect(0, 0, 14, cardHeight), image.NewUniform(accentColor), image.Point{}, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(r.font)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetHinting(xfont.HintingFull)

	quoteSize := 44.0
	lines := wrap(quote, 42)
	if len(lines) > 6 {
		quoteSize = 34.0
		lines = wrap(quote, 54)
		if len(lines) > 8 {
			lines = append(lines[:7], lines[7]+" …")
		}
	}

	lineHeight := int(quoteSize * 1.4)
	blockHeight := len(lines)*lineHeight + 70
	y := (cardHeight-blockHeight)/2 + lineHeight

	c.SetFontSize(quoteSize)
	c.SetSrc(image.NewUniform(textColor))
	if _, err := c.DrawString("“", freetype.Pt(marginX-40, y)); err != nil {
		return nil, err
	}
	for _, line := range lines {
		if _, err := c.DrawString(line, freetype.Pt(marginX, y)); err != nil {
			return nil, err
		}
		y += lineHeight
	}

	if attribution != "" {
		c.SetFontSize(24)
		c.SetSrc(image.NewUniform(mutedColor))
		if _, err := c.DrawString("— "+attribution, freetype.Pt(marginX, y+20)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrap splits text into lines of at most width runes, breaking on spaces.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len([]rune(w)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
