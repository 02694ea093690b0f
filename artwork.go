package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	maxCoverBytes  = 8 << 20
	kittyChunkSize = 4096
	kittyImageID   = 42
	// every 5th pixel in both directions is enough to find an accent
	accentSampleStep = 5
)

var errNoCoverArt = errors.New("no cover art")

// coverArt is a decoded cover ready for the terminal. Accent is empty when
// extraction was not requested or nothing usable was found.
type coverArt struct {
	Accent string
	Kitty  string
}

// fetchCoverArt resolves the opaque cover-art reference of a media snapshot:
// file:// is read from disk, http(s):// downloaded and data: decoded inline.
func fetchCoverArt(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errNoCoverArt
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid cover art reference: %w", err)
	}

	switch u.Scheme {
	case "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("read cover art: %w", err)
		}
		return data, nil
	case "http", "https":
		return downloadCoverArt(ctx, ref)
	case "data":
		_, payload, ok := strings.Cut(u.Opaque, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data reference")
		}
		return []byte(payload), nil
	}
	return nil, fmt.Errorf("unsupported cover art scheme %q", u.Scheme)
}

func downloadCoverArt(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid cover art reference: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download cover art: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download cover art: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, fmt.Errorf("download cover art: %w", err)
	}
	return data, nil
}

// decodeCover accepts raw image bytes or their base64 form.
func decodeCover(data []byte) (image.Image, error) {
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		data = decoded
	}
	if len(data) == 0 {
		return nil, errNoCoverArt
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode cover art: %w", err)
	}
	return img, nil
}

type accentCandidate struct {
	rgb   uint32
	count int
	score float64
}

// accentScore rates a color for use as a foreground on a dark terminal.
// Dark, washed-out and grey colors are rejected.
func accentScore(rgb uint32, count int) (float64, bool) {
	lightness, saturation := hslComponents(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))
	if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
		return 0, false
	}
	if lightness > 0.7 {
		lightness = 1.4 - lightness
	}
	return saturation*2.5 + lightness*1.5 + float64(count)/1000, true
}

// accentColor picks a readable hex accent from a cover. When no sampled color
// qualifies it falls back to the k-means dominant color.
func accentColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	counts := make(map[uint32]int)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += accentSampleStep {
		for x := b.Min.X; x < b.Max.X; x += accentSampleStep {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			counts[(r>>8)<<16|(g>>8)<<8|bl>>8]++
		}
	}

	var candidates []accentCandidate
	for rgb, n := range counts {
		if score, ok := accentScore(rgb, n); ok {
			candidates = append(candidates, accentCandidate{rgb: rgb, count: n, score: score})
		}
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable accent color")
		}
		c := colors[0].Color
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
	}

	// ties fall back to pixel count then value so the pick is stable
	best := slices.MaxFunc(candidates, func(a, b accentCandidate) int {
		switch {
		case a.score != b.score:
			return cmpFloat(a.score, b.score)
		case a.count != b.count:
			return a.count - b.count
		}
		return int(b.rgb) - int(a.rgb)
	})
	return fmt.Sprintf("#%06x", best.rgb), nil
}

func cmpFloat(a, b float64) int {
	if a < b {
		return -1
	}
	return 1
}

// hslComponents returns HSL lightness and saturation of an 8-bit RGB color
func hslComponents(r, g, b uint8) (lightness, saturation float64) {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)
	lightness = (hi + lo) / 2

	if hi != lo {
		if lightness > 0.5 {
			saturation = (hi - lo) / (2 - hi - lo)
		} else {
			saturation = (hi - lo) / (hi + lo)
		}
	}
	return lightness, saturation
}

// kittyGraphicsSupported guesses from the environment whether the terminal
// speaks the Kitty graphics protocol.
func kittyGraphicsSupported() bool {
	term := os.Getenv("TERM")
	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	switch os.Getenv("TERM_PROGRAM") {
	case "ghostty", "WezTerm":
		return true
	}
	return false
}

// kittyImage scales img to widthPx and wraps it in Kitty graphics escapes.
// The previous cover is deleted first; the new one is placed at `columns`
// cells wide so it is independent of the font size.
func kittyImage(img image.Image, widthPx, columns int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, resize.Resize(uint(widthPx), 0, img, resize.Lanczos3)); err != nil {
		return "", fmt.Errorf("encode cover art: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	var out strings.Builder
	fmt.Fprintf(&out, "\033_Ga=d,d=I,i=%d\033\\", kittyImageID)
	for start := 0; start < len(payload); start += kittyChunkSize {
		end := min(start+kittyChunkSize, len(payload))
		more := 0
		if end < len(payload) {
			more = 1
		}
		if start == 0 {
			fmt.Fprintf(&out, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=%d;%s\033\\", kittyImageID, columns, more, payload[start:end])
		} else {
			fmt.Fprintf(&out, "\033_Gm=%d;%s\033\\", more, payload[start:end])
		}
	}
	return out.String(), nil
}

// renderCover decodes a cover once and produces everything the view needs.
// Only a decode failure is an error; a missing accent is not.
func renderCover(data []byte, wantAccent bool, cfg Config) (coverArt, error) {
	img, err := decodeCover(data)
	if err != nil {
		return coverArt{}, err
	}

	var art coverArt
	if wantAccent {
		art.Accent, _ = accentColor(img)
	}
	if art.Kitty, err = kittyImage(img, cfg.Artwork.WidthPixels, cfg.Artwork.WidthColumns); err != nil {
		return coverArt{}, err
	}
	return art, nil
}
