// internals/helpers/oss/oss_image.go
package helper

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

func envInt(key string, def int) int {
	if v := getEnv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float32) float32 {
	if v := getEnv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil && f >= 0 {
			return float32(f)
		}
	}
	return def
}

/* =======================================================================
   WebP options (ENV-driven)
======================================================================= */

type WebPOptions struct {
	MaxW     int // resize keep-aspect
	MaxH     int
	TargetKB int     // 0 = off, Quality only
	Quality  float32 // used as is when TargetKB=0
	MinQ     float32 // quality search bounds
	MaxQ     float32
}

func DefaultWebPOptionsFromEnv() WebPOptions {
	return WebPOptions{
		MaxW:     envInt("IMAGE_WEBP_MAX_W", 1600),
		MaxH:     envInt("IMAGE_WEBP_MAX_H", 1600),
		TargetKB: envInt("IMAGE_WEBP_TARGET_KB", 0),
		Quality:  envFloat("IMAGE_WEBP_QUALITY", 80),
		MinQ:     envFloat("IMAGE_WEBP_MIN_Q", 45),
		MaxQ:     envFloat("IMAGE_WEBP_MAX_Q", 85),
	}
}

/* =======================================================================
   Decode (jpeg/png/gif via imaging, webp via chai2010)
======================================================================= */

// isImage: only these are re-encoded; documents (pdf, ...) are stored untouched.
func isImage(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func decodeImage(data []byte, contentType string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if contentType == "image/webp" {
		return webp.Decode(bytes.NewReader(data))
	}
	// phone photos carry EXIF orientation; bake it in before resizing
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	return img, nil
}

/* =======================================================================
   Resize (keep aspect, CatmullRom)
======================================================================= */

func downscaleIfNeeded(src image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 && maxH <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return src
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

/* =======================================================================
   Encode WebP
   - TargetKB > 0 → binary search quality down to target
   - TargetKB = 0 → single encode with Quality
======================================================================= */

func encodeToWebP(img image.Image, opt WebPOptions) ([]byte, error) {
	encodeQ := func(q float32) ([]byte, error) {
		buf := new(bytes.Buffer)
		if err := webp.Encode(buf, img, &webp.Options{Quality: q}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if opt.TargetKB <= 0 {
		q := opt.Quality
		if q <= 0 {
			q = 80
		}
		return encodeQ(q)
	}

	target := opt.TargetKB * 1024
	low, high := opt.MinQ, opt.MaxQ
	if low <= 0 {
		low = 45
	}
	if high <= 0 {
		high = 85
	}
	if low > high {
		low, high = high, low
	}

	var best []byte
	for i := 0; i < 7; i++ {
		q := (low + high) / 2
		data, err := encodeQ(q)
		if err != nil {
			return nil, err
		}
		if len(data) <= target {
			best = data
			low = q // fits: try better quality
		} else {
			high = q
		}
	}
	if best == nil {
		return encodeQ(low)
	}
	return best, nil
}

// ConvertToWebP: decode → resize → encode.
func ConvertToWebP(data []byte, contentType string, opts WebPOptions) ([]byte, image.Point, error) {
	img, err := decodeImage(data, contentType)
	if err != nil {
		return nil, image.Point{}, err
	}
	img = downscaleIfNeeded(img, opts.MaxW, opts.MaxH)
	out, err := encodeToWebP(img, opts)
	if err != nil {
		return nil, image.Point{}, err
	}
	return out, img.Bounds().Size(), nil
}
