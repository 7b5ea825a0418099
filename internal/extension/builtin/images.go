package builtin

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	exif "github.com/dsoprea/go-exif/v3"
)

const (
	// DefaultMaxImageSize bounds a downloaded image.
	DefaultMaxImageSize = 5 * 1024 * 1024

	// DefaultMaxImages bounds the images ExifExtractor inspects per page.
	DefaultMaxImages = 10

	defaultImageTimeout = 30 * time.Second
)

// ErrImageTooLarge is returned when an image exceeds the size limit.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// imageLoader fetches image bytes over HTTP or from data: URLs.
type imageLoader struct {
	client  *http.Client
	maxSize int64
}

func newImageLoader() imageLoader {
	return imageLoader{
		client:  &http.Client{Timeout: defaultImageTimeout},
		maxSize: DefaultMaxImageSize,
	}
}

func (l *imageLoader) setClient(client *http.Client) {
	if client != nil {
		l.client = client
	}
}

func (l *imageLoader) load(ctx context.Context, imageURL string) ([]byte, error) {
	if strings.HasPrefix(imageURL, "data:image/") {
		return decodeDataURL(imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s for image: %s", resp.Status, imageURL)
	}
	if resp.ContentLength > l.maxSize {
		return nil, ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxSize {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func decodeDataURL(dataURL string) ([]byte, error) {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(payload)
	}
	return data, err
}

// imageSources returns the img src values of the page resolved against
// pageURL, deduplicated, in document order.
func imageSources(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var out []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if resolved := resolveImage(base, strings.TrimSpace(src)); resolved != "" && !seen[resolved] {
			seen[resolved] = true
			out = append(out, resolved)
		}
	})
	return out
}

func resolveImage(base *url.URL, src string) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "data:") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// Messages returned by VisualAnalyzer when it has nothing to measure.
const (
	MsgNoImage      = "No image found."
	MsgDecodeFailed = "Failed to decode image."
)

// VisualAnalyzer reports the mean color of the first image on a page.
type VisualAnalyzer struct {
	loader imageLoader
}

// NewVisualAnalyzer creates a VisualAnalyzer with its own HTTP client.
func NewVisualAnalyzer() *VisualAnalyzer {
	return &VisualAnalyzer{loader: newImageLoader()}
}

// Name returns the plugin name.
func (*VisualAnalyzer) Name() string { return NameVisual }

// SetHTTPClient replaces the client used to download images.
func (v *VisualAnalyzer) SetHTTPClient(client *http.Client) { v.loader.setClient(client) }

// Process returns {"dominant_color": [r, g, b]}, or MsgNoImage or
// MsgDecodeFailed. Download failures are errors.
func (v *VisualAnalyzer) Process(ctx context.Context, content, sourceURL string) (any, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}
	sources := imageSources(doc, sourceURL)
	if len(sources) == 0 {
		return MsgNoImage, nil
	}

	data, err := v.loader.load(ctx, sources[0])
	if err != nil {
		return nil, fmt.Errorf("error processing image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return MsgDecodeFailed, nil
	}
	return map[string][]int{"dominant_color": meanColor(img)}, nil
}

// meanColor averages every pixel, truncating to 8-bit channels.
func meanColor(img image.Image) []int {
	b := img.Bounds()
	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += uint64(pr >> 8)
			g += uint64(pg >> 8)
			bl += uint64(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return []int{0, 0, 0}
	}
	return []int{int(r / n), int(g / n), int(bl / n)}
}

// exifImagePattern matches formats that can carry EXIF.
var exifImagePattern = regexp.MustCompile(`(?i)\.(jpe?g|tiff?|heic)(?:\?.*)?$`)

// exifTags lists the tags ExifExtractor reports.
var exifTags = map[string]bool{
	"Make": true, "Model": true, "Software": true, "ProcessingSoftware": true,
	"DateTime": true, "DateTimeOriginal": true, "DateTimeDigitized": true,
	"Artist": true, "Copyright": true, "HostComputer": true,
	"SerialNumber": true, "BodySerialNumber": true, "LensSerialNumber": true,
	"GPSLatitude": true, "GPSLatitudeRef": true, "GPSLongitude": true, "GPSLongitudeRef": true,
	"GPSAltitude": true, "GPSAltitudeRef": true,
}

// ImageExif is the EXIF summary of one image.
type ImageExif struct {
	Image string            `json:"image"`
	Tags  map[string]string `json:"tags"`
}

// ExifExtractor reads selected EXIF tags from the images of a page.
type ExifExtractor struct {
	loader    imageLoader
	maxImages int
}

// NewExifExtractor creates an ExifExtractor with its own HTTP client.
func NewExifExtractor() *ExifExtractor {
	return &ExifExtractor{loader: newImageLoader(), maxImages: DefaultMaxImages}
}

// Name returns the plugin name.
func (*ExifExtractor) Name() string { return NameExif }

// SetHTTPClient replaces the client used to download images.
func (e *ExifExtractor) SetHTTPClient(client *http.Client) { e.loader.setClient(client) }

// Process returns one ImageExif per image that carries any reported tag.
// Images that fail to download or have no EXIF block are skipped.
func (e *ExifExtractor) Process(ctx context.Context, content, sourceURL string) (any, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}

	results := []ImageExif{}
	checked := 0
	for _, src := range imageSources(doc, sourceURL) {
		if checked >= e.maxImages {
			break
		}
		if !strings.HasPrefix(src, "data:image/") && !exifImagePattern.MatchString(src) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		checked++

		data, err := e.loader.load(ctx, src)
		if err != nil {
			continue
		}
		if tags := readExif(data); len(tags) > 0 {
			name := src
			if strings.HasPrefix(src, "data:") {
				name = "data:URL"
			}
			results = append(results, ImageExif{Image: name, Tags: tags})
		}
	}
	return results, nil
}

func readExif(data []byte) map[string]string {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil || raw == nil {
		return nil
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return nil
	}
	tags := make(map[string]string)
	for _, entry := range entries {
		if exifTags[entry.TagName] {
			tags[entry.TagName] = entry.Formatted
		}
	}
	return tags
}
