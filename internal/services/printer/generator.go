// Package printer renders assembled inspection reports as PDF documents.
package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/smbt-dev/inspectgo/internal/blobstore"
	"github.com/smbt-dev/inspectgo/internal/services/report"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Page geometry in points (A4)
const (
	pageWidth  = 595.28
	pageHeight = 841.89
	marginX    = 35.0

	photoW     = 125.0
	photoH     = 90.0
	photoStepX = 135.0
	photoStepY = 98.0
	photoMaxY  = 700.0
	photoMaxX  = 480.0
	photoLeft  = 50.0

	cardW     = 170.0
	cardH     = 120.0
	cardStepX = 180.0
	cardStepY = 130.0
	cardsRow  = 3

	defaultFetchers = 4
)

type rgb struct{ r, g, b int }

var (
	colorMuted  = rgb{0x94, 0xA3, 0xB8}
	colorText   = rgb{0x3F, 0x44, 0x4A}
	colorValue  = rgb{0x50, 0x57, 0x5E}
	colorAccent = rgb{0x09, 0xC1, 0x8A}
	colorFrame  = rgb{0x92, 0xE3, 0xA9}
	colorBlack  = rgb{0, 0, 0}
)

// Options tunes RenderReport
type Options struct {
	// FontFile is a UTF-8 TrueType font. Without it the core Helvetica font
	// is used and text is translated to cp1252.
	FontFile string
	// RequestURL is encoded into the QR code on the first page. Empty
	// disables the code.
	RequestURL string
	// Date printed as the completion date. Zero means today.
	Date time.Time
	// Fetchers bounds concurrent blob reads
	Fetchers int
	Log      *zap.Logger
}

// RequestURL is the link to a request that the report's QR code encodes
func RequestURL(publicURL string, requestID uint) string {
	return fmt.Sprintf("%s/api/requests/%d", strings.TrimRight(publicURL, "/"), requestID)
}

type fetched struct {
	data      []byte
	imageType string
}

// RenderReport lays out p as a PDF. Photos are read from blobs; a photo
// whose blob is missing or not a decodable image is left out.
func RenderReport(ctx context.Context, p *report.Payload, blobs blobstore.Store, resolver blobstore.Resolver, opts Options) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil report payload")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	images, err := prefetch(ctx, blobs, collectKeys(p, resolver), opts.Fetchers, log)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Inspection report", true)

	r := &renderer{
		pdf:      pdf,
		family:   "Helvetica",
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		images:   images,
		resolver: resolver,
		log:      log,
	}
	if opts.FontFile != "" {
		pdf.AddUTF8Font("report", "", opts.FontFile)
		pdf.AddUTF8Font("report", "B", opts.FontFile)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to load report font: %w", err)
		}
		r.family = "report"
		r.tr = func(s string) string { return s }
	}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	if err := r.header(p, date, opts.RequestURL); err != nil {
		return nil, err
	}
	r.photos(p)
	r.act(p)
	r.documents(p)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func collectKeys(p *report.Payload, resolver blobstore.Resolver) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(path string) {
		key := resolver.Key(path)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		keys = append(keys, key)
	}
	for _, bucket := range p.Categories {
		for _, item := range bucket.Items {
			for _, photo := range item.Photos {
				add(photo.Image)
			}
		}
	}
	for _, path := range p.IdentityPhotos {
		add(path)
	}
	return keys
}

func prefetch(ctx context.Context, blobs blobstore.Store, keys []string, limit int, log *zap.Logger) (map[string]fetched, error) {
	if limit <= 0 {
		limit = defaultFetchers
	}

	var mu sync.Mutex
	out := make(map[string]fetched, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			rc, _, err := blobs.Get(gctx, key)
			if errors.Is(err, blobstore.ErrNotFound) {
				log.Warn("photo blob missing, skipping", zap.String("key", key))
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read photo %s: %w", key, err)
			}
			defer rc.Close()

			data, err := io.ReadAll(rc)
			if err != nil {
				return fmt.Errorf("failed to read photo %s: %w", key, err)
			}

			_, format, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				log.Warn("photo is not a decodable image, skipping", zap.String("key", key), zap.Error(err))
				return nil
			}

			mu.Lock()
			out[key] = fetched{data: data, imageType: pdfImageType(format)}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func pdfImageType(format string) string {
	switch format {
	case "jpeg":
		return "JPG"
	default:
		return strings.ToUpper(format)
	}
}

type renderer struct {
	pdf        *gofpdf.Fpdf
	family     string
	tr         func(string) string
	images     map[string]fetched
	registered map[string]bool
	resolver   blobstore.Resolver
	log        *zap.Logger

	y    float64
	grid photoGrid
}

func (r *renderer) text(x, y, size float64, style string, c rgb, s string) {
	r.pdf.SetFont(r.family, style, size)
	r.pdf.SetTextColor(c.r, c.g, c.b)
	r.pdf.SetXY(x, y)
	r.pdf.CellFormat(0, size*1.2, r.tr(s), "", 0, "L", false, 0, "")
}

func (r *renderer) paragraph(x, y, w, size float64, c rgb, s string) float64 {
	r.pdf.SetFont(r.family, "", size)
	r.pdf.SetTextColor(c.r, c.g, c.b)
	r.pdf.SetXY(x, y)
	r.pdf.MultiCell(w, size*1.2, r.tr(s), "", "L", false)
	return r.pdf.GetY()
}

// image draws the blob at path and reports whether it was placed
func (r *renderer) image(path string, x, y, w, h float64) bool {
	key := r.resolver.Key(path)
	img, ok := r.images[key]
	if !ok {
		return false
	}
	opts := gofpdf.ImageOptions{ImageType: img.imageType}
	if r.registered == nil {
		r.registered = make(map[string]bool)
	}
	if !r.registered[key] {
		r.pdf.RegisterImageOptionsReader(key, opts, bytes.NewReader(img.data))
		r.registered[key] = true
	}
	r.pdf.ImageOptions(key, x, y, w, h, false, opts, 0, "")
	return true
}

func (r *renderer) header(p *report.Payload, date time.Time, link string) error {
	r.pdf.AddPage()

	r.text(marginX, 30, 10, "", colorMuted, "Inspector")
	r.text(marginX, 50, 16, "B", colorText, p.ExterminatorFIO)

	r.pdf.SetDrawColor(colorFrame.r, colorFrame.g, colorFrame.b)
	r.pdf.SetLineWidth(1)
	r.pdf.RoundedRect(340, 30, 220, 60, 16, "1234", "D")
	r.text(350, 39, 12, "B", colorText, "Inspection completed")
	r.text(350, 62, 12, "", colorValue, date.Format("02.01.2006"))

	if link != "" {
		png, err := qrcode.Encode(link, qrcode.Medium, 256)
		if err != nil {
			return fmt.Errorf("failed to encode request link: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		r.pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
		r.pdf.ImageOptions("qr", 505, 35, 50, 50, false, opts, 0, "")
	}

	r.text(marginX, 110, 24, "B", colorAccent, "Inspection site")
	end := r.paragraph(marginX, 150, pageWidth-2*marginX, 14, colorText, p.ObjectAddress)

	r.y = end + 30
	r.text(marginX, r.y, 24, "B", colorAccent, "Object photos")
	r.grid = photoGrid{x: photoLeft, y: r.y + 50}
	return nil
}

// photos prints every category that has at least one photo: a title, then
// the photos in a grid that wraps rows and pages.
func (r *renderer) photos(p *report.Payload) {
	for _, bucket := range p.Categories {
		if !bucket.HasPhotos() {
			continue
		}
		if r.grid.breakPage() {
			r.pdf.AddPage()
		}
		r.text(photoLeft, r.grid.y, 18, "B", colorBlack, bucket.CategoryTitle)
		r.grid.y += 30

		for _, item := range bucket.Items {
			for _, photo := range item.Photos {
				r.gridImage(photo.Image)
			}
		}
		r.grid.endSection()
	}
}

func (r *renderer) gridImage(path string) {
	if r.grid.breakPage() {
		r.pdf.AddPage()
	}
	if !r.image(path, r.grid.x, r.grid.y, photoW, photoH) {
		return
	}
	r.grid.advance()
}

// photoGrid is the cursor of the photo section. Every row, including the
// first row of a category, starts at photoLeft.
type photoGrid struct {
	x, y float64
}

// breakPage moves the cursor to the top of a new page once it has passed
// photoMaxY and reports whether it did
func (g *photoGrid) breakPage() bool {
	if g.y <= photoMaxY {
		return false
	}
	g.x, g.y = photoLeft, photoLeft
	return true
}

func (g *photoGrid) advance() {
	g.x += photoStepX
	if g.x > photoMaxX {
		g.x = photoLeft
		g.y += photoStepY
	}
}

// endSection leaves room below the last row of a category
func (g *photoGrid) endSection() {
	g.x = photoLeft
	g.y += 120
}

type field struct {
	label string
	value string
}

func (r *renderer) act(p *report.Payload) {
	r.pdf.AddPage()
	r.text(marginX, 35, 24, "B", colorAccent, "Property inspection act (apartment)")
	r.y = 90

	r.section("Address", []field{
		{"Object address", p.ObjectAddress},
		{"Bordering and neighbouring streets", p.BorderingStreets},
	})
	r.section("District", []field{
		{"Historical name of the district", p.HistoricalName},
		{"Public transport availability", p.TransportAvailability},
		{"Nearest educational institutions", p.NearestEducational},
		{"Nearest shopping and cultural centres", p.NearestShopping},
		{"Ecological state", p.EcoState},
		{"Green zones", labels(
			flag{p.HasParks, "Park"},
			flag{p.HasPublicGardens, "Public garden"},
			flag{p.HasAlleys, "Alleys"},
			flag{p.HasWalkingAreas, "Walking areas"},
			flag{p.HasCoastalArea, "Coastal area"},
		)},
	})
	r.section("House location", []field{
		{"Location", p.HouseLocation},
		{"Playground", yesNo(p.HasPlayground)},
		{"Cleanliness of the surrounding area", p.SurroundingAreaCleanliness},
		{"Plantings", p.PlantingsAvailability},
	})
	r.section("House characteristics", []field{
		{"Wall material", p.WallMaterial},
		{"Roof condition", p.RoofCondition},
		{"External wall cladding", p.ExternalWallCladding},
		{"Nearby amenities", labels(
			flag{p.HasParking, "Parking"},
			flag{p.HasShop, "Shop"},
			flag{p.HasMarket, "Market"},
			flag{p.HasBusStop, "Bus stop"},
		)},
		{"Outer skin condition", p.OuterSkinCondition},
		{"Plumbing", p.Plumbing},
		{"Roof", p.Roof},
		{"Entrance", p.Entrance},
	})
	r.section("Communications", []field{
		{"Gas", p.Gas},
		{"Non-residential floors", yesNo(p.HasNonResidentialFloors)},
		{"Cold water supply", p.ColdWaterSupply},
		{"Cellars", yesNo(p.HasCellars)},
		{"Hot water supply", p.HotWaterSupply},
		{"Attics", yesNo(p.HasAttics)},
		{"Sewerage", p.Sewerage},
	})
	r.section("Apartment characteristics", []field{
		{"Rooms", strconv.Itoa(p.Rooms)},
		{"Floor", strconv.Itoa(p.Floor)},
		{"Number of storeys", strconv.Itoa(p.NumberOfStoreys)},
		{"Year of construction", strconv.Itoa(p.YearOfConstruction)},
		{"Site area, m2", area(p.SiteArea)},
		{"Total area, m2", area(p.TotalArea)},
		{"Kitchen area, m2", area(p.KitchenArea)},
		{"Windows face", p.TheWindowsGoOut},
		{"Loggia", yesNo(p.Loggia)},
		{"Noise level", map[bool]string{true: "High", false: "Low"}[p.NoisyLocation]},
		{"Last major overhaul", p.LastMajorOverhaul},
		{"Windows", p.Windows},
		{"Phone line", yesNo(p.HasPhone)},
		{"Ground", p.Ground},
		{"Signaling", yesNo(p.HasSignaling)},
		{"Wall decoration", p.WallDecoration},
		{"Redevelopment", yesNo(p.HasRedevelopment)},
		{"Plumbing condition", p.PlumbingCondition},
		{"Alarms", labels(
			flag{p.HasFireAlarm, "Fire"},
			flag{p.HasSecurityAlarm, "Security"},
		)},
		{"Balcony", yesNo(p.Balcony)},
	})
}

// section prints a titled block of fields in two columns
func (r *renderer) section(title string, fields []field) {
	const (
		colW   = 250.0
		rowH   = 40.0
		bottom = 780.0
	)
	if r.y+30+rowH > bottom {
		r.pdf.AddPage()
		r.y = marginX
	}
	r.text(marginX, r.y, 16, "B", colorAccent, title)
	r.y += 30

	for i := 0; i < len(fields); i += 2 {
		if r.y+rowH > bottom {
			r.pdf.AddPage()
			r.y = marginX
		}
		for col, f := range fields[i:min(i+2, len(fields))] {
			x := marginX + float64(col)*(colW+25)
			r.text(x, r.y, 10, "", colorMuted, f.label)
			value := f.value
			if value == "" {
				value = "-"
			}
			r.text(x, r.y+14, 12, "", colorValue, value)
		}
		r.y += rowH
	}
	r.y += 10
}

func (r *renderer) documents(p *report.Payload) {
	r.pdf.AddPage()
	r.text(marginX, 30, 24, "B", colorAccent, "Documents")
	r.text(marginX, 80, 18, "B", colorAccent, "Identity card")
	r.text(marginX, 102, 10, "", colorMuted, "(of the person present at the inspection)")

	x, y, col := marginX, 125.0, 0
	for _, path := range p.IdentityPhotos {
		if y+cardH > pageHeight-marginX {
			r.pdf.AddPage()
			x, y, col = marginX, marginX, 0
		}
		if !r.image(path, x, y, cardW, cardH) {
			continue
		}
		col++
		x += cardStepX
		if col == cardsRow {
			x, y, col = marginX, y+cardStepY, 0
		}
	}
}

type flag struct {
	set   bool
	label string
}

func labels(flags ...flag) string {
	var out []string
	for _, f := range flags {
		if f.set {
			out = append(out, f.label)
		}
	}
	return strings.Join(out, ", ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func area(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
