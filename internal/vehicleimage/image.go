// Package vehicleimage locates the vehicle photo on a lookup page and tells a
// real photo apart from the service's "no image" placeholder.
package vehicleimage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carcheck/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	ImageTag   = "img"
	ImageClass = "vehicle__img"
)

var tracer = otel.Tracer("carcheck/vehicleimage")

var (
	ErrMissingImageElement = errors.New("lookup page has no vehicle image")
	ErrNoGenuineImageFound = errors.New("no genuine vehicle image found")
	ErrFileAlreadyExists   = errors.New("file already exists")
)

// ImageDecodeError means either the downloaded bytes or the placeholder
// reference could not be decoded as a raster image.
type ImageDecodeError struct {
	// Source is "downloaded" or "reference".
	Source string
	Err    error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("decode %s image: %v", e.Source, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

type Classification int

const (
	Placeholder Classification = iota
	Genuine
)

func (c Classification) String() string {
	switch c {
	case Genuine:
		return "genuine"
	case Placeholder:
		return "placeholder"
	}
	return fmt.Sprintf("Classification(%d)", int(c))
}

type Asset struct {
	URL            string
	Data           []byte
	Classification Classification
}

func (a Asset) IsGenuine() bool {
	return a.Classification == Genuine
}

// Locate builds the absolute url of the vehicle image by joining origin and the
// image's relative src.
func Locate(doc *goquery.Document, origin string) (string, error) {
	node := htmlutil.FindFirstByClass(doc, ImageTag, ImageClass)
	if node == nil {
		return "", ErrMissingImageElement
	}
	src, ok := htmlutil.Attribute(node, "src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", ErrMissingImageElement
	}
	return origin + src, nil
}

type Downloader interface {
	FetchImage(ctx context.Context, link string) ([]byte, error)
}

// Validator downloads the image of a lookup page and classifies it against a
// shared placeholder reference.
type Validator struct {
	reference  Reference
	downloader Downloader
}

func NewValidator(reference Reference, downloader Downloader) Validator {
	return Validator{reference: reference, downloader: downloader}
}

// Fetch returns the classified image of the page. A placeholder is a normal
// result, only missing elements, transport failures and undecodable images are
// errors.
func (v Validator) Fetch(ctx context.Context, doc *goquery.Document, origin string) (Asset, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	link, err := Locate(doc, origin)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Asset{}, err
	}
	span.SetAttributes(attribute.String("image.url", link))

	data, err := v.downloader.FetchImage(ctx, link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download image")
		return Asset{}, err
	}

	classification, err := v.reference.Classify(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to classify image")
		return Asset{}, err
	}
	span.SetAttributes(attribute.String("image.classification", classification.String()))

	return Asset{
		URL:            link,
		Data:           data,
		Classification: classification,
	}, nil
}
