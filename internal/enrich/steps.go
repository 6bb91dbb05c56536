package enrich

import (
	"context"
	"errors"
	"fmt"

	"worship/internal/classify"
	"worship/internal/models"
	"worship/pkg/location"
	"worship/pkg/wikipedia"
)

// DescriptionLength caps Wikipedia descriptions, in runes.
const DescriptionLength = 400

type Classifier interface {
	Classify(religion, denomination string) classify.Classification
}

// Locator finds the census region containing a point.
type Locator interface {
	Locate(lat, lng float64) (string, bool)
}

// ReverseGeocoder resolves a coordinate to an address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (*location.Location, error)
}

// IntroFetcher returns the lead section of a Wikipedia article.
type IntroFetcher interface {
	FetchIntro(ctx context.Context, lang, title string) (*wikipedia.Page, error)
}

// Classify sets the broad category.
func Classify(c Classifier) Step[models.Place] {
	return func(_ context.Context, p *models.Place) error {
		p.Category = c.Classify(p.Religion, p.Denomination).Category
		return nil
	}
}

// AssignRegion sets the census region code. Points outside every region
// keep an empty code.
func AssignRegion(l Locator) Step[models.Place] {
	return func(_ context.Context, p *models.Place) error {
		if code, ok := l.Locate(p.Lat, p.Lng); ok {
			p.RegionCode = code
		}
		return nil
	}
}

// FillAddress reverse geocodes places that have no address yet.
func FillAddress(g ReverseGeocoder) Step[models.Place] {
	return func(ctx context.Context, p *models.Place) error {
		if p.Address != "" {
			return nil
		}
		loc, err := g.Reverse(ctx, p.Lat, p.Lng)
		if err != nil {
			return fmt.Errorf("reverse geocode %s: %w", p.ID, err)
		}
		p.Address = loc.Address.Format()
		return nil
	}
}

// Describe fetches a short description for places tagged with wikipedia=*.
func Describe(f IntroFetcher) Step[models.Place] {
	return func(ctx context.Context, p *models.Place) error {
		if p.Description != "" {
			return nil
		}
		lang, title, ok := wikipedia.ParseTag(p.Tags["wikipedia"])
		if !ok {
			return nil
		}
		page, err := f.FetchIntro(ctx, lang, title)
		if errors.Is(err, wikipedia.ErrNoPage) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("describe %s: %w", p.ID, err)
		}
		p.Description = wikipedia.Summary(page.Extract, DescriptionLength)
		return nil
	}
}

// PlaceSteps configures the importer's place pipeline. Nil collaborators
// leave their step out.
type PlaceSteps struct {
	Classifier Classifier
	Regions    Locator
	Geocoder   ReverseGeocoder
	Wikipedia  IntroFetcher
}

// NewPlacePipeline builds the two stages: local lookups first, then the
// network lookups that may depend on them.
func NewPlacePipeline(s PlaceSteps) *Pipeline[models.Place] {
	local := Stage[models.Place]{}
	if s.Classifier != nil {
		local = local.Add("classify", Classify(s.Classifier))
	}
	if s.Regions != nil {
		local = local.Add("region", AssignRegion(s.Regions))
	}
	remote := Stage[models.Place]{}
	if s.Geocoder != nil {
		remote = remote.Add("address", FillAddress(s.Geocoder))
	}
	if s.Wikipedia != nil {
		remote = remote.Add("wikipedia", Describe(s.Wikipedia))
	}

	var stages []Stage[models.Place]
	for _, st := range []Stage[models.Place]{local, remote} {
		if st.Len() > 0 {
			stages = append(stages, st)
		}
	}
	return NewPipeline(stages...)
}
