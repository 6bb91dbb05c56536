package location

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type DetailsResponse struct {
	PlaceID             int64             `json:"place_id"`
	OsmType             string            `json:"osm_type"`
	OsmID               int64             `json:"osm_id"`
	Category            string            `json:"category"`
	Type                string            `json:"type"`
	LocalName           string            `json:"localname"`
	Names               map[string]string `json:"names"`
	AddressTags         map[string]string `json:"addresstags"`
	CalculatedPostcode  string            `json:"calculated_postcode"`
	CountryCode         string            `json:"country_code"`
	ExtraTags           map[string]string `json:"extratags"`
	CalculatedWikipedia string            `json:"calculated_wikipedia"`
}

// osmTypeLetter maps "node"/"way"/"relation" to Nominatim's N/W/R.
func osmTypeLetter(osmType string) (string, error) {
	switch strings.ToLower(osmType) {
	case "node", "n":
		return "N", nil
	case "way", "w":
		return "W", nil
	case "relation", "r":
		return "R", nil
	}
	return "", fmt.Errorf("unknown osm type %q", osmType)
}

// Details fetches Nominatim's record for one OSM object.
func (c *Client) Details(ctx context.Context, osmType string, osmID int64) (*DetailsResponse, error) {
	letter, err := osmTypeLetter(osmType)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("osmtype", letter)
	params.Set("osmid", strconv.FormatInt(osmID, 10))
	params.Set("addressdetails", "0")
	params.Set("hierarchy", "0")
	params.Set("format", "json")

	var details DetailsResponse
	if err := c.get(ctx, "/details", params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}
