package models

import (
	"errors"
	"strings"
)

// SelectedPlace is the resolved output of the location-autocomplete input.
// It is treated as immutable once produced.
type SelectedPlace struct {
	Name             string `json:"name"`
	FormattedAddress string `json:"formattedAddress"`
	State            string `json:"state,omitempty"`
	Country          string `json:"country,omitempty"`
}

var ErrPlaceNameRequired = errors.New("selected place has no name")

// Validate checks the minimum the extraction query needs.
func (p SelectedPlace) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrPlaceNameRequired
	}
	return nil
}

// SearchQuery is the free-text query sent to the extractor: name followed by address.
func (p SelectedPlace) SearchQuery() string {
	return strings.TrimSpace(p.Name + " " + p.FormattedAddress)
}

// LocationLabel renders "<state>, <country>" for the receptionist card, shortening
// "United States" to "USA".
func (p SelectedPlace) LocationLabel() string {
	country := p.Country
	if country == "United States" {
		country = "USA"
	}
	switch {
	case p.State == "":
		return country
	case country == "":
		return p.State
	default:
		return p.State + ", " + country
	}
}
