package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectedPlace_SearchQuery(t *testing.T) {
	p := SelectedPlace{Name: "Seaside Inn", FormattedAddress: "1 Ocean Dr, Miami, FL"}
	assert.Equal(t, "Seaside Inn 1 Ocean Dr, Miami, FL", p.SearchQuery())
	assert.Equal(t, "Seaside Inn", SelectedPlace{Name: "Seaside Inn"}.SearchQuery())
}

func TestSelectedPlace_LocationLabel(t *testing.T) {
	tests := []struct {
		place SelectedPlace
		want  string
	}{
		{SelectedPlace{State: "Florida", Country: "United States"}, "Florida, USA"},
		{SelectedPlace{State: "Bavaria", Country: "Germany"}, "Bavaria, Germany"},
		{SelectedPlace{Country: "Portugal"}, "Portugal"},
		{SelectedPlace{State: "Tuscany"}, "Tuscany"},
		{SelectedPlace{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.place.LocationLabel())
	}
}

func TestSelectedPlace_Validate(t *testing.T) {
	assert.NoError(t, SelectedPlace{Name: "Hotel X"}.Validate())
	assert.ErrorIs(t, SelectedPlace{Name: "  "}.Validate(), ErrPlaceNameRequired)
}

func TestPropertyData_DescriptionAndClone(t *testing.T) {
	d := PropertyData{"name": "X", "description": "A seaside hotel"}
	assert.Equal(t, "A seaside hotel", d.Description())
	assert.Equal(t, "", PropertyData{"description": 3}.Description())
	assert.Equal(t, "", PropertyData(nil).Description())

	c := d.Clone()
	c["name"] = "Y"
	assert.Equal(t, "X", d["name"])
	assert.Nil(t, PropertyData(nil).Clone())
}
