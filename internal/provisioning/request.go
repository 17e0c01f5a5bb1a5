package provisioning

import "property-receptionist/internal/models"

// BuildRequest combines the configured client identity with the selected place and
// the extraction result.
func BuildRequest(identity models.ClientData, place models.SelectedPlace, data models.PropertyData, propertyType string) models.ProvisioningRequest {
	client := identity
	client.BusinessName = place.Name
	client.BusinessAddress = place.FormattedAddress
	return models.ProvisioningRequest{
		ClientData:   client,
		PropertyData: data,
		PropertyType: propertyType,
	}
}
