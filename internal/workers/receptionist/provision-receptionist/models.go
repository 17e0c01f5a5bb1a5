// internal/workers/receptionist/provision-receptionist/models.go
package provisionreceptionist

import "property-receptionist/internal/models"

// Input is the job variables of a provision-receptionist task.
type Input struct {
	RequestID    string               `json:"requestId,omitempty"`
	Place        models.SelectedPlace `json:"place"`
	PropertyType string               `json:"propertyType,omitempty"`
	ClientData   *models.ClientData   `json:"clientData,omitempty"`
}

// Output is merged into the process variables on success.
type Output struct {
	SessionID     string `json:"sessionId"`
	AgentID       string `json:"agentId"`
	PhoneNumber   string `json:"phoneNumber"`
	Summary       string `json:"summary,omitempty"`
	BusinessName  string `json:"businessName"`
	LocationLabel string `json:"locationLabel,omitempty"`
}
