package models

// ClientData identifies the business owner the agent is provisioned for.
type ClientData struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	BusinessName    string `json:"business_name"`
	BusinessAddress string `json:"business_address"`
}

// ProvisioningRequest is the body of the one-shot provisioning call.
type ProvisioningRequest struct {
	ClientData   ClientData   `json:"client_data"`
	PropertyData PropertyData `json:"property_data"`
	PropertyType string       `json:"property_type"`
}

// AgentHandle identifies a provisioned agent. A non-empty PhoneNumber is what
// makes a provisioning response successful.
type AgentHandle struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
}
