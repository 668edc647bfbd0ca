package model

// Updatable fields form a closed set per entity kind. Anything not listed here
// is rejected before a write is issued.

type ClientField string

const (
	ClientFieldName         ClientField = "name"
	ClientFieldWhatsApp     ClientField = "whatsapp"
	ClientFieldEmail        ClientField = "email"
	ClientFieldGeneralNotes ClientField = "general_notes"
)

// ParseClientField validates a user-supplied field name.
func ParseClientField(s string) (ClientField, bool) {
	switch ClientField(s) {
	case ClientFieldName, ClientFieldWhatsApp, ClientFieldEmail, ClientFieldGeneralNotes:
		return ClientField(s), true
	}
	return "", false
}

type ProductField string

const (
	ProductFieldName            ProductField = "product_name"
	ProductFieldExpiryDate      ProductField = "expiry_date"
	ProductFieldStatus          ProductField = "status"
	ProductFieldNotes           ProductField = "product_notes"
	ProductFieldServiceUsername ProductField = "service_username"
	ProductFieldServicePassword ProductField = "service_password"
)

// ParseProductField validates a user-supplied field name.
func ParseProductField(s string) (ProductField, bool) {
	switch ProductField(s) {
	case ProductFieldName, ProductFieldExpiryDate, ProductFieldStatus,
		ProductFieldNotes, ProductFieldServiceUsername, ProductFieldServicePassword:
		return ProductField(s), true
	}
	return "", false
}
