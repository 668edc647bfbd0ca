package flow

import (
	"time"

	"client-manager-bot/internal/domain/model"
)

// Kind identifies which flow definition governs a session.
type Kind string

const (
	KindAddClient     Kind = "add_client"
	KindAddProduct    Kind = "add_product"
	KindDeleteClient  Kind = "delete_client"
	KindDeleteProduct Kind = "delete_product"
	KindUpdateClient  Kind = "update_client"
	KindRenewProduct  Kind = "renew_product"
	KindViewClient    Kind = "view_client"
	KindRestore       Kind = "restore"
)

// Step identifies a position within a flow's step sequence.
type Step string

const (
	StepClientName      Step = "await_client_name"
	StepClientWhatsApp  Step = "await_client_whatsapp"
	StepClientEmail     Step = "await_client_email"
	StepClientNotes     Step = "await_client_notes"
	StepProductName     Step = "await_product_name"
	StepProductDuration Step = "await_product_duration"
	StepProductNotes    Step = "await_product_notes"
	StepProductUsername Step = "await_product_username"
	StepProductPassword Step = "await_product_password"

	StepClientSelection  Step = "await_client_selection"
	StepProductDetails   Step = "await_product_details"
	StepProductSelection Step = "await_product_selection"
	StepUpdateTarget     Step = "await_update_target"
	StepFieldSelection   Step = "await_field_selection"
	StepNewValue         Step = "await_new_value"
	StepRenewDuration    Step = "await_renew_duration"
	StepViewQuery        Step = "await_view_query"
	StepBackupFile       Step = "await_backup_file"
	StepRestoreConfirm   Step = "await_restore_confirm"
)

// ClientRef is a lightweight client handle kept in session state.
type ClientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductRef is a lightweight product handle kept in session state.
type ProductRef struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Expiry time.Time `json:"expiry"`
}

// Data keys for accumulated field values.
const (
	dataClientID        = "client_id"
	dataName            = "name"
	dataWhatsApp        = "whatsapp"
	dataEmail           = "email"
	dataGeneralNotes    = "general_notes"
	dataProductName     = "product_name"
	dataProductDuration = "product_duration"
	dataProductNotes    = "product_notes"
	dataServiceUsername = "service_username"
)

// UpdateTarget values for the update flow.
const (
	targetClientGeneral   = "client_general"
	targetProductSpecific = "product_specific"
)

// Session is the per-user record of an in-progress flow. The whole struct is
// JSON-serializable so it can live in Redis as well as in process memory.
// At most one session exists per user; starting a new flow overwrites it.
type Session struct {
	Kind Kind              `json:"kind"`
	Step Step              `json:"step"`
	Data map[string]string `json:"data"`

	// Ephemeral numbered-list lookups, rebuilt every time a list is shown.
	ClientPick  map[int]ClientRef  `json:"client_pick,omitempty"`
	ProductPick map[int]ProductRef `json:"product_pick,omitempty"`

	Client  *ClientRef  `json:"client,omitempty"`
	Product *ProductRef `json:"product,omitempty"`

	UpdateTarget string `json:"update_target,omitempty"`
	Field        string `json:"field,omitempty"`

	Restore []model.BackupClient `json:"restore,omitempty"`

	// Transport message ids to clean up once the flow ends.
	MessagesToDelete []string `json:"messages_to_delete"`
}

// NewSession creates a session positioned at the flow's first step.
func NewSession(kind Kind, step Step) *Session {
	return &Session{
		Kind: kind,
		Step: step,
		Data: make(map[string]string),
	}
}

func (s *Session) track(messageID string) {
	if messageID != "" {
		s.MessagesToDelete = append(s.MessagesToDelete, messageID)
	}
}
