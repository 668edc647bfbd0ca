package model

// BackupClient is one entry of a JSON backup file: a client record plus its
// products, as exported by the admin panel.
type BackupClient struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	WhatsApp     string          `json:"whatsapp"`
	Email        string          `json:"email"`
	GeneralNotes string          `json:"general_notes"`
	Products     []BackupProduct `json:"products"`
}

// BackupProduct mirrors ClientProduct in the backup file. Dates are kept as
// YYYY-MM-DD strings and parsed at restore time.
type BackupProduct struct {
	ProductName     string `json:"product_name"`
	ContractDate    string `json:"contract_date"`
	ExpiryDate      string `json:"expiry_date"`
	NoticeDate      string `json:"notice_date"`
	Status          string `json:"status"`
	ProductNotes    string `json:"product_notes"`
	ServiceUsername string `json:"service_username"`
	ServicePassword string `json:"service_password"`
}
