package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductStatus is the lifecycle state of a contracted product.
type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "Active"
	ProductStatusNotice  ProductStatus = "Notice"
	ProductStatusRenewed ProductStatus = "Renewed"
	ProductStatusExpired ProductStatus = "Expired"
)

// NoticeLeadDays is how many days before expiry the reminder fires.
const NoticeLeadDays = 2

// Client is a reseller's customer. Products hang off the client record.
type Client struct {
	ID           string
	Name         string
	WhatsApp     string // canonical +549... form, empty if skipped
	Email        string
	GeneralNotes string
	OwnerUserID  int64
	CreatedAt    time.Time
}

// ClientProduct is one contracted service of a client. ServicePassword is
// stored encrypted; the flow layer decrypts it only for display.
type ClientProduct struct {
	ID              int64
	ClientID        string
	ProductName     string
	ContractDate    time.Time
	ExpiryDate      time.Time
	NoticeDate      time.Time
	Status          ProductStatus
	ProductNotes    string
	ServiceUsername string
	ServicePassword string
	AddedByUserID   int64
	LastNoticeSent  *time.Time
}

// NewClientID generates the short client id, e.g. "clt_1a2b3c4d".
func NewClientID() string {
	return "clt_" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// ProductDates derives contract/expiry/notice dates for a new product
// contracted now for the given duration.
func ProductDates(now time.Time, durationDays int) (contract, expiry, notice time.Time) {
	contract = now
	expiry = now.AddDate(0, 0, durationDays)
	notice = expiry.AddDate(0, 0, -NoticeLeadDays)
	return contract, expiry, notice
}

// RenewDates extends an existing expiry by durationDays and recomputes the
// notice date from the new expiry.
func RenewDates(currentExpiry time.Time, durationDays int) (expiry, notice time.Time) {
	expiry = currentExpiry.AddDate(0, 0, durationDays)
	notice = expiry.AddDate(0, 0, -NoticeLeadDays)
	return expiry, notice
}
