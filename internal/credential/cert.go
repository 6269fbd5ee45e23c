package credential

import "time"

// Cert is a concrete credential instance attached to an item
// (spec.md §3).
type Cert struct {
	Id         string    `json:"id" db:"id"`
	ItemId     string    `json:"itemId" db:"item_id"`
	CertConfId string    `json:"certConfId" db:"cert_conf_id"`
	Ak         string    `json:"ak" db:"ak"`
	Sk         string    `json:"sk" db:"sk"` // plaintext if !SkEncrypted, else the SM3 hash
	Kind       Kind      `json:"kind" db:"kind"`
	Supplier   string    `json:"supplier" db:"supplier"`
	Status     string    `json:"status" db:"status"` // Enabled | Disabled
	CoexistSlot int      `json:"coexistSlot" db:"coexist_slot"`
	ValidStart time.Time `json:"validStart" db:"valid_start"`
	ValidEnd   time.Time `json:"validEnd" db:"valid_end"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	StatusEnabled  = "Enabled"
	StatusDisabled = "Disabled"
)

// Valid reports whether the cert is enabled and within its validity
// window at now (P1: valid_start <= now <= valid_end).
func (c Cert) Valid(now time.Time) bool {
	if c.Status != StatusEnabled {
		return false
	}

	if !c.ValidStart.IsZero() && now.Before(c.ValidStart) {
		return false
	}

	if !c.ValidEnd.IsZero() && now.After(c.ValidEnd) {
		return false
	}

	return true
}
