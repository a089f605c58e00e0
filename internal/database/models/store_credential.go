package models

// StoreCredential holds a service token for the role store, used by the
// background repair worker which cannot reuse a caller's bearer token.
type StoreCredential struct {
	Base
	Name string `gorm:"not null" json:"name"`

	// Encrypted token (age encrypted blob)
	EncryptedToken []byte `gorm:"type:bytea;not null" json:"-"`

	IsActive bool  `gorm:"default:true" json:"is_active"`
	LastUsed int64 `json:"last_used,omitempty"`
}

func (StoreCredential) TableName() string {
	return "store_credentials"
}
