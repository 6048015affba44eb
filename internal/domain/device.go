package domain

import "time"

// Permission is the access level a caller needs on a device.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Allows reports whether holding p is enough for required. Write implies read.
func (p Permission) Allows(required Permission) bool {
	if p == PermissionWrite {
		return true
	}
	return p == required
}

// Device is the metering device readings belong to. Device CRUD lives in
// another service; this is the slice of it the pipeline needs.
type Device struct {
	ID        string        `json:"id" gorm:"primaryKey;size:64"`
	Name      string        `json:"name"`
	OwnerID   string        `json:"owner_id" gorm:"size:64;index"`
	Shares    []DeviceShare `json:"shares,omitempty" gorm:"foreignKey:DeviceID"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DeviceShare grants a non-owner access to a device.
type DeviceShare struct {
	DeviceID   string     `json:"device_id" gorm:"primaryKey;size:64"`
	UserID     string     `json:"user_id" gorm:"primaryKey;size:64"`
	Permission Permission `json:"permission" gorm:"size:8;not null"`
}

// IsOwned reports whether the device has an owner.
func (d *Device) IsOwned() bool {
	return d.OwnerID != ""
}

// AccessFor returns the permission userID holds on the device, if any.
func (d *Device) AccessFor(userID string) (Permission, bool) {
	if userID == "" {
		return "", false
	}
	if d.OwnerID == userID {
		return PermissionWrite, true
	}
	for _, s := range d.Shares {
		if s.UserID == userID {
			return s.Permission, true
		}
	}
	return "", false
}
