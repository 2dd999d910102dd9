package auth

import (
	"github.com/google/uuid"
)

// DeviceContext is the authenticated device making an upload. Public is the
// device's default visibility for new recordings; nil means the device does
// not define one.
type DeviceContext struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	Public  *bool
}

// Identity is a resolved request identity: a device, a user with group
// visibility rights, or anonymous.
type Identity struct {
	Device    *DeviceContext
	UserID    uuid.UUID
	GroupIDs  []uuid.UUID
	Anonymous bool
}

// AnonymousIdentity returns an identity with no rights beyond public visibility.
func AnonymousIdentity() *Identity {
	return &Identity{Anonymous: true}
}

// CanAccessGroup reports whether the identity has rights over the group.
func (i *Identity) CanAccessGroup(groupID uuid.UUID) bool {
	if i == nil || i.Anonymous {
		return false
	}
	if i.Device != nil && i.Device.GroupID == groupID {
		return true
	}
	for _, g := range i.GroupIDs {
		if g == groupID {
			return true
		}
	}
	return false
}

// OwnsDevice reports whether the identity is the device itself.
func (i *Identity) OwnsDevice(deviceID uuid.UUID) bool {
	return i != nil && i.Device != nil && i.Device.ID == deviceID
}
