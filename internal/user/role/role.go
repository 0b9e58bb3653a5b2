// Package role defines the closed set of global roles and the capabilities
// each role carries.
package role

// Role is a user's single global role.
type Role string

const (
	EndUser     Role = "END_USER"
	TenantAdmin Role = "TENANT_ADMIN"
	SuperAdmin  Role = "SUPER_ADMIN"
)

// Capability is a coarse permission granted by a role.
type Capability string

const (
	CapabilitySelfService    Capability = "self:service"
	CapabilityClientManage   Capability = "client:manage"
	CapabilityUserManage     Capability = "user:manage"
	CapabilityAuditView      Capability = "audit:view"
	CapabilitySystemSettings Capability = "system:settings"
)

var capabilities = map[Role][]Capability{
	EndUser: {
		CapabilitySelfService,
	},
	TenantAdmin: {
		CapabilitySelfService,
		CapabilityClientManage,
		CapabilityUserManage,
		CapabilityAuditView,
	},
	SuperAdmin: {
		CapabilitySelfService,
		CapabilityClientManage,
		CapabilityUserManage,
		CapabilityAuditView,
		CapabilitySystemSettings,
	},
}

func Valid(r Role) bool {
	_, ok := capabilities[r]
	return ok
}

// Capabilities returns the capability set for a role. Unknown roles carry none.
func Capabilities(r Role) []Capability {
	caps, ok := capabilities[r]
	if !ok {
		return nil
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Has reports whether the role grants the capability.
func Has(r Role, c Capability) bool {
	for _, granted := range capabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}
