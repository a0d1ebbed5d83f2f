package model

import (
	"sort"
	"time"
)

// Account types. SUPER_ADMIN users manage the platform and belong to no
// theater. THEATER_ADMIN users hold every permission inside their theater.
// THEATER_USER users get the permissions of their assigned Role.
const (
	AccountSuperAdmin   = "SUPER_ADMIN"
	AccountTheaterAdmin = "THEATER_ADMIN"
	AccountTheaterUser  = "THEATER_USER"
)

// ValidAccountType reports whether t is a known account type.
func ValidAccountType(t string) bool {
	switch t {
	case AccountSuperAdmin, AccountTheaterAdmin, AccountTheaterUser:
		return true
	}
	return false
}

// Permission keys granted through roles.
const (
	PermDashboardView = "dashboard.view"
	PermTheaterManage = "theater.manage"
	PermRoleManage    = "role.manage"
	PermUserManage    = "user.manage"
	PermQRCodeManage  = "qrcode.manage"
	PermBannerManage  = "banner.manage"
	PermProductManage = "product.manage"
	PermOrderView     = "order.view"
	PermOrderManage   = "order.manage"
	PermUploadCreate  = "upload.create"
	PermSMSSend       = "sms.send"
)

var allPermissions = map[string]string{
	PermDashboardView: "View the theater dashboard",
	PermTheaterManage: "Edit the theater profile",
	PermRoleManage:    "Manage roles and their permissions",
	PermUserManage:    "Manage theater users",
	PermQRCodeManage:  "Manage QR code names and QR codes",
	PermBannerManage:  "Manage theater banners",
	PermProductManage: "Manage product types and products",
	PermOrderView:     "View orders",
	PermOrderManage:   "Create orders and change their status",
	PermUploadCreate:  "Upload images",
	PermSMSSend:       "Send SMS messages",
}

// PermissionInfo describes a permission key for the permissions listing.
type PermissionInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// Permissions returns every known permission sorted by key.
func Permissions() []PermissionInfo {
	out := make([]PermissionInfo, 0, len(allPermissions))
	for k, d := range allPermissions {
		out = append(out, PermissionInfo{Key: k, Description: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// AllPermissionKeys returns every known permission key sorted.
func AllPermissionKeys() []string {
	keys := make([]string, 0, len(allPermissions))
	for k := range allPermissions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsPermission reports whether key is a known permission.
func IsPermission(key string) bool {
	_, ok := allPermissions[key]
	return ok
}

// User is a platform or theater account.
type User struct {
	ID           uint64     `json:"id"`
	TheaterID    *uint64    `json:"theater_id,omitempty"` // nil for SUPER_ADMIN
	RoleID       *uint64    `json:"role_id,omitempty"`    // set for THEATER_USER
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"`
	AccountType  string     `json:"account_type"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TheaterIDOrZero returns the user's theater ID or 0 for platform users.
func (u User) TheaterIDOrZero() uint64 {
	if u.TheaterID == nil {
		return 0
	}
	return *u.TheaterID
}

// Role is a theater-scoped set of permissions assigned to THEATER_USER accounts.
type Role struct {
	ID          uint64    `json:"id"`
	TheaterID   uint64    `json:"theater_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	IsDefault   bool      `json:"is_default"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grants reports whether the role is active and includes key.
func (r Role) Grants(key string) bool {
	if !r.IsActive {
		return false
	}
	for _, p := range r.Permissions {
		if p == key {
			return true
		}
	}
	return false
}

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
