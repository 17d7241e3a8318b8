package panel

import (
	"context"
	"time"
)

// PanelUser represents an account on the VPN panel. Missing fields in the
// panel response map to zero values: DataLimit 0 means unlimited data and
// ExpireAt 0 means no expiry.
type PanelUser struct {
	Username    string   `json:"username"`
	Status      string   `json:"status"` // active, disabled, limited, expired, on_hold
	DataLimit   int64    `json:"data_limit"`
	UsedTraffic int64    `json:"used_traffic"`
	ExpireAt    int64    `json:"expire"` // unix seconds
	SubURL      string   `json:"subscription_url"`
	Links       []string `json:"links,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// CreateUserRequest contains params for creating an account on the panel.
type CreateUserRequest struct {
	Username       string
	ExpireAt       int64 // unix seconds, 0 = no expiry
	DataLimit      int64 // bytes, 0 = unlimited
	DataLimitReset string
	Status         string
	Note           string
}

// ModifyUserRequest contains params for modifying an account. Nil pointer
// fields and empty strings are omitted from the request so the panel leaves
// them untouched.
type ModifyUserRequest struct {
	Status    string
	DataLimit *int64
	ExpireAt  *int64
	Note      *string
}

// UserPage is one page of a panel user listing.
type UserPage struct {
	Total int                      `json:"total"`
	Users []PanelUser              `json:"users"`
	Extra []map[string]interface{} `json:"-"`
}

// Admin is a panel administrator account.
type Admin struct {
	Username   string `json:"username"`
	IsSudo     bool   `json:"is_sudo"`
	TelegramID int64  `json:"telegram_id,omitempty"`
}

// RetryPolicy bounds the subscription-link lookup. Sleep is injectable so
// tests can run without wall-clock delays.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	Sleep    func(time.Duration)
}

// DefaultRetryPolicy matches the panel's observed provisioning lag: the URL
// can be absent for a couple of seconds after account creation.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Sleep:    time.Sleep,
	}
}

// Client is the narrow contract the rest of the bot holds against the panel.
// GetUser returns (nil, nil) when the panel reports the account missing;
// every other failure is a *Error.
type Client interface {
	// Authenticate logs in and stores the bearer token.
	Authenticate(ctx context.Context) error

	// GetUser fetches an account by name. nil, nil when not found.
	GetUser(ctx context.Context, username string) (*PanelUser, error)

	// CreateUser creates a new account.
	CreateUser(ctx context.Context, req CreateUserRequest) (*PanelUser, error)

	// ModifyUser applies a partial update to an existing account.
	ModifyUser(ctx context.Context, username string, req ModifyUserRequest) (*PanelUser, error)

	// DeleteUser removes an account from the panel.
	DeleteUser(ctx context.Context, username string) error

	// ResetTraffic resets an account's traffic usage.
	ResetTraffic(ctx context.Context, username string) error

	// RevokeSubscription revokes and regenerates the subscription link.
	RevokeSubscription(ctx context.Context, username string) (string, error)

	// GetSubscriptionLink resolves the durable access URL, retrying while
	// the panel has not finished provisioning.
	GetSubscriptionLink(ctx context.Context, username string) (string, error)

	// GetUsers returns a page of panel accounts for admin screens.
	GetUsers(ctx context.Context, offset, limit int, search string) (*UserPage, error)

	// GetSystemStats returns panel system statistics.
	GetSystemStats(ctx context.Context) (map[string]interface{}, error)

	// GetNodes returns the panel's node list.
	GetNodes(ctx context.Context) ([]map[string]interface{}, error)

	// Admin CRUD, used by the staff screens.
	GetAdmins(ctx context.Context, offset, limit int, username string) ([]Admin, error)
	CreateAdmin(ctx context.Context, username, password string, isSudo bool) error
	ModifyAdmin(ctx context.Context, username, password string, isSudo bool) error
	DeleteAdmin(ctx context.Context, username string) error
}
