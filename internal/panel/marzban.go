package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qwqvpn/internal/pkg/httpclient"
)

// Marzban issues bearer tokens with a roughly 24 hour lifetime; we assume
// 23 hours and renew inside the final hour so no operation runs on a token
// about to expire mid-flight.
const (
	tokenLifetime    = 23 * time.Hour
	tokenRenewMargin = time.Hour
)

// MarzbanClient implements Client for Marzban panels.
type MarzbanClient struct {
	baseURL     string
	username    string
	password    string
	token       string
	tokenExpiry time.Time
	client      *httpclient.Client
	retry       RetryPolicy
	now         func() time.Time
}

// NewMarzbanClient creates a new Marzban panel client.
func NewMarzbanClient(baseURL, username, password string, verifySSL bool) *MarzbanClient {
	client := httpclient.New().WithTimeout(30 * time.Second)
	if !verifySSL {
		client = client.WithInsecureSkipVerify()
	}
	return &MarzbanClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   client,
		retry:    DefaultRetryPolicy(),
		now:      time.Now,
	}
}

// WithRetryPolicy overrides the subscription-link retry policy.
func (m *MarzbanClient) WithRetryPolicy(p RetryPolicy) *MarzbanClient {
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	m.retry = p
	return m
}

// Authenticate obtains a bearer token from the Marzban panel.
func (m *MarzbanClient) Authenticate(ctx context.Context) error {
	status, body, err := m.client.PostForm(m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return opErr("auth", err)
	}
	if status != http.StatusOK {
		return detailErr("auth", fmt.Sprintf("unexpected status %d", status))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return opErr("auth parse", err)
	}
	if result.AccessToken == "" {
		return detailErr("auth", "no access_token in response")
	}

	m.token = result.AccessToken
	m.tokenExpiry = m.now().Add(tokenLifetime)
	m.client = m.client.WithBearerToken(result.AccessToken)
	return nil
}

// ensureAuth re-authenticates when the token is absent or close to expiry.
func (m *MarzbanClient) ensureAuth(ctx context.Context) error {
	if m.token == "" || m.now().Add(tokenRenewMargin).After(m.tokenExpiry) {
		return m.Authenticate(ctx)
	}
	return nil
}

// marzbanUser is the wire shape of a Marzban account response. Optional
// fields are pointers so absent and zero are distinguishable during parse.
type marzbanUser struct {
	Username        string   `json:"username"`
	Status          string   `json:"status"`
	DataLimit       *int64   `json:"data_limit"`
	UsedTraffic     *int64   `json:"used_traffic"`
	Expire          *int64   `json:"expire"`
	SubscriptionURL string   `json:"subscription_url"`
	Links           []string `json:"links"`
	Note            string   `json:"note"`
	Detail          string   `json:"detail"`
}

func (u *marzbanUser) toPanelUser() *PanelUser {
	out := &PanelUser{
		Username: u.Username,
		Status:   u.Status,
		SubURL:   u.SubscriptionURL,
		Links:    u.Links,
		Note:     u.Note,
	}
	if u.DataLimit != nil {
		out.DataLimit = *u.DataLimit
	}
	if u.UsedTraffic != nil {
		out.UsedTraffic = *u.UsedTraffic
	}
	if u.Expire != nil {
		out.ExpireAt = *u.Expire
	}
	return out
}

func isNotFoundDetail(detail string) bool {
	return strings.EqualFold(strings.TrimSpace(detail), "User not found")
}

func (m *MarzbanClient) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	status, body, err := m.client.Get(m.baseURL + "/api/user/" + url.PathEscape(username))
	if err != nil {
		return nil, opErr("get user", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, detailErr("get user", fmt.Sprintf("unexpected status %d", status))
	}

	var raw marzbanUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, opErr("get user parse", err)
	}
	// Some panel versions answer 200 with a detail body for unknown users.
	if isNotFoundDetail(raw.Detail) {
		return nil, nil
	}
	if raw.Detail != "" {
		return nil, detailErr("get user", raw.Detail)
	}

	return raw.toPanelUser(), nil
}

func (m *MarzbanClient) CreateUser(ctx context.Context, req CreateUserRequest) (*PanelUser, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"username":   req.Username,
		"status":     req.Status,
		"data_limit": req.DataLimit,
		"note":       req.Note,
		// Marzban provisions vless with flow enabled for new accounts.
		"proxies": map[string]interface{}{
			"vless": map[string]string{"flow": "xtls-rprx-vision"},
		},
	}
	if req.Status == "" {
		body["status"] = "active"
	}
	if req.ExpireAt > 0 {
		body["expire"] = req.ExpireAt
	}
	if req.DataLimitReset != "" {
		body["data_limit_reset_strategy"] = req.DataLimitReset
	}

	status, resp, err := m.client.Post(m.baseURL+"/api/user", body)
	if err != nil {
		return nil, opErr("create user", err)
	}

	var raw marzbanUser
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, opErr("create user parse", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		detail := raw.Detail
		if detail == "" {
			detail = fmt.Sprintf("unexpected status %d", status)
		}
		return nil, detailErr("create user", detail)
	}
	if raw.Detail != "" {
		return nil, detailErr("create user", raw.Detail)
	}

	return raw.toPanelUser(), nil
}

func (m *MarzbanClient) ModifyUser(ctx context.Context, username string, req ModifyUserRequest) (*PanelUser, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	if req.Status != "" {
		body["status"] = req.Status
	}
	if req.DataLimit != nil {
		body["data_limit"] = *req.DataLimit
	}
	if req.ExpireAt != nil {
		body["expire"] = *req.ExpireAt
	}
	if req.Note != nil {
		body["note"] = *req.Note
	}

	status, resp, err := m.client.Put(m.baseURL+"/api/user/"+url.PathEscape(username), body)
	if err != nil {
		return nil, opErr("modify user", err)
	}
	if status == http.StatusNotFound {
		return nil, detailErr("modify user", "user not found")
	}

	var raw marzbanUser
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, opErr("modify user parse", err)
	}
	if status != http.StatusOK {
		detail := raw.Detail
		if detail == "" {
			detail = fmt.Sprintf("unexpected status %d", status)
		}
		return nil, detailErr("modify user", detail)
	}

	return raw.toPanelUser(), nil
}

func (m *MarzbanClient) DeleteUser(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	status, _, err := m.client.Delete(m.baseURL + "/api/user/" + url.PathEscape(username))
	if err != nil {
		return opErr("delete user", err)
	}
	if status != http.StatusOK {
		return detailErr("delete user", fmt.Sprintf("unexpected status %d", status))
	}
	return nil
}

func (m *MarzbanClient) ResetTraffic(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	status, _, err := m.client.Post(m.baseURL+"/api/user/"+url.PathEscape(username)+"/reset", nil)
	if err != nil {
		return opErr("reset traffic", err)
	}
	if status != http.StatusOK {
		return detailErr("reset traffic", fmt.Sprintf("unexpected status %d", status))
	}
	return nil
}

func (m *MarzbanClient) RevokeSubscription(ctx context.Context, username string) (string, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return "", err
	}

	status, body, err := m.client.Post(m.baseURL+"/api/user/"+url.PathEscape(username)+"/revoke_sub", nil)
	if err != nil {
		return "", opErr("revoke subscription", err)
	}
	if status != http.StatusOK {
		return "", detailErr("revoke subscription", fmt.Sprintf("unexpected status %d", status))
	}

	var raw marzbanUser
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", opErr("revoke subscription parse", err)
	}
	return raw.SubscriptionURL, nil
}

// GetSubscriptionLink resolves the durable access URL for an account.
// The panel is known to return account data before proxy routing is fully
// provisioned, so an absent URL right after creation is retried, not
// treated as permanent failure.
func (m *MarzbanClient) GetSubscriptionLink(ctx context.Context, username string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= m.retry.Attempts; attempt++ {
		user, err := m.GetUser(ctx, username)
		switch {
		case err != nil:
			lastErr = err
		case user != nil && user.SubURL != "":
			return user.SubURL, nil
		default:
			lastErr = detailErr("get subscription link", "subscription_url not yet provisioned")
		}

		if attempt < m.retry.Attempts {
			m.retry.Sleep(m.retry.Delay)
		}
	}

	return "", &Error{
		Op:     "get subscription link",
		Detail: fmt.Sprintf("no subscription URL after %d attempts", m.retry.Attempts),
		Err:    lastErr,
	}
}

func (m *MarzbanClient) GetUsers(ctx context.Context, offset, limit int, search string) (*UserPage, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if search != "" {
		q.Set("search", search)
	}

	status, body, err := m.client.Get(m.baseURL + "/api/users?" + q.Encode())
	if err != nil {
		return nil, opErr("list users", err)
	}
	if status != http.StatusOK {
		return nil, detailErr("list users", fmt.Sprintf("unexpected status %d", status))
	}

	var raw struct {
		Total int           `json:"total"`
		Users []marzbanUser `json:"users"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, opErr("list users parse", err)
	}

	page := &UserPage{Total: raw.Total, Users: make([]PanelUser, 0, len(raw.Users))}
	for i := range raw.Users {
		page.Users = append(page.Users, *raw.Users[i].toPanelUser())
	}
	return page, nil
}

func (m *MarzbanClient) GetSystemStats(ctx context.Context) (map[string]interface{}, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	status, body, err := m.client.Get(m.baseURL + "/api/system")
	if err != nil {
		return nil, opErr("system stats", err)
	}
	if status != http.StatusOK {
		return nil, detailErr("system stats", fmt.Sprintf("unexpected status %d", status))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, opErr("system stats parse", err)
	}
	return result, nil
}

// GetNodes returns Marzban nodes from /api/nodes.
func (m *MarzbanClient) GetNodes(ctx context.Context) ([]map[string]interface{}, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	status, body, err := m.client.Get(m.baseURL + "/api/nodes")
	if err != nil {
		return nil, opErr("list nodes", err)
	}
	if status != http.StatusOK {
		return nil, detailErr("list nodes", fmt.Sprintf("unexpected status %d", status))
	}

	var list []map[string]interface{}
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	// Some panel versions wrap the node list.
	var wrapped struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, opErr("list nodes parse", err)
	}
	return wrapped.Items, nil
}

func (m *MarzbanClient) GetAdmins(ctx context.Context, offset, limit int, username string) ([]Admin, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	if username != "" {
		q.Set("username", username)
	}

	status, body, err := m.client.Get(m.baseURL + "/api/admins?" + q.Encode())
	if err != nil {
		return nil, opErr("list admins", err)
	}
	if status != http.StatusOK {
		return nil, detailErr("list admins", fmt.Sprintf("unexpected status %d", status))
	}

	var admins []Admin
	if err := json.Unmarshal(body, &admins); err != nil {
		return nil, opErr("list admins parse", err)
	}
	return admins, nil
}

func (m *MarzbanClient) CreateAdmin(ctx context.Context, username, password string, isSudo bool) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	status, body, err := m.client.Post(m.baseURL+"/api/admin", map[string]interface{}{
		"username": username,
		"password": password,
		"is_sudo":  isSudo,
	})
	if err != nil {
		return opErr("create admin", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return adminStatusErr("create admin", status, body)
	}
	return nil
}

func (m *MarzbanClient) ModifyAdmin(ctx context.Context, username, password string, isSudo bool) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	status, body, err := m.client.Put(m.baseURL+"/api/admin/"+url.PathEscape(username), map[string]interface{}{
		"password": password,
		"is_sudo":  isSudo,
	})
	if err != nil {
		return opErr("modify admin", err)
	}
	if status != http.StatusOK {
		return adminStatusErr("modify admin", status, body)
	}
	return nil
}

func (m *MarzbanClient) DeleteAdmin(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	status, body, err := m.client.Delete(m.baseURL + "/api/admin/" + url.PathEscape(username))
	if err != nil {
		return opErr("delete admin", err)
	}
	if status != http.StatusOK {
		return adminStatusErr("delete admin", status, body)
	}
	return nil
}

func adminStatusErr(op string, status int, body []byte) *Error {
	var raw struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &raw)
	if raw.Detail != "" {
		return detailErr(op, raw.Detail)
	}
	return detailErr(op, fmt.Sprintf("unexpected status %d", status))
}
