package models

// Stats is the aggregate view shown on the admin dashboard.
type Stats struct {
	Total    int64 `json:"total_users"`
	Approved int64 `json:"approved_users"`
	Pending  int64 `json:"pending_users"`
	Admins   int64 `json:"admin_users"`
}
