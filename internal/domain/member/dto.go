package member

// UpdateProfileRequest is the PATCH body for profile updates.
type UpdateProfileRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// LoginRequest is the body for username/password login.
type LoginRequest struct {
	LoginName string `json:"login_name" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// LoginResponse carries the issued token and the member snapshot.
type LoginResponse struct {
	Token  string    `json:"token"`
	Member *Snapshot `json:"member"`
}

// SetStatusRequest is the admin body for account status changes.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,member_status"`
}
