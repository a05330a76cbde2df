package domain

// UserInfo is the cached profile snapshot (localStorage userInfo).
// Fields the backend adds are ignored.
type UserInfo struct {
	UserID   ID     `json:"userId"`
	Account  string `json:"account"`
	Nickname string `json:"nickname,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

type PointsBalance struct {
	AvailablePoints int64 `json:"availablePoints"`
	FrozenPoints    int64 `json:"frozenPoints"`
}

// Profile is the /user/profile payload.
type Profile struct {
	UserInfo      *UserInfo      `json:"userInfo"`
	PointsBalance *PointsBalance `json:"pointsBalance"`
}

// Session is the locally persisted login identity.
// Account != "" means the user is considered logged in.
type Session struct {
	Account string
	UserID  string
	Profile *UserInfo
}

func (s Session) LoggedIn() bool { return s.Account != "" }
