package domain

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// DisplayInfo is what other users see about an online user.
type DisplayInfo struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}

// User is the directory entry of a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) DisplayInfo(status string) DisplayInfo {
	return DisplayInfo{ID: u.ID, Username: u.Username, Email: u.Email, Status: status}
}
