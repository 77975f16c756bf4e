package entities

import "time"

// MessagePreference 用户私信偏好
type MessagePreference struct {
	UserID                      string    `json:"userId"`
	AllowStrangerMessage        bool      `json:"allowStrangerMessage"`
	AllowNonMutualFollowMessage bool      `json:"allowNonMutualFollowMessage"`
	NotificationEnabled         bool      `json:"notificationEnabled"`
	UpdatedAt                   time.Time `json:"updatedAt"`
}

// DefaultMessagePreference 行不存在时的默认偏好
func DefaultMessagePreference(userID string, allowStranger bool) *MessagePreference {
	return &MessagePreference{
		UserID:                      userID,
		AllowStrangerMessage:        allowStranger,
		AllowNonMutualFollowMessage: true,
		NotificationEnabled:         true,
	}
}
