package dto

// NotifyRequest sends one in-app notification
type NotifyRequest struct {
	UserID            int64  `json:"userId" binding:"required,gt=0" example:"12"`
	Type              string `json:"type" binding:"required,max=64" example:"announcement"`
	Title             string `json:"title" binding:"required,max=200" example:"Advising week"`
	Message           string `json:"message" binding:"required" example:"Book a slot with your advisor before Friday."`
	Priority          string `json:"priority,omitempty" binding:"omitempty,oneof=Low Normal High Urgent" example:"Normal"`
	RelatedEntityType string `json:"relatedEntityType,omitempty" binding:"omitempty,oneof=student user risk_assessment intervention notification"`
	RelatedEntityID   *int64 `json:"relatedEntityId,omitempty" binding:"omitempty,gt=0"`
	Email             bool   `json:"email"`
}

// BroadcastRequest sends the same notification to many users
type BroadcastRequest struct {
	UserIDs  []int64 `json:"userIds" binding:"required,min=1,dive,gt=0"`
	Type     string  `json:"type" binding:"required,max=64" example:"announcement"`
	Title    string  `json:"title" binding:"required,max=200"`
	Message  string  `json:"message" binding:"required"`
	Priority string  `json:"priority,omitempty" binding:"omitempty,oneof=Low Normal High Urgent"`
	Email    bool    `json:"email"`
}
