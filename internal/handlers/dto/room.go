package dto

type CreateRoomRequest struct {
	Name            string `json:"name" binding:"required,min=3,max=100"`
	Description     string `json:"description" binding:"max=500"`
	RoomType        string `json:"room_type" binding:"omitempty,oneof=class study_group general"`
	AutoApprove     *bool  `json:"auto_approve"`
	MaxParticipants int    `json:"max_participants" binding:"omitempty,min=2,max=500"`
}

type JoinRoomRequest struct {
	Message string `json:"message" binding:"max=500"`
}

type ProcessRequestRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}
