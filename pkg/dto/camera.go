package dto

type CreateCameraRequest struct {
	ID   string `json:"id" binding:"required,max=64"`
	Name string `json:"name"`
}

type CameraCommandResponse struct {
	Status   string `json:"status"`
	CameraID string `json:"camera_id"`
}
