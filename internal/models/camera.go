package models

import (
	"encoding/json"
	"fmt"
)

type CameraAction string

const (
	CameraActionAdd    CameraAction = "add"
	CameraActionUpdate CameraAction = "update"
	CameraActionDelete CameraAction = "delete"
	CameraActionStart  CameraAction = "start"
	CameraActionStop   CameraAction = "stop"
)

// CameraCommand is a control-plane message that adds, restarts or removes
// one camera's detection runner.
type CameraCommand struct {
	Type     string       `json:"type,omitempty"`
	Action   CameraAction `json:"action" validate:"required,oneof=add update delete start stop"`
	CameraID string       `json:"id" validate:"required"`
	Name     string       `json:"name,omitempty"`
}

// ParseCameraCommand decodes and validates a control message.
func ParseCameraCommand(data []byte) (CameraCommand, error) {
	var cmd CameraCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse camera command: %w", err)
	}
	if cmd.Type != "" && cmd.Type != "camera" {
		return cmd, fmt.Errorf("parse camera command: unsupported type %q", cmd.Type)
	}
	if err := validate.Struct(&cmd); err != nil {
		return cmd, fmt.Errorf("invalid camera command: %w", err)
	}
	return cmd, nil
}
