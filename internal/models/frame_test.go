package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standingKeypoints = `[[90,100],[110,100],[92,160],[108,160],[92,210],[108,210],[93,260],[107,260]]`

func TestParseFrameInfo(t *testing.T) {
	data := []byte(`{
		"time": "2024-05-01 10:00:00.000000",
		"starttime": 1714557600.25,
		"fps": 14.5,
		"objects": [
			{"id": 0, "cam_id": "CAM1", "class": 0, "bbox": [80, 90, 40, 180], "bbox_conf": 0.91,
			 "keypoints": ` + standingKeypoints + `, "status": " "}
		]
	}`)

	info, skipped, err := ParseFrameInfo(data)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, info.Objects, 1)

	obs := info.Objects[0]
	assert.Equal(t, 0, obs.ID)
	assert.Equal(t, "CAM1", obs.CamID)
	assert.Equal(t, [4]int{80, 90, 40, 180}, obs.BBox)
	require.NotNil(t, info.FPS)
	assert.InDelta(t, 14.5, *info.FPS, 1e-9)
	assert.Equal(t, time.Unix(1714557600, int64(250*time.Millisecond)), info.Timestamp())
}

func TestParseFrameInfoSkipsBadObservations(t *testing.T) {
	data := []byte(`{
		"time": "t", "starttime": 12.5,
		"objects": [
			{"id": "zero", "bbox": [0,0,1,1], "keypoints": null},
			{"id": -1, "bbox": [0,0,1,1], "keypoints": null},
			{"id": 2, "bbox": [0,0,1,1], "bbox_conf": 1.5, "keypoints": null},
			{"id": 3, "bbox": [0,0,1,1], "keypoints": null}
		]
	}`)

	info, skipped, err := ParseFrameInfo(data)
	require.NoError(t, err)
	assert.Len(t, skipped, 3)
	for _, s := range skipped {
		assert.True(t, errors.Is(s, ErrMalformedObservation))
	}
	require.Len(t, info.Objects, 1)
	assert.Equal(t, 3, info.Objects[0].ID)
}

func TestParseFrameInfoMalformedRecord(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `frame`},
		{"missing starttime", `{"time": "t", "objects": []}`},
		{"objects not a list", `{"starttime": 1, "objects": 5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseFrameInfo([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestBodyPoints(t *testing.T) {
	var full []*Point
	require.NoError(t, json.Unmarshal([]byte(standingKeypoints), &full))

	obs := Observation{ID: 1, Keypoints: full}
	pts, err := obs.BodyPoints()
	require.NoError(t, err)
	assert.Equal(t, Point{90, 100}, pts[LeftShoulder])
	assert.Equal(t, Point{107, 260}, pts[RightAnkle])

	short := Observation{ID: 2, Keypoints: full[:7]}
	_, err = short.BodyPoints()
	assert.ErrorIs(t, err, ErrMalformedObservation)

	withNull := make([]*Point, len(full))
	copy(withNull, full)
	withNull[LeftKnee] = nil
	_, err = (&Observation{ID: 3, Keypoints: withNull}).BodyPoints()
	assert.ErrorIs(t, err, ErrMalformedObservation)

	_, err = (&Observation{ID: 4}).BodyPoints()
	assert.ErrorIs(t, err, ErrMalformedObservation)
}

func TestBodyPointsIgnoresTrailingNulls(t *testing.T) {
	var kps []*Point
	require.NoError(t, json.Unmarshal([]byte(`[[1,1],[1,1],[1,1],[1,1],[1,1],[1,1],[1,1],[1,1],null,null]`), &kps))

	_, err := (&Observation{Keypoints: kps}).BodyPoints()
	assert.NoError(t, err)
}

func TestFrameInfoMarshalKeepsEmptyObjects(t *testing.T) {
	info := &FrameInfo{Time: "t", StartTime: 1}
	data, err := info.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"t","starttime":1,"objects":[]}`, string(data))
}

func TestParseCameraCommand(t *testing.T) {
	cmd, err := ParseCameraCommand([]byte(`{"type":"camera","id":"CAM2","action":"add"}`))
	require.NoError(t, err)
	assert.Equal(t, CameraActionAdd, cmd.Action)
	assert.Equal(t, "CAM2", cmd.CameraID)

	_, err = ParseCameraCommand([]byte(`{"id":"CAM2","action":"explode"}`))
	assert.Error(t, err)

	_, err = ParseCameraCommand([]byte(`{"action":"stop"}`))
	assert.Error(t, err)

	_, err = ParseCameraCommand([]byte(`{"type":"gate","id":"G1","action":"add"}`))
	assert.Error(t, err)
}
