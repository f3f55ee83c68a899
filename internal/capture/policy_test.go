package capture

import (
	"testing"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestAssess_FullBodyVisibility(t *testing.T) {
	tests := []struct {
		name       string
		poses      []entity.PoseEstimate
		wantValid  bool
		wantStatus string
	}{
		{
			name:      "all keypoints confident",
			poses:     []entity.PoseEstimate{pose(0.9, 0.9, 0.9)},
			wantValid: true,
		},
		{
			name:       "left ankle weak",
			poses:      []entity.PoseEstimate{pose(0.9, 0.1, 0.9)},
			wantStatus: StatusShowFeet,
		},
		{
			name:       "right ankle exactly at threshold",
			poses:      []entity.PoseEstimate{pose(0.9, 0.9, ConfidenceThreshold)},
			wantStatus: StatusShowFeet,
		},
		{
			name:       "nose weak",
			poses:      []entity.PoseEstimate{pose(0.2, 0.9, 0.9)},
			wantStatus: StatusShowFace,
		},
		{
			name:       "feet reported before face",
			poses:      []entity.PoseEstimate{pose(0.1, 0.1, 0.9)},
			wantStatus: StatusShowFeet,
		},
		{
			name:       "no subject",
			poses:      nil,
			wantStatus: StatusNoPerson,
		},
		{
			name: "missing keypoint counts as invisible",
			poses: []entity.PoseEstimate{{Keypoints: []entity.Keypoint{
				{Name: entity.KeypointNose, Score: 0.9},
				{Name: entity.KeypointRightAnkle, Score: 0.9},
			}}},
			wantStatus: StatusShowFeet,
		},
		{
			name:      "only the first subject counts",
			poses:     []entity.PoseEstimate{pose(0.9, 0.9, 0.9), pose(0, 0, 0)},
			wantValid: true,
		},
		{
			name:       "second subject cannot rescue the first",
			poses:      []entity.PoseEstimate{pose(0.9, 0.0, 0.9), pose(0.9, 0.9, 0.9)},
			wantStatus: StatusShowFeet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Assess(tt.poses)
			assert.Equal(t, tt.wantValid, a.FullBodyVisible())
			if !tt.wantValid {
				assert.Equal(t, tt.wantStatus, a.Guidance())
			}
		})
	}
}

func TestAssess_ThresholdIsStrict(t *testing.T) {
	for _, score := range []float64{0, 0.1, 0.29, 0.3} {
		assert.False(t, Assess([]entity.PoseEstimate{pose(score, 0.9, 0.9)}).FullBodyVisible(), "nose=%v", score)
	}
	for _, score := range []float64{0.31, 0.5, 1} {
		assert.True(t, Assess([]entity.PoseEstimate{pose(score, score, score)}).FullBodyVisible(), "score=%v", score)
	}
}

func TestAssessment_GuidanceFallback(t *testing.T) {
	a := Assessment{Detected: true, NoseVisible: true, LeftAnkleVisible: true, RightAnkleVisible: true}
	assert.Equal(t, StatusPositionBody, a.Guidance())
}
