package capture

import (
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
)

const (
	// ConfidenceThreshold is the score a keypoint must exceed to count as visible.
	ConfidenceThreshold = 0.3
	// HoldDuration is how long the full body must stay visible before auto-capture.
	HoldDuration = 3 * time.Second
)

// Assessment is the visibility verdict for one inference result.
type Assessment struct {
	Detected          bool
	NoseVisible       bool
	LeftAnkleVisible  bool
	RightAnkleVisible bool
}

// Assess evaluates the first detected subject. Extra subjects are ignored.
func Assess(poses []entity.PoseEstimate) Assessment {
	if len(poses) == 0 {
		return Assessment{}
	}

	pose := poses[0]
	return Assessment{
		Detected:          true,
		NoseVisible:       visible(pose, entity.KeypointNose),
		LeftAnkleVisible:  visible(pose, entity.KeypointLeftAnkle),
		RightAnkleVisible: visible(pose, entity.KeypointRightAnkle),
	}
}

func visible(pose entity.PoseEstimate, name string) bool {
	kp, ok := pose.Keypoint(name)
	return ok && kp.Score > ConfidenceThreshold
}

func (a Assessment) FullBodyVisible() bool {
	return a.Detected && a.NoseVisible && a.LeftAnkleVisible && a.RightAnkleVisible
}

// Guidance picks the status shown while the pose is not acceptable. Missing
// feet are reported before a missing face.
func (a Assessment) Guidance() string {
	switch {
	case !a.Detected:
		return StatusNoPerson
	case !a.LeftAnkleVisible || !a.RightAnkleVisible:
		return StatusShowFeet
	case !a.NoseVisible:
		return StatusShowFace
	default:
		return StatusPositionBody
	}
}
