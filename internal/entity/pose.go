package entity

const (
	KeypointNose       = "nose"
	KeypointLeftAnkle  = "left_ankle"
	KeypointRightAnkle = "right_ankle"
)

type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// PoseEstimate holds the keypoints of one detected subject.
type PoseEstimate struct {
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
}

func (p PoseEstimate) Keypoint(name string) (Keypoint, bool) {
	for _, kp := range p.Keypoints {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}
