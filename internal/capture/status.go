package capture

import "fmt"

const (
	StatusInitializing        = "Initializing..."
	StatusStartingCamera      = "Starting camera..."
	StatusLoadingModel        = "Loading AI Model..."
	StatusGuidanceUnavailable = "Pose guidance unavailable. Use manual capture."
	StatusHoldSteady          = "Hold steady..."
	StatusShowFeet            = "Go back to show your feet."
	StatusShowFace            = "Show your face clearly."
	StatusPositionBody        = "Position full body in frame."
	StatusNoPerson            = "No person detected."
	StatusCapturing           = "Capturing..."
	StatusCaptureFailed       = "Capture failed. Try again."
)

func holdSteadyStatus(timeLeft int) string {
	return fmt.Sprintf("%s %d", StatusHoldSteady, timeLeft)
}

// Status is what the capture UI renders: the guidance text plus whether the
// frame border should show the pose as acceptable.
type Status struct {
	Message   string `json:"status"`
	PoseValid bool   `json:"pose_valid"`
	State     State  `json:"state"`
}
