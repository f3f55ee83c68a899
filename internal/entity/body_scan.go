package entity

import (
	"math"
	"time"
)

type ScanSource string

const (
	ScanSourceCamera ScanSource = "camera"
	ScanSourceUpload ScanSource = "upload"
)

// BodyMetrics is the flat estimate returned by the vision model. Field names
// follow the JSON the frontend already consumes.
type BodyMetrics struct {
	Gender     string  `json:"gender" validate:"required,oneof=male female"`
	FatScale   float64 `json:"fatScale" validate:"gt=0"`
	Weight     float64 `json:"weight" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
	Age        float64 `json:"age" validate:"gt=0"`
	BMI        float64 `json:"bmi" validate:"gt=0"`
	Calorie    float64 `json:"calorie" validate:"gt=0"`
	Water      float64 `json:"water" validate:"gt=0"`
	WeightLoss float64 `json:"weightLoss" validate:"gt=0"`
	Days       float64 `json:"days" validate:"gt=0"`
}

// Normalize rounds the fields the product treats as whole numbers.
func (m *BodyMetrics) Normalize() {
	m.BMI = math.Round(m.BMI)
	m.Age = math.Round(m.Age)
	m.Days = math.Round(m.Days)
}

type BodyScan struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id,omitempty"`
	Source    ScanSource  `json:"source"`
	ImageURL  string      `json:"image_url,omitempty"`
	Metrics   BodyMetrics `json:"metrics"`
	CreatedAt time.Time   `json:"created_at"`
}
