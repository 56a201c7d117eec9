package model

import "time"

const (
	DefaultPatientName    = "Patient"
	DefaultMedicationName = "medication"
)

// MedicationEvent 对应 notifications_queue 中的一条服药记录
type MedicationEvent struct {
	ID             string
	PatientUID     string
	PatientName    *string
	MedicationName *string
	ImageURL       *string
	Processed      bool
	ProcessedAt    *time.Time
	Result         *string
	Error          *string
	CreatedAt      time.Time
}

// DisplayPatientName 返回患者名，缺失时为 "Patient"
func (e *MedicationEvent) DisplayPatientName() string {
	if e.PatientName == nil || *e.PatientName == "" {
		return DefaultPatientName
	}
	return *e.PatientName
}

// DisplayMedicationName 返回药品名，缺失时为 "medication"
func (e *MedicationEvent) DisplayMedicationName() string {
	if e.MedicationName == nil || *e.MedicationName == "" {
		return DefaultMedicationName
	}
	return *e.MedicationName
}
