package model

import "time"

const NotificationTypeMedicationTaken = "medication_taken"

// GuardianNotification 监护人端展示用的站内通知，只写一次
type GuardianNotification struct {
	ID             string
	GuardianUID    string
	PatientUID     string
	PatientName    string
	MedicationName string
	Type           string
	ImageURL       *string
	Timestamp      time.Time
	Read           bool
}
