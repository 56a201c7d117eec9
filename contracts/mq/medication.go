package mq

const (
	// RoutingKeyMedicationTaken 患者服药事件
	RoutingKeyMedicationTaken = "medication.taken"
	// QueueMedicationTakenNotify 监护人推送队列
	QueueMedicationTakenNotify = "medication.taken.notify.q"
)

// MedicationTakenPayload 只携带事件 ID，消费端从 notifications_queue 读取完整记录
type MedicationTakenPayload struct {
	EventID    string `json:"event_id"`
	PatientUID string `json:"patient_uid"`
	TraceID    string `json:"trace_id,omitempty"`
}
