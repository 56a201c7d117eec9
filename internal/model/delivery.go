package model

// DeliveryOutcome 单个监护人的推送结果，只存在于内存中
type DeliveryOutcome struct {
	GuardianID string `json:"guardianId"`
	Success    bool   `json:"success"`
	// Delivered 表示推送通道是否确认送达，与站内通知写入结果无关
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}
