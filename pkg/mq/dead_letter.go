package mq

import "errors"

// DeadLetterError 表示消息无法处理，也不应重新入队，consumer 会 nack 到 DLQ
type DeadLetterError struct {
	Err error
}

func (e *DeadLetterError) Error() string {
	return "dead letter: " + e.Err.Error()
}

func (e *DeadLetterError) Unwrap() error {
	return e.Err
}

// DeadLetter 包装错误，让 consumer 把消息转入 DLQ
func DeadLetter(err error) error {
	return &DeadLetterError{Err: err}
}

func isDeadLetter(err error) bool {
	var dl *DeadLetterError
	return errors.As(err, &dl)
}
