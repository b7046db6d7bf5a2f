package shared

// Notification kinds rendered as toasts.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
)

// Notify queues a one-shot message on the session. A nil session drops it.
func Notify(sess *Session, kind, message string) {
	if sess == nil || message == "" {
		return
	}
	sess.AddFlash(FlashMessage{Kind: kind, Message: message})
}

// NotifyErr queues the user-facing message for err.
func NotifyErr(sess *Session, err error) {
	Notify(sess, NotifyError, UserMessage(err))
}
