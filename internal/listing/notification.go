package listing

type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

type Notification struct {
	Kind    NotificationKind
	Message string
}

// 调用方需要持有锁
func (c *Controller[T]) notify(kind NotificationKind, msg string) {
	c.notes = append(c.notes, Notification{Kind: kind, Message: msg})
}

// Notify 供页面在列表之外的操作中追加提示
func (c *Controller[T]) Notify(kind NotificationKind, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify(kind, msg)
}

// TakeNotifications 取出并清空待展示的提示
func (c *Controller[T]) TakeNotifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	notes := c.notes
	c.notes = nil
	return notes
}
