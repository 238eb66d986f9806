package kafka

// Topics carrying marketplace lifecycle events. Consumers (notification
// service, analytics) live outside this repo.
const (
	TopicOrderCompleted    = "order.completed"
	TopicWithdrawalUpdated = "withdrawal.updated"
)
