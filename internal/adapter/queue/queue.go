package queue

// MessageQueue defines the interface for a message queue adapter.
// PublishPersistent is the path remote commands take: the broker must not
// lose the message on restart, and the priority hint lets charging-lifecycle
// events overtake bulk traffic.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	PublishPersistent(subject string, data []byte, priority uint8) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}
