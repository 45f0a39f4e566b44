package queue

import "time"

// Message is a queued message as returned to clients.
type Message struct {
	MessageID       string    `json:"MessageId"`
	InsertionTime   time.Time `json:"InsertionTime"`
	ExpirationTime  time.Time `json:"ExpirationTime"`
	PopReceipt      string    `json:"PopReceipt,omitempty"`
	TimeNextVisible time.Time `json:"TimeNextVisible,omitempty"`
	DequeueCount    int       `json:"DequeueCount"`
	MessageText     string    `json:"MessageText"`
}

// QueueInfo is one entry of a queue listing.
type QueueInfo struct {
	Name string `json:"Name"`
}

// QueueListResult is the body of GET /{account}.
type QueueListResult struct {
	Queues []QueueInfo `json:"Queues"`
	Prefix string      `json:"Prefix,omitempty"`
}

// MessageListResult is the body of GET /{account}/{queue}/messages.
type MessageListResult struct {
	Messages []Message `json:"Messages"`
}
