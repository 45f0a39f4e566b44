package storage

import "time"

// ContainerResult is returned by the container create/delete methods.
type ContainerResult struct {
	Name    string `json:"name"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// ExistsResult is returned by doesContainerExist.
type ExistsResult struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// ContainerItem is one entry of listContainersSegmented.
type ContainerItem struct {
	Name string `json:"Name"`
}

// ListContainersResult is returned by listContainersSegmented.
type ListContainersResult struct {
	Containers []ContainerItem `json:"Containers"`
	Prefix     string          `json:"Prefix,omitempty"`
}

// BlobItem is one entry of listBlobsSegmented.
type BlobItem struct {
	Name         string            `json:"Name"`
	ContentType  string            `json:"ContentType,omitempty"`
	Size         int64             `json:"ContentLength"`
	LastModified time.Time         `json:"LastModified"`
	Metadata     map[string]string `json:"Metadata,omitempty"`
}

// ListBlobsResult is returned by listBlobsSegmented.
type ListBlobsResult struct {
	Blobs      []BlobItem `json:"Blobs"`
	Prefix     string     `json:"Prefix,omitempty"`
	MaxResults int        `json:"MaxResults,omitempty"`
}

// BlobResult is returned by createBlockBlobFromText and deleteBlob.
type BlobResult struct {
	Container string `json:"container"`
	Name      string `json:"name"`
	Size      int    `json:"size,omitempty"`
}

// BlobProperties is returned by getBlobProperties.
type BlobProperties struct {
	Container     string            `json:"container"`
	Name          string            `json:"name"`
	ContentType   string            `json:"contentType"`
	ContentLength int64             `json:"contentLength"`
	LastModified  time.Time         `json:"lastModified"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// BlobText is returned by getBlobToText.
type BlobText struct {
	BlobProperties
	Text string `json:"text"`
}

// QueueResult is returned by the queue create/delete/clear methods.
type QueueResult struct {
	Name    string `json:"name"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// QueueItem is one entry of listQueuesSegmented.
type QueueItem struct {
	Name string `json:"Name"`
}

// ListQueuesResult is returned by listQueuesSegmented.
type ListQueuesResult struct {
	Queues []QueueItem `json:"Queues"`
}

// QueueMessage is a message as returned by the queue service.
type QueueMessage struct {
	MessageID       string    `json:"MessageId"`
	InsertionTime   time.Time `json:"InsertionTime"`
	ExpirationTime  time.Time `json:"ExpirationTime"`
	PopReceipt      string    `json:"PopReceipt,omitempty"`
	TimeNextVisible time.Time `json:"TimeNextVisible,omitempty"`
	DequeueCount    int       `json:"DequeueCount"`
	MessageText     string    `json:"MessageText"`
}

// MessagesResult is returned by getMessages and peekMessages.
type MessagesResult struct {
	Messages []QueueMessage `json:"Messages"`
}

// MessageResult is returned by deleteMessage.
type MessageResult struct {
	Queue     string `json:"queue"`
	MessageID string `json:"messageId"`
	Deleted   bool   `json:"deleted"`
}

// TableResult is returned by createTable and deleteTable.
type TableResult struct {
	Name    string `json:"name"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// TableItem is one entry of listTablesSegmented.
type TableItem struct {
	TableName string `json:"TableName"`
}

// ListTablesResult is returned by listTablesSegmented.
type ListTablesResult struct {
	Tables []TableItem `json:"value"`
}

// Entity is a table row. PartitionKey and RowKey are required string properties.
type Entity map[string]any

// EntitiesResult is returned by queryEntities.
type EntitiesResult struct {
	Entities []Entity `json:"value"`
}

// EntityResult is returned by insertOrReplaceEntity and deleteEntity.
type EntityResult struct {
	Table        string `json:"table"`
	PartitionKey string `json:"partitionKey"`
	RowKey       string `json:"rowKey"`
	Deleted      bool   `json:"deleted,omitempty"`
}
