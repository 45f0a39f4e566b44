package blob

import "time"

// Blob is a stored blob with its content and properties.
type Blob struct {
	Name        string
	Container   string
	Account     string
	Content     []byte
	ContentType string
	Size        int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Metadata    map[string]string
}

// ContainerInfo is one entry of a container listing.
type ContainerInfo struct {
	Name string `json:"Name"`
}

// ContainerListResult is the body of GET /{account}.
type ContainerListResult struct {
	Containers []ContainerInfo `json:"Containers"`
	Prefix     string          `json:"Prefix,omitempty"`
}

// BlobListResult is the body of GET /{account}/{container}.
type BlobListResult struct {
	Blobs      []BlobInfo `json:"Blobs"`
	Prefix     string     `json:"Prefix,omitempty"`
	Marker     string     `json:"Marker,omitempty"`
	MaxResults int        `json:"MaxResults,omitempty"`
}

// BlobInfo is a lightweight representation of a blob used in list operations.
// It contains only properties, not the content.
type BlobInfo struct {
	Name         string            `json:"Name"`
	ContentType  string            `json:"ContentType,omitempty"`
	Size         int64             `json:"ContentLength"`
	LastModified time.Time         `json:"LastModified"`
	Metadata     map[string]string `json:"Metadata,omitempty"`
}
