package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrContainerExists   = errors.New("container already exists")
	ErrContainerNotFound = errors.New("container does not exist")
	ErrBlobNotFound      = errors.New("blob does not exist")
	ErrInvalidName       = errors.New("invalid name")
)

// BlobStore defines the storage backend behind the blob service.
type BlobStore interface {
	CreateContainer(ctx context.Context, account, containerName string) error
	DeleteContainer(ctx context.Context, account, containerName string) error
	ContainerExists(ctx context.Context, account, containerName string) (bool, error)
	ListContainers(ctx context.Context, account, prefix string) ([]ContainerInfo, error)

	PutBlob(ctx context.Context, account, containerName, blobName string, content []byte, contentType string, metadata map[string]string) error
	GetBlob(ctx context.Context, account, containerName, blobName string) (*Blob, error)
	DeleteBlob(ctx context.Context, account, containerName, blobName string) error

	// ListBlobs returns blobs whose names start with prefix, at most maxResults
	// of them when maxResults > 0, sorted by name.
	ListBlobs(ctx context.Context, account, containerName, prefix string, maxResults int) ([]BlobInfo, error)
}

// FileBlobStore stores blob content under <dir>/blob/<account>/<container>/<blob>
// and properties as JSON under <dir>/blob-meta/<account>/<container>/<blob>.json.
// Containers are directories, so existing data survives restarts.
type FileBlobStore struct {
	dataDir string
	metaDir string
	mu      sync.RWMutex
}

// blobProps is the sidecar persisted next to each blob.
type blobProps struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// NewFileBlobStore creates the store directories under baseDir.
func NewFileBlobStore(baseDir string) (*FileBlobStore, error) {
	s := &FileBlobStore{
		dataDir: filepath.Join(baseDir, "blob"),
		metaDir: filepath.Join(baseDir, "blob-meta"),
	}
	for _, dir := range []string{s.dataDir, s.metaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
	}
	return s, nil
}

func validSegment(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func validBlobName(name string) bool {
	return name != "" && filepath.IsLocal(filepath.FromSlash(name))
}

func (s *FileBlobStore) containerPath(account, containerName string) (string, error) {
	if !validSegment(account) || !validSegment(containerName) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidName, account, containerName)
	}
	return filepath.Join(s.dataDir, account, containerName), nil
}

func (s *FileBlobStore) blobPaths(account, containerName, blobName string) (data, meta string, err error) {
	container, err := s.containerPath(account, containerName)
	if err != nil {
		return "", "", err
	}
	if !validBlobName(blobName) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidName, blobName)
	}
	rel := filepath.FromSlash(blobName)
	return filepath.Join(container, rel), filepath.Join(s.metaDir, account, containerName, rel+".json"), nil
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *FileBlobStore) CreateContainer(ctx context.Context, account, containerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.containerPath(account, containerName)
	if err != nil {
		return err
	}
	exists, err := dirExists(path)
	if err != nil {
		return fmt.Errorf("failed to stat container: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrContainerExists, containerName)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create container directory: %w", err)
	}
	return nil
}

func (s *FileBlobStore) DeleteContainer(ctx context.Context, account, containerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.containerPath(account, containerName)
	if err != nil {
		return err
	}
	exists, err := dirExists(path)
	if err != nil {
		return fmt.Errorf("failed to stat container: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, containerName)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete container directory: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(s.metaDir, account, containerName)); err != nil {
		return fmt.Errorf("failed to delete container metadata: %w", err)
	}
	return nil
}

func (s *FileBlobStore) ContainerExists(ctx context.Context, account, containerName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.containerPath(account, containerName)
	if err != nil {
		return false, err
	}
	return dirExists(path)
}

func (s *FileBlobStore) ListContainers(ctx context.Context, account, prefix string) ([]ContainerInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !validSegment(account) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, account)
	}
	entries, err := os.ReadDir(filepath.Join(s.dataDir, account))
	if err != nil {
		if os.IsNotExist(err) {
			return []ContainerInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	results := make([]ContainerInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		results = append(results, ContainerInfo{Name: e.Name()})
	}
	return results, nil
}

func (s *FileBlobStore) PutBlob(ctx context.Context, account, containerName, blobName string, content []byte, contentType string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataPath, metaPath, err := s.blobPaths(account, containerName, blobName)
	if err != nil {
		return err
	}
	container, _ := s.containerPath(account, containerName)
	exists, err := dirExists(container)
	if err != nil {
		return fmt.Errorf("failed to stat container: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, containerName)
	}

	if err := os.MkdirAll(filepath.Dir(dataPath), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(dataPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}

	props := blobProps{ContentType: contentType, Metadata: metadata, CreatedAt: time.Now().UTC()}
	if prev, err := readProps(metaPath); err == nil {
		props.CreatedAt = prev.CreatedAt
	}
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode blob properties: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob properties: %w", err)
	}
	return nil
}

func readProps(path string) (*blobProps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var props blobProps
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

func (p *blobProps) orDefault(modTime time.Time) *blobProps {
	if p == nil {
		p = &blobProps{CreatedAt: modTime}
	}
	if p.ContentType == "" {
		p.ContentType = "application/octet-stream"
	}
	if p.Metadata == nil {
		p.Metadata = make(map[string]string)
	}
	return p
}

func (s *FileBlobStore) GetBlob(ctx context.Context, account, containerName, blobName string) (*Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataPath, metaPath, err := s.blobPaths(account, containerName, blobName)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dataPath)
	if err != nil || info.IsDir() {
		if err == nil || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, blobName)
		}
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}
	content, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	props, _ := readProps(metaPath)
	props = props.orDefault(info.ModTime())
	return &Blob{
		Name:        blobName,
		Container:   containerName,
		Account:     account,
		Content:     content,
		ContentType: props.ContentType,
		Size:        info.Size(),
		CreatedAt:   props.CreatedAt,
		ModifiedAt:  info.ModTime(),
		Metadata:    props.Metadata,
	}, nil
}

func (s *FileBlobStore) DeleteBlob(ctx context.Context, account, containerName, blobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataPath, metaPath, err := s.blobPaths(account, containerName, blobName)
	if err != nil {
		return err
	}
	if err := os.Remove(dataPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrBlobNotFound, blobName)
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob properties: %w", err)
	}
	return nil
}

func (s *FileBlobStore) ListBlobs(ctx context.Context, account, containerName, prefix string, maxResults int) ([]BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	containerPath, err := s.containerPath(account, containerName)
	if err != nil {
		return nil, err
	}
	exists, err := dirExists(containerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat container: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, containerName)
	}

	results := []BlobInfo{}
	err = filepath.WalkDir(containerPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(containerPath, path)
		if err != nil {
			return err
		}
		blobName := filepath.ToSlash(relPath)
		if !strings.HasPrefix(blobName, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		metaPath := filepath.Join(s.metaDir, account, containerName, relPath+".json")
		props, _ := readProps(metaPath)
		props = props.orDefault(info.ModTime())

		results = append(results, BlobInfo{
			Name:         blobName,
			ContentType:  props.ContentType,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			Metadata:     props.Metadata,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
