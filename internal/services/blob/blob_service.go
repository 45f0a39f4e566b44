package blob

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
)

// BlobService emulates the blob endpoint the storage clients talk to.
type BlobService struct {
	store  BlobStore
	logger logging.Logger
}

// NewBlobService creates a new blob service instance.
func NewBlobService(store BlobStore, logger logging.Logger) *BlobService {
	return &BlobService{
		store:  store,
		logger: logger,
	}
}

// Name returns the service identifier.
func (s *BlobService) Name() string {
	return "blob"
}

// RegisterRoutes sets up HTTP routes for blob operations:
//   - GET    /{account}                    list containers
//   - PUT    /{account}/{container}        create container
//   - HEAD   /{account}/{container}        container exists
//   - DELETE /{account}/{container}        delete container
//   - GET    /{account}/{container}        list blobs (?prefix, ?maxresults)
//   - PUT    /{account}/{container}/{blob} upload blob
//   - GET    /{account}/{container}/{blob} download blob
//   - HEAD   /{account}/{container}/{blob} blob properties
//   - DELETE /{account}/{container}/{blob} delete blob
func (s *BlobService) RegisterRoutes(router chi.Router) {
	router.Get("/{account}", s.handleListContainers)

	router.Put("/{account}/{container}", s.handleCreateContainer)
	router.Head("/{account}/{container}", s.handleContainerExists)
	router.Delete("/{account}/{container}", s.handleDeleteContainer)
	router.Get("/{account}/{container}", s.handleListBlobs)

	router.Put("/{account}/{container}/*", s.handlePutBlob)
	router.Get("/{account}/{container}/*", s.handleGetBlob)
	router.Head("/{account}/{container}/*", s.handleGetBlob)
	router.Delete("/{account}/{container}/*", s.handleDeleteBlob)
}

// writeStoreError maps store errors onto storage error codes. Unknown errors
// are logged and reported as InternalError.
func (s *BlobService) writeStoreError(w http.ResponseWriter, err error, op string, fields ...logging.Field) {
	switch {
	case errors.Is(err, ErrContainerExists):
		core.WriteError(w, http.StatusConflict, "ContainerAlreadyExists", err.Error())
	case errors.Is(err, ErrContainerNotFound):
		core.WriteError(w, http.StatusNotFound, "ContainerNotFound", err.Error())
	case errors.Is(err, ErrBlobNotFound):
		core.WriteError(w, http.StatusNotFound, "BlobNotFound", err.Error())
	case errors.Is(err, ErrInvalidName):
		core.WriteError(w, http.StatusBadRequest, "InvalidResourceName", err.Error())
	default:
		s.logger.Error("failed to "+op, append(fields, logging.ErrorField(err))...)
		core.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to "+op)
	}
}

func (s *BlobService) handleListContainers(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	prefix := r.URL.Query().Get("prefix")

	containers, err := s.store.ListContainers(r.Context(), account, prefix)
	if err != nil {
		s.writeStoreError(w, err, "list containers", logging.String("account", account))
		return
	}
	core.WriteJSON(w, http.StatusOK, ContainerListResult{Containers: containers, Prefix: prefix})
}

func (s *BlobService) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")

	if err := s.store.CreateContainer(r.Context(), account, containerName); err != nil {
		s.writeStoreError(w, err, "create container",
			logging.String("account", account),
			logging.String("container", containerName),
		)
		return
	}

	s.logger.Info("container created",
		logging.String("account", account),
		logging.String("container", containerName),
	)
	w.WriteHeader(http.StatusCreated)
}

func (s *BlobService) handleContainerExists(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")

	exists, err := s.store.ContainerExists(r.Context(), account, containerName)
	if err != nil {
		s.writeStoreError(w, err, "check container", logging.String("container", containerName))
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *BlobService) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")

	if err := s.store.DeleteContainer(r.Context(), account, containerName); err != nil {
		s.writeStoreError(w, err, "delete container",
			logging.String("account", account),
			logging.String("container", containerName),
		)
		return
	}

	s.logger.Info("container deleted",
		logging.String("account", account),
		logging.String("container", containerName),
	)
	w.WriteHeader(http.StatusAccepted)
}

func (s *BlobService) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")
	blobName := core.URLParam(r, "*")

	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("failed to read request body", logging.ErrorField(err))
		core.WriteError(w, http.StatusBadRequest, "InvalidInput", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metadata := make(map[string]string)
	for key, values := range r.Header {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "x-ms-meta-") && len(values) > 0 {
			metadata[strings.TrimPrefix(lower, "x-ms-meta-")] = values[0]
		}
	}

	err = s.store.PutBlob(r.Context(), account, containerName, blobName, content, contentType, metadata)
	if err != nil {
		s.writeStoreError(w, err, "upload blob",
			logging.String("account", account),
			logging.String("container", containerName),
			logging.String("blob", blobName),
		)
		return
	}

	s.logger.Info("blob uploaded",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
		logging.Int("size", len(content)),
	)
	w.WriteHeader(http.StatusCreated)
}

// handleGetBlob serves GET (content) and HEAD (properties only).
func (s *BlobService) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")
	blobName := core.URLParam(r, "*")

	blob, err := s.store.GetBlob(r.Context(), account, containerName, blobName)
	if err != nil {
		if r.Method == http.MethodHead && (errors.Is(err, ErrBlobNotFound) || errors.Is(err, ErrContainerNotFound)) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.writeStoreError(w, err, "retrieve blob",
			logging.String("account", account),
			logging.String("container", containerName),
			logging.String("blob", blobName),
		)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	w.Header().Set("Last-Modified", blob.ModifiedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("x-ms-blob-type", "BlockBlob")
	for key, value := range blob.Metadata {
		w.Header().Set("x-ms-meta-"+key, value)
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	s.logger.Debug("blob downloaded",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
		logging.Int64("size", blob.Size),
	)
	w.Write(blob.Content)
}

func (s *BlobService) handleDeleteBlob(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")
	blobName := core.URLParam(r, "*")

	if err := s.store.DeleteBlob(r.Context(), account, containerName, blobName); err != nil {
		s.writeStoreError(w, err, "delete blob",
			logging.String("account", account),
			logging.String("container", containerName),
			logging.String("blob", blobName),
		)
		return
	}

	s.logger.Info("blob deleted",
		logging.String("account", account),
		logging.String("container", containerName),
		logging.String("blob", blobName),
	)
	w.WriteHeader(http.StatusAccepted)
}

func (s *BlobService) handleListBlobs(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	containerName := core.URLParam(r, "container")

	prefix := r.URL.Query().Get("prefix")
	maxResults := 0
	if val, err := strconv.Atoi(r.URL.Query().Get("maxresults")); err == nil && val > 0 {
		maxResults = val
	}

	blobs, err := s.store.ListBlobs(r.Context(), account, containerName, prefix, maxResults)
	if err != nil {
		s.writeStoreError(w, err, "list blobs",
			logging.String("account", account),
			logging.String("container", containerName),
		)
		return
	}

	result := BlobListResult{
		Blobs:      blobs,
		Prefix:     prefix,
		MaxResults: maxResults,
	}
	if err := core.WriteJSON(w, http.StatusOK, result); err != nil {
		s.logger.Error("failed to encode response", logging.ErrorField(err))
	}
}

// Ensure BlobService implements the Service interface.
var _ core.Service = (*BlobService)(nil)
