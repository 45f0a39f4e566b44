package storage

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BlobService is the handle for blob containers and blobs.
type BlobService struct {
	client
}

var blobMethods = methodTable[*BlobService]{
	"createContainer":            (*BlobService).createContainer,
	"createContainerIfNotExists": (*BlobService).createContainerIfNotExists,
	"deleteContainer":            (*BlobService).deleteContainer,
	"doesContainerExist":         (*BlobService).doesContainerExist,
	"listContainersSegmented":    (*BlobService).listContainersSegmented,
	"createBlockBlobFromText":    (*BlobService).createBlockBlobFromText,
	"getBlobToText":              (*BlobService).getBlobToText,
	"getBlobProperties":          (*BlobService).getBlobProperties,
	"deleteBlob":                 (*BlobService).deleteBlob,
	"listBlobsSegmented":         (*BlobService).listBlobsSegmented,
}

// Kind reports Blob.
func (s *BlobService) Kind() ServiceKind { return Blob }

// Settings returns the resolved account and endpoints the handle talks to.
func (s *BlobService) Settings() *Settings { return s.settings }

// Methods lists the operation names the blob handle accepts, sorted.
func (s *BlobService) Methods() []string { return blobMethods.names() }

// Method looks up a blob operation by name. Names are case-sensitive.
func (s *BlobService) Method(name string) (Method, bool) {
	return blobMethods.bind(s, name)
}

func (s *BlobService) createContainer(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("createContainer", "container")
	if err != nil {
		return nil, err
	}
	_, err = s.do(ctx, request{method: http.MethodPut, path: args, options: call.Options})
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Name: args[0], Created: true}, nil
}

func (s *BlobService) createContainerIfNotExists(ctx context.Context, call *Call) (any, error) {
	res, err := s.createContainer(ctx, call)
	if IsConflict(err) {
		return &ContainerResult{Name: call.Args[0], Created: false}, nil
	}
	return res, err
}

func (s *BlobService) deleteContainer(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteContainer", "container")
	if err != nil {
		return nil, err
	}
	_, err = s.do(ctx, request{method: http.MethodDelete, path: args, options: call.Options})
	if err != nil {
		return nil, err
	}
	return &ContainerResult{Name: args[0], Deleted: true}, nil
}

func (s *BlobService) doesContainerExist(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("doesContainerExist", "container")
	if err != nil {
		return nil, err
	}
	_, err = s.do(ctx, request{method: http.MethodHead, path: args, options: call.Options})
	switch {
	case IsNotFound(err):
		return &ExistsResult{Name: args[0], Exists: false}, nil
	case err != nil:
		return nil, err
	}
	return &ExistsResult{Name: args[0], Exists: true}, nil
}

func (s *BlobService) listContainersSegmented(ctx context.Context, call *Call) (any, error) {
	opts := call.opts()
	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	var out ListContainersResult
	if err := s.doJSON(ctx, request{method: http.MethodGet, query: query, options: call.Options}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BlobService) createBlockBlobFromText(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("createBlockBlobFromText", "container", "blob")
	if err != nil {
		return nil, err
	}
	text := call.optional(2)
	opts := call.opts()

	header := http.Header{}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	header.Set("Content-Type", contentType)
	header.Set("x-ms-blob-type", "BlockBlob")
	for k, v := range opts.Metadata {
		header.Set("x-ms-meta-"+k, v)
	}

	_, err = s.do(ctx, request{
		method:  http.MethodPut,
		path:    args,
		nested:  true,
		header:  header,
		body:    []byte(text),
		options: call.Options,
	})
	if err != nil {
		return nil, err
	}
	return &BlobResult{Container: args[0], Name: args[1], Size: len(text)}, nil
}

func (s *BlobService) getBlobToText(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("getBlobToText", "container", "blob")
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, request{method: http.MethodGet, path: args, nested: true, options: call.Options})
	if err != nil {
		return nil, err
	}
	return &BlobText{
		BlobProperties: blobProperties(args[0], args[1], resp.header),
		Text:           string(resp.body),
	}, nil
}

func (s *BlobService) getBlobProperties(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("getBlobProperties", "container", "blob")
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, request{method: http.MethodHead, path: args, nested: true, options: call.Options})
	if err != nil {
		return nil, err
	}
	props := blobProperties(args[0], args[1], resp.header)
	return &props, nil
}

func (s *BlobService) deleteBlob(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteBlob", "container", "blob")
	if err != nil {
		return nil, err
	}
	if _, err := s.do(ctx, request{method: http.MethodDelete, path: args, nested: true, options: call.Options}); err != nil {
		return nil, err
	}
	return &BlobResult{Container: args[0], Name: args[1]}, nil
}

func (s *BlobService) listBlobsSegmented(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("listBlobsSegmented", "container")
	if err != nil {
		return nil, err
	}
	opts := call.opts()
	query := url.Values{}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	if opts.MaxResults > 0 {
		query.Set("maxresults", strconv.Itoa(opts.MaxResults))
	}
	var out ListBlobsResult
	if err := s.doJSON(ctx, request{method: http.MethodGet, path: args, query: query, options: call.Options}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func blobProperties(container, name string, header http.Header) BlobProperties {
	props := BlobProperties{
		Container:   container,
		Name:        name,
		ContentType: header.Get("Content-Type"),
	}
	if n, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64); err == nil {
		props.ContentLength = n
	}
	if t, err := time.Parse(http.TimeFormat, header.Get("Last-Modified")); err == nil {
		props.LastModified = t
	}
	for key, values := range header {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "x-ms-meta-") && len(values) > 0 {
			if props.Metadata == nil {
				props.Metadata = make(map[string]string)
			}
			props.Metadata[strings.TrimPrefix(lower, "x-ms-meta-")] = values[0]
		}
	}
	return props
}
