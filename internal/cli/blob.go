package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/asad/bluectl/internal/dispatch"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/storage"
)

func newBlobCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Blob helpers built on the dispatcher",
	}
	cmd.AddCommand(newBlobUploadCmd(global))
	return cmd
}

type uploadOptions struct {
	prefix          string
	contentType     string
	createContainer bool
	timeout         requestFlags
}

func newBlobUploadCmd(global *globalOptions) *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <container> <file>...",
		Short: "Upload files as block blobs concurrently",
		Long: `Upload each file as a block blob named after its base name (plus --prefix).
Uploads run in parallel and share the dispatcher's concurrency limit. Every
failure is reported; successful uploads are not rolled back.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			results, err := uploadFiles(cmd.Context(), s, args[0], args[1:], opts)
			if werr := writeJSON(cmd.OutOrStdout(), results); werr != nil {
				return multierr.Append(err, werr)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "prefix added to every blob name")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "content type (detected from the extension when empty)")
	cmd.Flags().BoolVar(&opts.createContainer, "create-container", false, "create the container if it does not exist")
	cmd.Flags().DurationVar(&opts.timeout.timeout, "timeout", 0, "per-upload timeout (default from storage.timeout)")
	return cmd
}

// uploadFiles uploads files into container and returns the successful results
// sorted by blob name, along with every failure combined. Cancelling ctx stops
// uploads that have not started yet.
func uploadFiles(ctx context.Context, s *session, container string, files []string, opts *uploadOptions) ([]*storage.BlobResult, error) {
	if opts.createContainer {
		op := dispatch.NewOperation("blob", "createContainerIfNotExists")
		if _, err := s.dispatcher.Execute(ctx, op, &storage.Call{Args: []string{container}, Options: opts.timeout.options()}); err != nil {
			return nil, fmt.Errorf("create container %s: %w", container, err)
		}
	}

	var (
		mu      sync.Mutex
		errs    error
		results []*storage.BlobResult
	)
	var g errgroup.Group
	g.SetLimit(s.dispatcher.Limit())

	for _, file := range files {
		file := file
		g.Go(func() error {
			// Files not started before cancellation are skipped.
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := uploadFile(ctx, s.dispatcher, container, file, opts)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("upload failed", logging.String("file", file), logging.ErrorField(err))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", file, err))
				return nil
			}
			results = append(results, result)
			return nil
		})
	}
	werr := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, multierr.Append(errs, werr)
}

func uploadFile(ctx context.Context, d *dispatch.Dispatcher, container, file string, opts *uploadOptions) (*storage.BlobResult, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	contentType := opts.contentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(file))
	}
	call := &storage.Call{
		Args:    []string{container, path.Join(opts.prefix, filepath.Base(file)), string(content)},
		Options: opts.timeout.options(),
	}
	call.Options.ContentType = contentType

	result, err := d.Execute(ctx, dispatch.NewOperation("blob", "createBlockBlobFromText"), call)
	if err != nil {
		return nil, err
	}
	blob, ok := result.(*storage.BlobResult)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return blob, nil
}
