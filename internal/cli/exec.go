package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asad/bluectl/internal/dispatch"
	"github.com/asad/bluectl/internal/storage"
)

// requestFlags map onto storage.RequestOptions.
type requestFlags struct {
	timeout           time.Duration
	requestID         string
	contentType       string
	metadata          map[string]string
	prefix            string
	maxResults        int
	numMessages       int
	visibilityTimeout int
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.DurationVar(&f.timeout, "timeout", 0, "per-call timeout (default from storage.timeout)")
	fs.StringVar(&f.requestID, "request-id", "", "client request id sent with the call")
	fs.StringVar(&f.contentType, "content-type", "", "content type for uploaded blobs")
	fs.StringToStringVar(&f.metadata, "meta", nil, "blob metadata as key=value pairs")
	fs.StringVar(&f.prefix, "prefix", "", "name prefix for list methods")
	fs.IntVar(&f.maxResults, "max-results", 0, "maximum results for list and query methods")
	fs.IntVar(&f.numMessages, "num-messages", 0, "number of messages to get or peek")
	fs.IntVar(&f.visibilityTimeout, "visibility-timeout", 0, "message visibility timeout in seconds")
}

func (f *requestFlags) options() *storage.RequestOptions {
	opts := &storage.RequestOptions{
		ClientRequestID:   f.requestID,
		ContentType:       f.contentType,
		Metadata:          f.metadata,
		Prefix:            f.prefix,
		MaxResults:        f.maxResults,
		NumOfMessages:     f.numMessages,
		VisibilityTimeout: f.visibilityTimeout,
	}
	if f.timeout > 0 {
		opts.TimeoutIntervalInMs = int(f.timeout.Milliseconds())
		if opts.TimeoutIntervalInMs == 0 {
			opts.TimeoutIntervalInMs = 1
		}
	}
	return opts
}

func newExecCmd(global *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "exec <service> <method> [args...]",
		Short: "Run one storage operation and print its result as JSON",
		Long: `Run a single storage method through the dispatcher.

The service is blob, queue or table (case-insensitive). Positional arguments
after the method are passed to it in order, for example:

  bluectl exec blob createContainer photos
  bluectl exec blob createBlockBlobFromText photos hello.txt "hello world"
  bluectl exec queue getMessages jobs --num-messages 5
  bluectl exec table insertOrReplaceEntity people '{"PartitionKey":"eu","RowKey":"ann"}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			op := dispatch.NewOperation(args[0], args[1])
			result, err := s.dispatcher.Execute(cmd.Context(), op, &storage.Call{
				Args:    args[2:],
				Options: flags.options(),
			})
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	flags.register(cmd)
	return cmd
}

func newMethodsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "methods <service>",
		Short: "List the methods a service exposes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := storage.ParseServiceKind(args[0])
			if !ok {
				return &dispatch.OperationTypeError{Kind: args[0]}
			}
			s, err := openSession(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			svc, err := s.dispatcher.GetService(kind, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(svc.Methods(), "\n"))
			return nil
		},
	}
}
