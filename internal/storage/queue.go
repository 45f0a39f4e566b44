package storage

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// QueueService is the handle for queues and their messages.
type QueueService struct {
	client
}

var queueMethods = methodTable[*QueueService]{
	"createQueue":         (*QueueService).createQueue,
	"deleteQueue":         (*QueueService).deleteQueue,
	"listQueuesSegmented": (*QueueService).listQueuesSegmented,
	"createMessage":       (*QueueService).createMessage,
	"getMessages":         (*QueueService).getMessages,
	"peekMessages":        (*QueueService).peekMessages,
	"deleteMessage":       (*QueueService).deleteMessage,
	"clearMessages":       (*QueueService).clearMessages,
}

// Kind reports Queue.
func (s *QueueService) Kind() ServiceKind { return Queue }

// Settings returns the settings the handle was built from.
func (s *QueueService) Settings() *Settings { return s.settings }

// Methods lists the queue operation names in sorted order.
func (s *QueueService) Methods() []string { return queueMethods.names() }

// Method returns the named queue operation bound to this handle.
func (s *QueueService) Method(name string) (Method, bool) {
	return queueMethods.bind(s, name)
}

func (s *QueueService) createQueue(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("createQueue", "queue")
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, request{method: http.MethodPut, path: args, options: call.Options})
	if err != nil {
		return nil, err
	}
	return &QueueResult{Name: args[0], Created: resp.status == http.StatusCreated}, nil
}

func (s *QueueService) deleteQueue(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteQueue", "queue")
	if err != nil {
		return nil, err
	}
	if _, err := s.do(ctx, request{method: http.MethodDelete, path: args, options: call.Options}); err != nil {
		return nil, err
	}
	return &QueueResult{Name: args[0], Deleted: true}, nil
}

func (s *QueueService) listQueuesSegmented(ctx context.Context, call *Call) (any, error) {
	query := url.Values{}
	if prefix := call.opts().Prefix; prefix != "" {
		query.Set("prefix", prefix)
	}
	var out ListQueuesResult
	if err := s.doJSON(ctx, request{method: http.MethodGet, query: query, options: call.Options}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *QueueService) createMessage(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("createMessage", "queue")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if v := call.opts().VisibilityTimeout; v > 0 {
		query.Set("visibilitytimeout", strconv.Itoa(v))
	}
	var out QueueMessage
	err = s.doJSON(ctx, request{
		method:  http.MethodPost,
		path:    []string{args[0], "messages"},
		query:   query,
		body:    []byte(call.optional(1)),
		options: call.Options,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *QueueService) getMessages(ctx context.Context, call *Call) (any, error) {
	return s.receive(ctx, call, "getMessages", false)
}

func (s *QueueService) peekMessages(ctx context.Context, call *Call) (any, error) {
	return s.receive(ctx, call, "peekMessages", true)
}

func (s *QueueService) receive(ctx context.Context, call *Call, method string, peek bool) (any, error) {
	args, err := call.args(method, "queue")
	if err != nil {
		return nil, err
	}
	opts := call.opts()
	query := url.Values{}
	if opts.NumOfMessages > 0 {
		query.Set("numofmessages", strconv.Itoa(opts.NumOfMessages))
	}
	if peek {
		query.Set("peekonly", "true")
	} else if opts.VisibilityTimeout > 0 {
		query.Set("visibilitytimeout", strconv.Itoa(opts.VisibilityTimeout))
	}
	var out MessagesResult
	err = s.doJSON(ctx, request{
		method:  http.MethodGet,
		path:    []string{args[0], "messages"},
		query:   query,
		options: call.Options,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *QueueService) deleteMessage(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteMessage", "queue", "messageId", "popReceipt")
	if err != nil {
		return nil, err
	}
	_, err = s.do(ctx, request{
		method:  http.MethodDelete,
		path:    []string{args[0], "messages", args[1]},
		query:   url.Values{"popreceipt": {args[2]}},
		options: call.Options,
	})
	if err != nil {
		return nil, err
	}
	return &MessageResult{Queue: args[0], MessageID: args[1], Deleted: true}, nil
}

func (s *QueueService) clearMessages(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("clearMessages", "queue")
	if err != nil {
		return nil, err
	}
	_, err = s.do(ctx, request{
		method:  http.MethodDelete,
		path:    []string{args[0], "messages"},
		options: call.Options,
	})
	if err != nil {
		return nil, err
	}
	return &QueueResult{Name: args[0], Cleared: true}, nil
}
