package queue

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
)

// QueueService emulates the queue endpoint.
type QueueService struct {
	store  QueueStore
	logger logging.Logger
}

// NewQueueService creates a new queue service instance.
func NewQueueService(store QueueStore, logger logging.Logger) *QueueService {
	return &QueueService{
		store:  store,
		logger: logger,
	}
}

// Name returns the service identifier.
func (s *QueueService) Name() string {
	return "queue"
}

// RegisterRoutes sets up HTTP routes for queue operations:
//   - GET    /{account}                           list queues (?prefix)
//   - PUT    /{account}/{queue}                   create queue
//   - DELETE /{account}/{queue}                   delete queue
//   - POST   /{account}/{queue}/messages          put message
//   - GET    /{account}/{queue}/messages          get or peek messages
//   - DELETE /{account}/{queue}/messages          clear messages
//   - DELETE /{account}/{queue}/messages/{id}     delete message (?popreceipt)
func (s *QueueService) RegisterRoutes(router chi.Router) {
	router.Get("/{account}", s.handleListQueues)
	router.Put("/{account}/{queue}", s.handleCreateQueue)
	router.Delete("/{account}/{queue}", s.handleDeleteQueue)

	router.Post("/{account}/{queue}/messages", s.handlePutMessage)
	router.Get("/{account}/{queue}/messages", s.handleGetMessages)
	router.Delete("/{account}/{queue}/messages", s.handleClearMessages)
	router.Delete("/{account}/{queue}/messages/{messageId}", s.handleDeleteMessage)
}

func (s *QueueService) writeStoreError(w http.ResponseWriter, err error, op string, fields ...logging.Field) {
	switch {
	case errors.Is(err, ErrQueueNotFound):
		core.WriteError(w, http.StatusNotFound, "QueueNotFound", err.Error())
	case errors.Is(err, ErrMessageNotFound):
		core.WriteError(w, http.StatusNotFound, "MessageNotFound", err.Error())
	case errors.Is(err, ErrPopReceiptMismatch):
		core.WriteError(w, http.StatusBadRequest, "PopReceiptMismatch", err.Error())
	case errors.Is(err, ErrInvalidName):
		core.WriteError(w, http.StatusBadRequest, "InvalidResourceName", err.Error())
	default:
		s.logger.Error("failed to "+op, append(fields, logging.ErrorField(err))...)
		core.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to "+op)
	}
}

// intParam parses a non-negative integer query parameter. Absent means def.
func intParam(r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || (max > 0 && v > max) {
		return 0, false
	}
	return v, true
}

func badParam(w http.ResponseWriter, name string) {
	core.WriteError(w, http.StatusBadRequest, "OutOfRangeQueryParameterValue", "invalid value for "+name)
}

func (s *QueueService) handleListQueues(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	prefix := r.URL.Query().Get("prefix")

	queues, err := s.store.ListQueues(r.Context(), account, prefix)
	if err != nil {
		s.writeStoreError(w, err, "list queues", logging.String("account", account))
		return
	}
	core.WriteJSON(w, http.StatusOK, QueueListResult{Queues: queues, Prefix: prefix})
}

func (s *QueueService) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")

	created, err := s.store.CreateQueue(r.Context(), account, name)
	if err != nil {
		s.writeStoreError(w, err, "create queue", logging.String("queue", name))
		return
	}
	if !created {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.logger.Info("queue created",
		logging.String("account", account),
		logging.String("queue", name),
	)
	w.WriteHeader(http.StatusCreated)
}

func (s *QueueService) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")

	if err := s.store.DeleteQueue(r.Context(), account, name); err != nil {
		s.writeStoreError(w, err, "delete queue", logging.String("queue", name))
		return
	}
	s.logger.Info("queue deleted",
		logging.String("account", account),
		logging.String("queue", name),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *QueueService) handlePutMessage(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")

	visibility, ok := intParam(r, "visibilitytimeout", 0, 7*24*3600)
	if !ok {
		badParam(w, "visibilitytimeout")
		return
	}
	ttl, ok := intParam(r, "messagettl", 0, 0)
	if !ok {
		badParam(w, "messagettl")
		return
	}

	text, err := io.ReadAll(r.Body)
	if err != nil {
		core.WriteError(w, http.StatusBadRequest, "InvalidInput", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	msg, err := s.store.PutMessage(r.Context(), account, name, string(text),
		time.Duration(visibility)*time.Second, time.Duration(ttl)*time.Second)
	if err != nil {
		s.writeStoreError(w, err, "put message", logging.String("queue", name))
		return
	}
	s.logger.Debug("message enqueued",
		logging.String("queue", name),
		logging.String("message_id", msg.MessageID),
	)
	core.WriteJSON(w, http.StatusCreated, msg)
}

func (s *QueueService) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")

	n, ok := intParam(r, "numofmessages", 1, MaxMessagesPerGet)
	if !ok || n == 0 {
		badParam(w, "numofmessages")
		return
	}

	var (
		msgs []Message
		err  error
	)
	if r.URL.Query().Get("peekonly") == "true" {
		msgs, err = s.store.PeekMessages(r.Context(), account, name, n)
	} else {
		visibility, ok := intParam(r, "visibilitytimeout", 0, 7*24*3600)
		if !ok {
			badParam(w, "visibilitytimeout")
			return
		}
		msgs, err = s.store.GetMessages(r.Context(), account, name, n, time.Duration(visibility)*time.Second)
	}
	if err != nil {
		s.writeStoreError(w, err, "get messages", logging.String("queue", name))
		return
	}
	core.WriteJSON(w, http.StatusOK, MessageListResult{Messages: msgs})
}

func (s *QueueService) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")

	if err := s.store.ClearMessages(r.Context(), account, name); err != nil {
		s.writeStoreError(w, err, "clear messages", logging.String("queue", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *QueueService) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "queue")
	id := core.URLParam(r, "messageId")

	err := s.store.DeleteMessage(r.Context(), account, name, id, r.URL.Query().Get("popreceipt"))
	if err != nil {
		s.writeStoreError(w, err, "delete message",
			logging.String("queue", name),
			logging.String("message_id", id),
		)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var _ core.Service = (*QueueService)(nil)
