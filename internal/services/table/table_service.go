package table

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/asad/bluectl/internal/core"
	"github.com/asad/bluectl/internal/logging"
)

// maxEntityBody caps the size of an entity payload.
const maxEntityBody = 1 << 20

// TableService emulates the table endpoint.
type TableService struct {
	store  TableStore
	logger logging.Logger
}

// NewTableService creates a new table service instance.
func NewTableService(store TableStore, logger logging.Logger) *TableService {
	return &TableService{
		store:  store,
		logger: logger,
	}
}

// Name returns the service identifier.
func (s *TableService) Name() string {
	return "table"
}

// RegisterRoutes sets up HTTP routes for table operations. Entities are
// addressed as /{account}/{table}/{partitionKey}/{rowKey}.
func (s *TableService) RegisterRoutes(router chi.Router) {
	router.Get("/{account}", s.handleListTables)
	router.Put("/{account}/{table}", s.handleCreateTable)
	router.Delete("/{account}/{table}", s.handleDeleteTable)
	router.Get("/{account}/{table}", s.handleQueryEntities)

	router.Put("/{account}/{table}/{pk}/{rk}", s.handleUpsertEntity)
	router.Get("/{account}/{table}/{pk}/{rk}", s.handleGetEntity)
	router.Delete("/{account}/{table}/{pk}/{rk}", s.handleDeleteEntity)
}

func (s *TableService) writeStoreError(w http.ResponseWriter, err error, op string, fields ...logging.Field) {
	switch {
	case errors.Is(err, ErrTableExists):
		core.WriteError(w, http.StatusConflict, "TableAlreadyExists", err.Error())
	case errors.Is(err, ErrTableNotFound):
		core.WriteError(w, http.StatusNotFound, "TableNotFound", err.Error())
	case errors.Is(err, ErrEntityNotFound):
		core.WriteError(w, http.StatusNotFound, "ResourceNotFound", err.Error())
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidKey):
		core.WriteError(w, http.StatusBadRequest, "InvalidResourceName", err.Error())
	default:
		s.logger.Error("failed to "+op, append(fields, logging.ErrorField(err))...)
		core.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to "+op)
	}
}

func (s *TableService) handleListTables(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")

	tables, err := s.store.ListTables(r.Context(), account, r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeStoreError(w, err, "list tables", logging.String("account", account))
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"value": tables})
}

func (s *TableService) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")

	if err := s.store.CreateTable(r.Context(), account, name); err != nil {
		s.writeStoreError(w, err, "create table", logging.String("table", name))
		return
	}
	s.logger.Info("table created",
		logging.String("account", account),
		logging.String("table", name),
	)
	core.WriteJSON(w, http.StatusCreated, TableInfo{TableName: name})
}

func (s *TableService) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")

	if err := s.store.DeleteTable(r.Context(), account, name); err != nil {
		s.writeStoreError(w, err, "delete table", logging.String("table", name))
		return
	}
	s.logger.Info("table deleted",
		logging.String("account", account),
		logging.String("table", name),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *TableService) handleQueryEntities(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")

	top := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			core.WriteError(w, http.StatusBadRequest, "InvalidInput", "invalid value for top")
			return
		}
		top = v
	}

	entities, err := s.store.QueryEntities(r.Context(), account, name, r.URL.Query().Get("partitionKey"), top)
	if err != nil {
		s.writeStoreError(w, err, "query entities", logging.String("table", name))
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"value": entities})
}

func (s *TableService) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")
	pk := core.URLParam(r, "pk")
	rk := core.URLParam(r, "rk")

	var props map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBody))
	dec.UseNumber()
	if err := dec.Decode(&props); err != nil || props == nil {
		core.WriteError(w, http.StatusBadRequest, "InvalidInput", "entity body must be a JSON object")
		return
	}
	for _, k := range []string{"PartitionKey", "RowKey"} {
		v, present := props[k]
		want := pk
		if k == "RowKey" {
			want = rk
		}
		if present && v != want {
			core.WriteError(w, http.StatusBadRequest, "PropertiesNeedValue", k+" does not match the request path")
			return
		}
	}

	if _, err := s.store.UpsertEntity(r.Context(), account, name, pk, rk, props); err != nil {
		s.writeStoreError(w, err, "upsert entity",
			logging.String("table", name),
			logging.String("partition_key", pk),
			logging.String("row_key", rk),
		)
		return
	}
	s.logger.Debug("entity stored",
		logging.String("table", name),
		logging.String("partition_key", pk),
		logging.String("row_key", rk),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *TableService) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")

	entity, err := s.store.GetEntity(r.Context(), account, name, core.URLParam(r, "pk"), core.URLParam(r, "rk"))
	if err != nil {
		s.writeStoreError(w, err, "retrieve entity", logging.String("table", name))
		return
	}
	core.WriteJSON(w, http.StatusOK, entity)
}

func (s *TableService) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	account := core.URLParam(r, "account")
	name := core.URLParam(r, "table")

	if err := s.store.DeleteEntity(r.Context(), account, name, core.URLParam(r, "pk"), core.URLParam(r, "rk")); err != nil {
		s.writeStoreError(w, err, "delete entity", logging.String("table", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var _ core.Service = (*TableService)(nil)
