package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// TableService is the handle for tables and their entities.
type TableService struct {
	client
}

var tableMethods = methodTable[*TableService]{
	"createTable":           (*TableService).createTable,
	"deleteTable":           (*TableService).deleteTable,
	"listTablesSegmented":   (*TableService).listTablesSegmented,
	"insertOrReplaceEntity": (*TableService).insertOrReplaceEntity,
	"retrieveEntity":        (*TableService).retrieveEntity,
	"deleteEntity":          (*TableService).deleteEntity,
	"queryEntities":         (*TableService).queryEntities,
}

// Kind reports Table.
func (s *TableService) Kind() ServiceKind { return Table }

// Settings returns the settings the handle was built from.
func (s *TableService) Settings() *Settings { return s.settings }

// Methods lists the table operation names in sorted order.
func (s *TableService) Methods() []string { return tableMethods.names() }

// Method returns the named table operation bound to this handle.
func (s *TableService) Method(name string) (Method, bool) {
	return tableMethods.bind(s, name)
}

func (s *TableService) createTable(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("createTable", "table")
	if err != nil {
		return nil, err
	}
	if _, err := s.do(ctx, request{method: http.MethodPut, path: args, options: call.Options}); err != nil {
		return nil, err
	}
	return &TableResult{Name: args[0], Created: true}, nil
}

func (s *TableService) deleteTable(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteTable", "table")
	if err != nil {
		return nil, err
	}
	if _, err := s.do(ctx, request{method: http.MethodDelete, path: args, options: call.Options}); err != nil {
		return nil, err
	}
	return &TableResult{Name: args[0], Deleted: true}, nil
}

func (s *TableService) listTablesSegmented(ctx context.Context, call *Call) (any, error) {
	query := url.Values{}
	if prefix := call.opts().Prefix; prefix != "" {
		query.Set("prefix", prefix)
	}
	var out ListTablesResult
	if err := s.doJSON(ctx, request{method: http.MethodGet, query: query, options: call.Options}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TableService) insertOrReplaceEntity(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("insertOrReplaceEntity", "table", "entity")
	if err != nil {
		return nil, err
	}
	var entity Entity
	if err := json.Unmarshal([]byte(args[1]), &entity); err != nil {
		return nil, &ArgumentError{Method: "insertOrReplaceEntity", Reason: "entity is not a JSON object: " + err.Error()}
	}
	pk, _ := entity["PartitionKey"].(string)
	rk, _ := entity["RowKey"].(string)
	if pk == "" || rk == "" {
		return nil, &ArgumentError{Method: "insertOrReplaceEntity", Reason: "entity requires string PartitionKey and RowKey"}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	_, err = s.do(ctx, request{
		method:  http.MethodPut,
		path:    []string{args[0], pk, rk},
		header:  header,
		body:    []byte(args[1]),
		options: call.Options,
	})
	if err != nil {
		return nil, err
	}
	return &EntityResult{Table: args[0], PartitionKey: pk, RowKey: rk}, nil
}

func (s *TableService) retrieveEntity(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("retrieveEntity", "table", "partitionKey", "rowKey")
	if err != nil {
		return nil, err
	}
	var out Entity
	if err := s.doJSON(ctx, request{method: http.MethodGet, path: args, options: call.Options}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TableService) deleteEntity(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("deleteEntity", "table", "partitionKey", "rowKey")
	if err != nil {
		return nil, err
	}
	if _, err := s.do(ctx, request{method: http.MethodDelete, path: args, options: call.Options}); err != nil {
		return nil, err
	}
	return &EntityResult{Table: args[0], PartitionKey: args[1], RowKey: args[2], Deleted: true}, nil
}

func (s *TableService) queryEntities(ctx context.Context, call *Call) (any, error) {
	args, err := call.args("queryEntities", "table")
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if pk := call.optional(1); pk != "" {
		query.Set("partitionKey", pk)
	}
	if top := call.opts().MaxResults; top > 0 {
		query.Set("top", strconv.Itoa(top))
	}
	var out EntitiesResult
	err = s.doJSON(ctx, request{method: http.MethodGet, path: args[:1], query: query, options: call.Options}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
