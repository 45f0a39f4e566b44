package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestFactory_GetService_AllKinds(t *testing.T) {
	f := NewFactory(WithLookupEnv(noEnv))
	for _, kind := range Kinds {
		svc, err := f.GetService(kind, "")
		require.NoError(t, err)
		assert.Equal(t, kind, svc.Kind())
		assert.NotEmpty(t, svc.Methods())
		assert.True(t, svc.Settings().Development)
	}
}

func TestFactory_GetService_UnsupportedKind(t *testing.T) {
	f := NewFactory(WithLookupEnv(noEnv))
	_, err := f.GetService(ServiceKind(99), "")
	assert.ErrorIs(t, err, ErrUnsupportedServiceKind)
}

func TestFactory_SettingsPrecedence(t *testing.T) {
	env := func(name string) (string, bool) {
		if name == ConnectionStringEnv {
			return "AccountName=fromenv;AccountKey=" + testKey, true
		}
		return "", false
	}
	f := NewFactory(WithLookupEnv(env), WithLocalEndpoint("http://127.0.0.1:9999"))

	svc, err := f.GetService(Blob, "AccountName=explicit;AccountKey="+testKey)
	require.NoError(t, err)
	assert.Equal(t, "explicit", svc.Settings().AccountName)

	svc, err = f.GetService(Queue, "")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", svc.Settings().AccountName)

	f = NewFactory(WithLookupEnv(noEnv), WithLocalEndpoint("http://127.0.0.1:9999"))
	svc, err = f.GetService(Table, "")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/table/devstoreaccount1", svc.Settings().TableEndpoint)

	svc, err = f.GetService(Blob, "UseDevelopmentStorage=true")
	require.NoError(t, err)
	assert.True(t, svc.Settings().Development)
	assert.Equal(t, "http://127.0.0.1:9999/blob/devstoreaccount1", svc.Settings().BlobEndpoint)

	svc, err = f.GetService(Queue, "UseDevelopmentStorage=true;DevelopmentStorageProxyUri=http://10.0.0.5:4566")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:4566/queue/devstoreaccount1", svc.Settings().QueueEndpoint)
}

func TestFactory_MalformedConnectionString(t *testing.T) {
	f := NewFactory(WithLookupEnv(noEnv))
	_, err := f.GetService(Blob, "this is not a connection string")
	assert.ErrorIs(t, err, ErrInvalidConnectionString)
}

func TestMethodLookup(t *testing.T) {
	svc, err := NewFactory(WithLookupEnv(noEnv)).GetService(Blob, "")
	require.NoError(t, err)

	_, ok := svc.Method("createContainer")
	assert.True(t, ok)
	_, ok = svc.Method("nonexistentMethod")
	assert.False(t, ok)
	_, ok = svc.Method("CreateContainer")
	assert.False(t, ok, "method names are case sensitive")
	assert.Contains(t, svc.Methods(), "listBlobsSegmented")
}

// recordingServer captures the last request it saw.
type recordingServer struct {
	mu     sync.Mutex
	last   *http.Request
	body   string
	status int
	reply  string
}

func (s *recordingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.last = r
	s.body = string(data)
	status, reply := s.status, s.reply
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, reply)
}

func (s *recordingServer) lastRequest() (*http.Request, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.body
}

func newTestService(t *testing.T, kind ServiceKind, rec *recordingServer) Service {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := NewFactory(WithLookupEnv(noEnv), WithLocalEndpoint(srv.URL), WithClock(func() time.Time { return fixed }))
	svc, err := f.GetService(kind, "")
	require.NoError(t, err)
	return svc
}

func TestTransport_SignsAndForwardsTimeout(t *testing.T) {
	rec := &recordingServer{status: http.StatusCreated}
	svc := newTestService(t, Blob, rec)

	method, ok := svc.Method("createBlockBlobFromText")
	require.True(t, ok)

	res, err := method(context.Background(), &Call{
		Args: []string{"photos", "2024/cat.txt", "meow"},
		Options: &RequestOptions{
			TimeoutIntervalInMs: 1500,
			ClientRequestID:     "req-1",
			Metadata:            map[string]string{"owner": "alice"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, &BlobResult{Container: "photos", Name: "2024/cat.txt", Size: 4}, res)

	req, body := rec.lastRequest()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/blob/devstoreaccount1/photos/2024/cat.txt", req.URL.Path)
	assert.Equal(t, "2", req.URL.Query().Get("timeout"))
	assert.Equal(t, "req-1", req.Header.Get("x-ms-client-request-id"))
	assert.Equal(t, "alice", req.Header.Get("x-ms-meta-owner"))
	assert.Equal(t, "meow", body)

	date := "Tue, 02 Jan 2024 03:04:05 GMT"
	assert.Equal(t, date, req.Header.Get("x-ms-date"))

	key, err := base64.StdEncoding.DecodeString(DevelopmentAccountKey)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("PUT\n" + date + "\n/devstoreaccount1/blob/devstoreaccount1/photos/2024/cat.txt"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, "SharedKey devstoreaccount1:"+want, req.Header.Get("Authorization"))
}

func TestSignature_CoversMethodDateAndPath(t *testing.T) {
	date := "Tue, 02 Jan 2024 03:04:05 GMT"
	base, err := Signature(DevelopmentAccountName, DevelopmentAccountKey, http.MethodGet, date, "/blob/devstoreaccount1/photos")
	require.NoError(t, err)

	variants := map[string][]string{
		"method":  {DevelopmentAccountName, DevelopmentAccountKey, http.MethodDelete, date, "/blob/devstoreaccount1/photos"},
		"date":    {DevelopmentAccountName, DevelopmentAccountKey, http.MethodGet, "Wed, 03 Jan 2024 03:04:05 GMT", "/blob/devstoreaccount1/photos"},
		"path":    {DevelopmentAccountName, DevelopmentAccountKey, http.MethodGet, date, "/blob/devstoreaccount1/videos"},
		"account": {"other", DevelopmentAccountKey, http.MethodGet, date, "/blob/devstoreaccount1/photos"},
		"key":     {DevelopmentAccountName, testKey, http.MethodGet, date, "/blob/devstoreaccount1/photos"},
	}
	for name, v := range variants {
		sig, err := Signature(v[0], v[1], v[2], v[3], v[4])
		require.NoError(t, err)
		assert.NotEqual(t, base, sig, "changing the %s must change the signature", name)
	}

	_, err = Signature(DevelopmentAccountName, "!!!", http.MethodGet, date, "/")
	assert.Error(t, err)
}

func TestTransport_EscapesResourceNames(t *testing.T) {
	rec := &recordingServer{status: http.StatusAccepted}
	svc := newTestService(t, Blob, rec)
	deleteBlob, _ := svc.Method("deleteBlob")

	_, err := deleteBlob(context.Background(), &Call{Args: []string{"mine", "../victim"}})
	var perr *PathError
	require.True(t, errors.As(err, &perr), "got %v", err)
	req, _ := rec.lastRequest()
	assert.Nil(t, req, "a dot-dot blob name must never reach the container path")

	for _, name := range []string{"..", ".", "a/../b", "a//b", "dir/"} {
		_, err := deleteBlob(context.Background(), &Call{Args: []string{"mine", name}})
		assert.True(t, errors.As(err, &perr), "name %q", name)
	}
	req, _ = rec.lastRequest()
	assert.Nil(t, req)

	_, err = deleteBlob(context.Background(), &Call{Args: []string{"mine", "2024/a b?#%.txt"}})
	require.NoError(t, err)
	req, _ = rec.lastRequest()
	assert.Equal(t, "/blob/devstoreaccount1/mine/2024/a%20b%3F%23%25.txt", req.URL.EscapedPath())
	assert.Equal(t, "/blob/devstoreaccount1/mine/2024/a b?#%.txt", req.URL.Path)

	deleteContainer, _ := svc.Method("deleteContainer")
	_, err = deleteContainer(context.Background(), &Call{Args: []string{"a/b"}})
	require.NoError(t, err)
	req, _ = rec.lastRequest()
	assert.Equal(t, "/blob/devstoreaccount1/a%2Fb", req.URL.EscapedPath())
}

func TestTransport_EntityKeysCannotAddressTheTable(t *testing.T) {
	rec := &recordingServer{status: http.StatusNoContent}
	svc := newTestService(t, Table, rec)
	deleteEntity, _ := svc.Method("deleteEntity")

	_, err := deleteEntity(context.Background(), &Call{Args: []string{"people", "eu", ".."}})
	var perr *PathError
	require.True(t, errors.As(err, &perr), "got %v", err)
	req, _ := rec.lastRequest()
	assert.Nil(t, req)

	_, err = deleteEntity(context.Background(), &Call{Args: []string{"people", "eu/west", "42"}})
	require.NoError(t, err)
	req, _ = rec.lastRequest()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/table/devstoreaccount1/people/eu%2Fwest/42", req.URL.EscapedPath())
}

func TestTransport_DecodesServiceErrors(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"error": map[string]string{"code": "ContainerNotFound", "message": "container x does not exist"}})
	rec := &recordingServer{status: http.StatusNotFound, reply: string(body)}
	svc := newTestService(t, Blob, rec)

	method, _ := svc.Method("deleteContainer")
	_, err := method(context.Background(), &Call{Args: []string{"x"}})

	var rerr *ResponseError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusNotFound, rerr.StatusCode)
	assert.Equal(t, "ContainerNotFound", rerr.Code)
	assert.NotEmpty(t, rerr.RequestID)
	assert.True(t, IsNotFound(err))
}

func TestTransport_DoesContainerExist(t *testing.T) {
	rec := &recordingServer{status: http.StatusNotFound}
	svc := newTestService(t, Blob, rec)

	method, _ := svc.Method("doesContainerExist")
	res, err := method(context.Background(), &Call{Args: []string{"missing"}})
	require.NoError(t, err)
	assert.Equal(t, &ExistsResult{Name: "missing", Exists: false}, res)
	req, _ := rec.lastRequest()
	assert.Equal(t, http.MethodHead, req.Method)
}

func TestMethods_ArgumentValidation(t *testing.T) {
	rec := &recordingServer{}
	svc := newTestService(t, Queue, rec)

	method, _ := svc.Method("deleteMessage")
	_, err := method(context.Background(), &Call{Args: []string{"jobs"}})

	var aerr *ArgumentError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "deleteMessage", aerr.Method)
	req, _ := rec.lastRequest()
	assert.Nil(t, req, "no request should be sent")

	method, _ = svc.Method("createQueue")
	_, err = method(context.Background(), nil)
	assert.True(t, errors.As(err, &aerr))
}

func TestTable_InsertRequiresKeys(t *testing.T) {
	rec := &recordingServer{status: http.StatusNoContent}
	svc := newTestService(t, Table, rec)

	method, _ := svc.Method("insertOrReplaceEntity")
	_, err := method(context.Background(), &Call{Args: []string{"people", `{"Name":"x"}`}})
	var aerr *ArgumentError
	assert.True(t, errors.As(err, &aerr))

	res, err := method(context.Background(), &Call{Args: []string{"people", `{"PartitionKey":"eu","RowKey":"42","Name":"x"}`}})
	require.NoError(t, err)
	assert.Equal(t, &EntityResult{Table: "people", PartitionKey: "eu", RowKey: "42"}, res)
	req, _ := rec.lastRequest()
	assert.Equal(t, "/table/devstoreaccount1/people/eu/42", req.URL.Path)
}

func TestRequestOptions_Clone(t *testing.T) {
	var nilOpts *RequestOptions
	assert.Nil(t, nilOpts.Clone())

	orig := &RequestOptions{TimeoutIntervalInMs: 5, Metadata: map[string]string{"a": "1"}}
	c := orig.Clone()
	c.Metadata["a"] = "2"
	c.TimeoutIntervalInMs = 9
	assert.Equal(t, "1", orig.Metadata["a"])
	assert.Equal(t, 5, orig.TimeoutIntervalInMs)
}
