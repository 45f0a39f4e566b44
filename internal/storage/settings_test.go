package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "c2VjcmV0LWtleS1mb3ItdGVzdHM="

func TestParseConnectionString_DerivesEndpoints(t *testing.T) {
	s, err := ParseConnectionString("DefaultEndpointsProtocol=https;AccountName=acme;AccountKey=" + testKey + ";EndpointSuffix=core.windows.net;")
	require.NoError(t, err)

	assert.Equal(t, "acme", s.AccountName)
	assert.Equal(t, testKey, s.AccountKey)
	assert.Equal(t, "https://acme.blob.core.windows.net", s.BlobEndpoint)
	assert.Equal(t, "https://acme.queue.core.windows.net", s.QueueEndpoint)
	assert.Equal(t, "https://acme.table.core.windows.net", s.TableEndpoint)
	assert.False(t, s.Development)
}

func TestParseConnectionString_ExplicitEndpoints(t *testing.T) {
	s, err := ParseConnectionString("accountname=acme;accountkey=" + testKey +
		";BlobEndpoint=http://localhost:9000/blob/acme/;QueueEndpoint=http://localhost:9000/queue/acme;TableEndpoint=http://localhost:9000/table/acme")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/blob/acme", s.Endpoint(Blob))
	assert.Equal(t, "http://localhost:9000/queue/acme", s.Endpoint(Queue))
	assert.Equal(t, "http://localhost:9000/table/acme", s.Endpoint(Table))
}

func TestParseConnectionString_DevelopmentStorage(t *testing.T) {
	s, err := ParseConnectionString("UseDevelopmentStorage=true")
	require.NoError(t, err)
	assert.True(t, s.Development)
	assert.Equal(t, DevelopmentAccountName, s.AccountName)
	assert.Equal(t, DefaultLocalEndpoint+"/blob/devstoreaccount1", s.BlobEndpoint)

	s, err = ParseConnectionString("UseDevelopmentStorage=true;DevelopmentStorageProxyUri=http://10.0.0.5:4566")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:4566/table/devstoreaccount1", s.TableEndpoint)
	assert.Equal(t, "http://10.0.0.5:4566", s.DevelopmentProxy)
}

func TestParseConnectionString_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":            "   ",
		"no equals":        "AccountName=acme;garbage",
		"empty key":        "=value;AccountName=acme",
		"duplicate key":    "AccountName=a;accountname=b",
		"bad base64 key":   "AccountName=acme;AccountKey=!!!",
		"bad protocol":     "AccountName=acme;DefaultEndpointsProtocol=ftp",
		"relative blob":    "AccountName=acme;BlobEndpoint=/blob",
		"missing account":  "AccountKey=" + testKey,
		"bad proxy":        "UseDevelopmentStorage=true;DevelopmentStorageProxyUri=nowhere",
		"ftp endpoint":     "AccountName=acme;QueueEndpoint=ftp://host/q",
		"only separators":  ";;;",
		"key without name": "AccountName=acme;  =x",
	}
	for name, cs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConnectionString(cs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConnectionString), "got %v", err)

			var cerr *ConnectionStringError
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestParseServiceKind(t *testing.T) {
	for _, in := range []string{"blob", "BLOB", " Blob "} {
		k, ok := ParseServiceKind(in)
		require.True(t, ok, in)
		assert.Equal(t, Blob, k)
	}
	k, ok := ParseServiceKind("Queue")
	assert.True(t, ok)
	assert.Equal(t, "queue", k.String())

	k, ok = ParseServiceKind("table")
	assert.True(t, ok)
	assert.Equal(t, Table, k)

	for _, in := range []string{"ftp", "", "file", "blobs"} {
		_, ok := ParseServiceKind(in)
		assert.False(t, ok, in)
	}
	assert.False(t, ServiceKind(0).Valid())
	assert.Equal(t, "unknown", ServiceKind(42).String())
}
