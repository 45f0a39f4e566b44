package storage

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ConnectionStringEnv is consulted when no connection string is passed explicitly.
const ConnectionStringEnv = "AZURE_STORAGE_CONNECTION_STRING"

// Development storage account. The key is public and identical in every emulator.
const (
	DevelopmentAccountName = "devstoreaccount1"
	DevelopmentAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	DefaultLocalEndpoint   = "http://127.0.0.1:4566"
)

const (
	defaultProtocol       = "https"
	defaultEndpointSuffix = "core.windows.net"
)

// Settings are the account credentials and endpoints parsed from a connection string.
type Settings struct {
	AccountName   string
	AccountKey    string
	BlobEndpoint  string
	QueueEndpoint string
	TableEndpoint string

	// Development is set for the emulator account. DevelopmentProxy holds
	// DevelopmentStorageProxyUri when the connection string named one.
	Development      bool
	DevelopmentProxy string
}

// Endpoint returns the base URL for kind.
func (s *Settings) Endpoint(kind ServiceKind) string {
	switch kind {
	case Blob:
		return s.BlobEndpoint
	case Queue:
		return s.QueueEndpoint
	case Table:
		return s.TableEndpoint
	default:
		return ""
	}
}

// DevelopmentSettings returns the emulator account rooted at base, which is the
// edge router address (for example http://127.0.0.1:4566).
func DevelopmentSettings(base string) *Settings {
	base = strings.TrimRight(base, "/")
	return &Settings{
		AccountName:   DevelopmentAccountName,
		AccountKey:    DevelopmentAccountKey,
		BlobEndpoint:  base + "/blob/" + DevelopmentAccountName,
		QueueEndpoint: base + "/queue/" + DevelopmentAccountName,
		TableEndpoint: base + "/table/" + DevelopmentAccountName,
		Development:   true,
	}
}

// ParseConnectionString parses "Key=Value;Key=Value" account settings.
//
// Keys are case-insensitive and unknown keys are ignored. Values may contain
// '=' (account keys are base64). Endpoints that are not given explicitly are
// derived from DefaultEndpointsProtocol, AccountName and EndpointSuffix.
// UseDevelopmentStorage=true selects the emulator account, optionally at
// DevelopmentStorageProxyUri.
func ParseConnectionString(s string) (*Settings, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, connStringErr("empty")
	}

	values := make(map[string]string)
	for _, segment := range strings.Split(s, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, connStringErr("malformed segment %q", segment)
		}
		if _, dup := values[key]; dup {
			return nil, connStringErr("duplicate key %q", key)
		}
		values[key] = strings.TrimSpace(value)
	}

	if strings.EqualFold(values["usedevelopmentstorage"], "true") {
		base := DefaultLocalEndpoint
		if proxy := values["developmentstorageproxyuri"]; proxy != "" {
			if err := validateEndpoint("DevelopmentStorageProxyUri", proxy); err != nil {
				return nil, err
			}
			base = proxy
		}
		settings := DevelopmentSettings(base)
		settings.DevelopmentProxy = values["developmentstorageproxyuri"]
		return settings, nil
	}

	settings := &Settings{
		AccountName: values["accountname"],
		AccountKey:  values["accountkey"],
	}
	if settings.AccountKey != "" {
		if _, err := base64.StdEncoding.DecodeString(settings.AccountKey); err != nil {
			return nil, connStringErr("AccountKey is not valid base64")
		}
	}

	protocol := strings.ToLower(values["defaultendpointsprotocol"])
	if protocol == "" {
		protocol = defaultProtocol
	}
	if protocol != "http" && protocol != "https" {
		return nil, connStringErr("unsupported DefaultEndpointsProtocol %q", protocol)
	}
	suffix := values["endpointsuffix"]
	if suffix == "" {
		suffix = defaultEndpointSuffix
	}

	for _, kind := range Kinds {
		name := endpointKey(kind)
		endpoint := values[strings.ToLower(name)]
		if endpoint != "" {
			if err := validateEndpoint(name, endpoint); err != nil {
				return nil, err
			}
		} else {
			if settings.AccountName == "" {
				return nil, connStringErr("AccountName is required when %s is not set", name)
			}
			endpoint = fmt.Sprintf("%s://%s.%s.%s", protocol, settings.AccountName, kind, suffix)
		}
		settings.setEndpoint(kind, strings.TrimRight(endpoint, "/"))
	}

	return settings, nil
}

func (s *Settings) setEndpoint(kind ServiceKind, endpoint string) {
	switch kind {
	case Blob:
		s.BlobEndpoint = endpoint
	case Queue:
		s.QueueEndpoint = endpoint
	case Table:
		s.TableEndpoint = endpoint
	}
}

func endpointKey(kind ServiceKind) string {
	switch kind {
	case Blob:
		return "BlobEndpoint"
	case Queue:
		return "QueueEndpoint"
	default:
		return "TableEndpoint"
	}
}

func validateEndpoint(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return connStringErr("%s %q is not an absolute http(s) URL", name, raw)
	}
	return nil
}
