// Package config defines Postsack's Config type and its round trip
// through the store's meta table (see SPEC_FULL.md §3.1), plus the
// optional on-disk defaults file mirroring the teacher's yaml.v3-based
// config package.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FormatType is the archive layout an import run targets.
type FormatType int

const (
	FormatMbox FormatType = iota
	FormatAppleMail
	FormatGmailVault
)

// String renders the canonical lowercase format name stored in the meta
// table.
func (f FormatType) String() string {
	switch f {
	case FormatMbox:
		return "mbox"
	case FormatAppleMail:
		return "apple"
	case FormatGmailVault:
		return "gmailvault"
	default:
		return "unknown"
	}
}

// ErrUnknownFormat is returned when a CLI-provided format name does not
// match any known FormatType.
var ErrUnknownFormat = fmt.Errorf("unknown email format")

// ParseFormatType accepts the canonical names plus the human-friendly CLI
// aliases named in SPEC_FULL.md §6.
func ParseFormatType(s string) (FormatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mbox":
		return FormatMbox, nil
	case "apple", "applemail", "apple mail":
		return FormatAppleMail, nil
	case "gmailvault", "gmail vault download":
		return FormatGmailVault, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Config is the per-import configuration; see SPEC_FULL.md §3.
type Config struct {
	DatabasePath     string
	EmailsFolderPath string
	SenderEmails     []string
	Format           FormatType
	Persistent       bool
}

// NewTemp builds a Config whose DatabasePath points at a random filename
// inside the OS temp directory, matching
// original_source/ps-core/src/types/config.rs's Config::new() for
// Persistent == false. The caller is responsible for removing any
// pre-existing file at that path before a fresh import.
func NewTemp(emailsFolder string, senders []string, format FormatType) Config {
	dir := filepath.Join(os.TempDir(), "postsack")
	_ = os.MkdirAll(dir, 0o755)
	name := strings.ReplaceAll(uuid.New().String(), "-", "") + ".sqlite"
	return Config{
		DatabasePath:     filepath.Join(dir, name),
		EmailsFolderPath: emailsFolder,
		SenderEmails:     senders,
		Format:           format,
		Persistent:       false,
	}
}

// KeyValue is one meta-table row.
type KeyValue struct {
	Key   string
	Value string
}

// Fields returns the Config's meta-table rows in a deterministic order,
// suitable for a reproducible INSERT batch.
func (c Config) Fields() []KeyValue {
	persistent := "0"
	if c.Persistent {
		persistent = "1"
	}
	m := map[string]string{
		"database_path":      c.DatabasePath,
		"emails_folder_path": c.EmailsFolderPath,
		"sender_emails":      strings.Join(c.SenderEmails, ","),
		"format":             c.Format.String(),
		"persistent":         persistent,
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyValue{Key: k, Value: m[k]})
	}
	return out
}

// FromFields reconstructs a Config from meta-table rows previously
// produced by Fields — the inverse round trip described in SPEC_FULL.md
// §3.1.
func FromFields(rows []KeyValue) (Config, error) {
	m := make(map[string]string, len(rows))
	for _, kv := range rows {
		m[kv.Key] = kv.Value
	}
	format, err := ParseFormatType(m["format"])
	if err != nil {
		return Config{}, err
	}
	var senders []string
	if s := m["sender_emails"]; s != "" {
		senders = strings.Split(s, ",")
	}
	persistent, _ := strconv.ParseBool(orDefault(m["persistent"], "0"))
	return Config{
		DatabasePath:     m["database_path"],
		EmailsFolderPath: m["emails_folder_path"],
		SenderEmails:     senders,
		Format:           format,
		Persistent:       persistent,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
