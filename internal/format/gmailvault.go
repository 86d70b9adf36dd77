package format

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/progress"
)

// GmailVault is the Format Reader for a Google Takeout-style mail export:
// individual ".eml" or ".eml.gz" files, each optionally paired with a
// sibling ".meta" JSON sidecar carrying labels, flags, and an internal
// timestamp.
//
// Grounded on original_source/ps-importer/src/formats/gmailbackup/raw_email.rs:
// is_seen comes from "\Seen" being present in the sidecar's label list,
// not from any RFC 822 header.
type GmailVault struct{}

func NewGmailVault() *GmailVault { return &GmailVault{} }

func (g *GmailVault) DefaultPath() (string, bool) { return "", false }

func (g *GmailVault) Enumerate(ctx context.Context, root string, events chan<- progress.Message) (<-chan ParseableEmail, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return &MissingPermissionsError{Path: path, Err: err}
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".eml") || strings.HasSuffix(path, ".eml.gz") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk gmail vault root: %w", err)
	}

	out := make(chan ParseableEmail, 64)
	go func() {
		defer close(out)
		if events != nil {
			events <- progress.Message{Kind: progress.ReadTotal, N: len(files)}
		}
		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			default:
			}
			select {
			case out <- newGmailMessage(path):
			case <-ctx.Done():
				return
			}
			if events != nil {
				events <- progress.Message{Kind: progress.ReadOne}
			}
		}
	}()
	return out, nil
}

// gmailSidecar mirrors the subset of the Takeout ".meta" JSON this reader
// cares about.
type gmailSidecar struct {
	Labels       []string `json:"labels"`
	InternalDate string   `json:"internal_date"`
}

type gmailMessage struct {
	path    string
	gzipped bool
	sidecar *gmailSidecar
	body    []byte
}

func newGmailMessage(path string) *gmailMessage {
	return &gmailMessage{path: path, gzipped: strings.HasSuffix(path, ".gz")}
}

func (m *gmailMessage) Prepare() error {
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if m.gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gunzip %s: %w", m.path, err)
		}
		defer gz.Close()
		r = gz
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.path, err)
	}
	m.body = body

	sidecarPath := sidecarPathFor(m.path)
	if data, err := os.ReadFile(sidecarPath); err == nil {
		var sc gmailSidecar
		if err := json.Unmarshal(data, &sc); err == nil {
			m.sidecar = &sc
		}
	}
	return nil
}

// sidecarPathFor strips the ".eml"/".eml.gz" suffix and appends ".meta".
func sidecarPathFor(path string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".eml")
	return base + ".meta"
}

func (m *gmailMessage) Bytes() ([]byte, error) {
	if m.body == nil {
		return nil, fmt.Errorf("gmail vault %s: not prepared", m.path)
	}
	return m.body, nil
}

func (m *gmailMessage) Path() string { return m.path }

func (m *gmailMessage) Meta() (*email.Meta, error) {
	if m.sidecar == nil {
		return &email.Meta{Tags: nil, IsSeen: false}, nil
	}
	isSeen := false
	for _, l := range m.sidecar.Labels {
		if strings.EqualFold(l, `\Seen`) {
			isSeen = true
			break
		}
	}
	return &email.Meta{Tags: m.sidecar.Labels, IsSeen: isSeen}, nil
}

// internalDateMillis parses the sidecar's internal_date, a decimal string
// of milliseconds since the epoch, as Gmail's API reports it.
func internalDateMillis(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
