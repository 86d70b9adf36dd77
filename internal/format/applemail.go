package format

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/progress"
)

// AppleMail is the Format Reader for Apple Mail's on-disk layout: walk
// recursively, identify folders ending in ".mbox", and within each
// enumerate files ending in ".emlx".
//
// Grounded on original_source/ps-importer/src/formats/apple_mail/mail.rs:
// the label is the nearest ancestor path segment ending in ".mbox" with
// the suffix stripped; the is_seen flag is parsed out of the emlx
// envelope's trailing plist rather than the RFC 822 headers.
type AppleMail struct{}

func NewAppleMail() *AppleMail { return &AppleMail{} }

func (a *AppleMail) DefaultPath() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, "Library", "Mail"), true
}

func (a *AppleMail) Enumerate(ctx context.Context, root string, events chan<- progress.Message) (<-chan ParseableEmail, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return &MissingPermissionsError{Path: path, Err: err}
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".emlx") &&
			strings.Contains(filepath.ToSlash(filepath.Dir(path))+"/", ".mbox/") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk apple mail root: %w", err)
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
			msg := newEmlxMessage(path)
			select {
			case out <- msg:
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

type emlxMessage struct {
	path   string
	label  string
	isSeen bool
	body   []byte
}

func newEmlxMessage(path string) *emlxMessage {
	return &emlxMessage{path: path, label: labelFromMboxAncestor(path)}
}

// labelFromMboxAncestor finds the nearest ancestor path segment ending in
// ".mbox" and returns it with the suffix stripped.
func labelFromMboxAncestor(path string) string {
	segs := strings.Split(filepath.ToSlash(path), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if seg := segs[i]; strings.HasSuffix(seg, ".mbox") {
			return strings.TrimSuffix(seg, ".mbox")
		}
	}
	return ""
}

// emlxLengthRe matches the leading decimal byte-count line every .emlx
// file begins with.
var emlxLengthRe = regexp.MustCompile(`^(\d+)\r?\n`)

// emlxFlagsRe best-effort extracts the "flags" integer out of the
// trailing plist fragment; bit 0 of Mail.app's flags is the read flag.
var emlxFlagsRe = regexp.MustCompile(`<key>flags</key>\s*<integer>(\d+)</integer>`)

func (m *emlxMessage) Prepare() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read emlx %s: %w", m.path, err)
	}

	loc := emlxLengthRe.FindSubmatchIndex(data)
	if loc == nil {
		return fmt.Errorf("emlx %s: missing length header", m.path)
	}
	n, err := strconv.Atoi(string(data[loc[2]:loc[3]]))
	if err != nil {
		return fmt.Errorf("emlx %s: bad length header: %w", m.path, err)
	}
	start := loc[1]
	end := start + n
	if end > len(data) {
		end = len(data)
	}
	m.body = data[start:end]

	m.isSeen = false
	if sub := emlxFlagsRe.FindSubmatch(data[end:]); sub != nil {
		if flags, err := strconv.Atoi(string(sub[1])); err == nil {
			m.isSeen = flags&1 != 0
		}
	}
	return nil
}

func (m *emlxMessage) Bytes() ([]byte, error) {
	if m.body == nil {
		return nil, fmt.Errorf("emlx %s: not prepared", m.path)
	}
	return m.body, nil
}

func (m *emlxMessage) Path() string { return m.path }

func (m *emlxMessage) Meta() (*email.Meta, error) {
	tags := []string{}
	if m.label != "" {
		tags = []string{m.label}
	}
	return &email.Meta{Tags: tags, IsSeen: m.isSeen}, nil
}
