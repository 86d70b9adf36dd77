package format

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/progress"
)

// Mbox is the Format Reader for mbox archives: walk the emails folder for
// any file whose path contains ".mbox", then stream each file's messages
// split on "From " line boundaries.
//
// Grounded on Napageneral-mnemonic/internal/importer/mbox.go's
// bufio.Reader-based scan loop, generalized from "parse directly into
// SQL" into "yield ParseableEmail handles" to match C1's contract.
type Mbox struct{}

func NewMbox() *Mbox { return &Mbox{} }

func (m *Mbox) DefaultPath() (string, bool) { return "", false }

func (m *Mbox) Enumerate(ctx context.Context, root string, events chan<- progress.Message) (<-chan ParseableEmail, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return &MissingPermissionsError{Path: path, Err: err}
			}
			return err
		}
		if !d.IsDir() && strings.Contains(path, ".mbox") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk mbox root: %w", err)
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
			msgs, err := splitMboxFile(path)
			if err != nil {
				if events != nil {
					events <- progress.Message{Kind: progress.Error, Error: err}
				}
				continue
			}
			label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			for _, raw := range msgs {
				select {
				case out <- &mboxMessage{path: path, label: label, raw: raw}:
				case <-ctx.Done():
					return
				}
			}
			if events != nil {
				events <- progress.Message{Kind: progress.ReadOne}
			}
		}
	}()
	return out, nil
}

// splitMboxFile reads an entire mbox file and splits it into individual
// RFC 822 message byte slices on lines beginning "From " at column 0.
func splitMboxFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out [][]byte
	reader := bufio.NewReader(f)
	var buf bytes.Buffer

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		msg := make([]byte, buf.Len())
		copy(msg, buf.Bytes())
		out = append(out, msg)
		buf.Reset()
	}

	for {
		line, err := reader.ReadString('\n')
		if strings.HasPrefix(line, "From ") {
			flush()
		} else {
			buf.WriteString(line)
		}
		if err != nil {
			if err == io.EOF {
				flush()
				break
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return out, nil
}

type mboxMessage struct {
	path  string
	label string
	raw   []byte
}

func (m *mboxMessage) Prepare() error { return nil }

func (m *mboxMessage) Bytes() ([]byte, error) { return m.raw, nil }

func (m *mboxMessage) Path() string { return m.path }

func (m *mboxMessage) Meta() (*email.Meta, error) {
	return &email.Meta{Tags: []string{m.label}, IsSeen: false}, nil
}
