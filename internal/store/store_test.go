package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/email"
	"github.com/Napageneral/postsack/internal/field"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRows(t *testing.T, s *Store, rows []email.Row) {
	t.Helper()
	in, out := s.Import(context.Background(), config.Config{Format: config.FormatMbox})
	for _, r := range rows {
		in <- DBMessage{Kind: DBMail, Row: r}
	}
	in <- DBMessage{Kind: DBDone}
	close(in)
	res := <-out
	require.NoError(t, res.Err)
	require.Equal(t, len(rows), res.Inserted)
}

func sampleRows() []email.Row {
	return []email.Row{
		{Path: "a", SenderDomain: "gmail.com", SenderLocalPart: "alice", Year: 2020, Month: 1, Day: 1, Timestamp: 1},
		{Path: "b", SenderDomain: "gmail.com", SenderLocalPart: "bob", Year: 2021, Month: 1, Day: 1, Timestamp: 2},
		{Path: "c", SenderDomain: "yahoo.com", SenderLocalPart: "carol", Year: 2021, Month: 2, Day: 1, Timestamp: 3, IsSend: true},
	}
}

func TestImportAndTotalMails(t *testing.T) {
	s := openTemp(t)
	seedRows(t, s, sampleRows())

	total, err := s.TotalMails()
	require.NoError(t, err)
	require.Equal(t, 3, total)
}

// TestGroupedSumEqualsTotal is testable property #3.
func TestGroupedSumEqualsTotal(t *testing.T) {
	s := openTemp(t)
	seedRows(t, s, sampleRows())

	results, err := s.Query(field.NewGrouped(nil, field.SenderDomain))
	require.NoError(t, err)

	sum := 0
	values := map[string]bool{}
	for _, r := range results {
		sum += r.Count
		values[r.Value.AsString()] = true
	}
	require.Equal(t, 3, sum)
	require.True(t, values["gmail.com"])
	require.True(t, values["yahoo.com"])
	require.Len(t, values, 2)
}

func TestNormalQueryAndConfigRoundTrip(t *testing.T) {
	s := openTemp(t)
	cfg := config.Config{
		DatabasePath:     s.Path(),
		EmailsFolderPath: "/tmp/mail",
		SenderEmails:     []string{"me@example.com"},
		Format:           config.FormatMbox,
		Persistent:       true,
	}
	in, out := s.Import(context.Background(), cfg)
	in <- DBMessage{Kind: DBMail, Row: sampleRows()[0]}
	in <- DBMessage{Kind: DBDone}
	close(in)
	res := <-out
	require.NoError(t, res.Err)

	got, err := s.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, cfg.EmailsFolderPath, got.EmailsFolderPath)
	require.True(t, got.Persistent)
	require.Equal(t, config.FormatMbox, got.Format)

	results, err := s.Query(field.NewNormal([]field.Field{field.Path}, nil, field.Range{Start: 0, End: 10}))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].Row[field.Path].AsString())
}

func TestParseErrorsRecordedNotFatal(t *testing.T) {
	s := openTemp(t)
	in, out := s.Import(context.Background(), config.Config{})
	in <- DBMessage{Kind: DBParseError, Err: errors.New("malformed header"), Path: "bad.mbox"}
	in <- DBMessage{Kind: DBDone}
	close(in)
	res := <-out
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Errors)
}
