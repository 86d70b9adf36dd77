//go:build postsack_cgo_sqlite

package store

// This file registers github.com/mattn/go-sqlite3 as an alternate
// database/sql driver under the "sqlite3" name, for benchmarking against
// the default pure-Go modernc.org/sqlite driver on platforms where cgo is
// available. It is excluded from ordinary builds by the postsack_cgo_sqlite
// build tag; Open always uses the "sqlite" driver regardless of whether
// this file is compiled in.

import (
	_ "github.com/mattn/go-sqlite3"
)

// CGODriverName is the database/sql driver name registered by this file,
// for tests or tools built with -tags postsack_cgo_sqlite that want to
// compare it against the default driver.
const CGODriverName = "sqlite3"
