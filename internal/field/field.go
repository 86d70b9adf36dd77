// Package field defines the closed set of columns Postsack knows about,
// the typed values that can be compared against them, and the Filter/Query
// variants the storage and analytics layers compile into SQL.
package field

import "fmt"

// Field is the closed enumeration of columns the system knows about.
type Field int

const (
	Path Field = iota
	SenderDomain
	SenderLocalPart
	SenderName
	Year
	Month
	Day
	Timestamp
	ToGroup
	ToName
	ToAddress
	IsReply
	IsSend
	Subject
	MetaIsSeen
	MetaTags
)

var allFields = []Field{
	Path, SenderDomain, SenderLocalPart, SenderName, Year, Month, Day,
	Timestamp, ToGroup, ToName, ToAddress, IsReply, IsSend, Subject,
	MetaIsSeen, MetaTags,
}

// invalidForGrouping mirrors the Rust original's INVALID_FIELDS: these are
// excluded from AllCases/grouping because they are either unbounded free
// text, a derived timestamp, booleans with only two values, or a
// multi-valued column.
var invalidForGrouping = map[Field]bool{
	Path:       true,
	Subject:    true,
	Timestamp:  true,
	IsReply:    true,
	IsSend:     true,
	MetaIsSeen: true,
	MetaTags:   true,
}

// snakeNames is the fixed snake_case identifier for each Field. These are
// the only strings ever interpolated into SQL, so SQL injection via a Field
// is structurally impossible.
var snakeNames = map[Field]string{
	Path:            "path",
	SenderDomain:    "sender_domain",
	SenderLocalPart: "sender_local_part",
	SenderName:      "sender_name",
	Year:            "year",
	Month:           "month",
	Day:             "day",
	Timestamp:       "timestamp",
	ToGroup:         "to_group",
	ToName:          "to_name",
	ToAddress:       "to_address",
	IsReply:         "is_reply",
	IsSend:          "is_send",
	Subject:         "subject",
	MetaIsSeen:      "meta_is_seen",
	MetaTags:        "meta_tags",
}

var humanNames = map[Field]string{
	SenderDomain:    "Domain",
	SenderLocalPart: "Address",
	SenderName:      "Name",
	ToGroup:         "Group",
	ToName:          "To name",
	ToAddress:       "To address",
	Year:            "Year",
	Month:           "Month",
	Day:             "Day",
	Subject:         "Subject",
}

// AllCases returns every Field that is valid to group or aggregate by.
func AllCases() []Field {
	out := make([]Field, 0, len(allFields))
	for _, f := range allFields {
		if !invalidForGrouping[f] {
			out = append(out, f)
		}
	}
	return out
}

// Groupable reports whether f may appear as a GROUP BY target.
func Groupable(f Field) bool {
	return !invalidForGrouping[f]
}

// String returns the fixed snake_case SQL identifier for f.
func (f Field) String() string {
	if s, ok := snakeNames[f]; ok {
		return s
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Name returns a human-readable label for f, falling back to its
// snake_case identifier when no friendlier name is defined.
func (f Field) Name() string {
	if s, ok := humanNames[f]; ok {
		return s
	}
	return f.String()
}

// Kind describes the TypedValue variant a Field's column holds.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindStringArray
)

var kinds = map[Field]Kind{
	Path:            KindString,
	SenderDomain:    KindString,
	SenderLocalPart: KindString,
	SenderName:      KindString,
	Year:            KindInt,
	Month:           KindInt,
	Day:             KindInt,
	Timestamp:       KindInt,
	ToGroup:         KindString,
	ToName:          KindString,
	ToAddress:       KindString,
	IsReply:         KindBool,
	IsSend:          KindBool,
	Subject:         KindString,
	MetaIsSeen:      KindBool,
	MetaTags:        KindStringArray,
}

// KindOf returns the declared value kind for f.
func KindOf(f Field) Kind {
	return kinds[f]
}
