package cluster

import (
	"strconv"
	"strings"
)

// Realtime segment names are double-underscore-separated tuples. High-level
// consumer segments carry three fields:
//
//	<rawTable>__<groupID>__<sequence>
//
// and low-level consumer segments four:
//
//	<rawTable>__<partition>__<sequence>__<creationTime>
//
// The field count alone distinguishes the two families.

// HLCSegmentName is a parsed high-level-consumer segment name.
type HLCSegmentName struct {
	RawTable string
	GroupID  string
	Sequence int
}

// LLCSegmentName is a parsed low-level-consumer segment name.
type LLCSegmentName struct {
	RawTable     string
	Partition    int
	Sequence     int
	CreationTime string
}

// ParseHLCSegmentName parses an HLC segment name. ok is false when the name
// does not follow the three-field convention.
func ParseHLCSegmentName(segment string) (HLCSegmentName, bool) {
	parts := strings.Split(segment, "__")
	if len(parts) != 3 {
		return HLCSegmentName{}, false
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return HLCSegmentName{}, false
	}
	return HLCSegmentName{RawTable: parts[0], GroupID: parts[1], Sequence: seq}, true
}

// ParseLLCSegmentName parses an LLC segment name. ok is false when the name
// does not follow the four-field convention.
func ParseLLCSegmentName(segment string) (LLCSegmentName, bool) {
	parts := strings.Split(segment, "__")
	if len(parts) != 4 {
		return LLCSegmentName{}, false
	}
	partition, err := strconv.Atoi(parts[1])
	if err != nil {
		return LLCSegmentName{}, false
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return LLCSegmentName{}, false
	}
	return LLCSegmentName{
		RawTable:     parts[0],
		Partition:    partition,
		Sequence:     seq,
		CreationTime: parts[3],
	}, true
}
