package cbs

import (
	"fmt"
	"math"
	"strings"

	"github.com/ftl/ril-cbs/ril"
)

const (
	activationMode       = 1
	activationActivate   = 0
	activationDeactivate = 1

	// every configured range covers all data coding schemes and is marked as selected
	fromCodeScheme = 0
	toCodeScheme   = 0xff
	selected       = 1

	configEntryFields = 5
)

// TopicRange is an inclusive range of cell broadcast message identifiers.
type TopicRange struct {
	From int
	To   int
}

func (r TopicRange) String() string {
	if r.From == r.To {
		return fmt.Sprintf("%d", r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// ActivationRequest builds the payload of RIL_REQUEST_GSM_SMS_BROADCAST_ACTIVATION.
// On the wire 0 means activate and 1 means deactivate.
func ActivationRequest(active bool) *ril.Request {
	req := ril.NewSizedRequest(8)
	req.AppendInt32(activationMode)
	if active {
		req.AppendInt32(activationActivate)
	} else {
		req.AppendInt32(activationDeactivate)
	}
	return withRetry(req)
}

// ConfigRequest builds the payload of RIL_REQUEST_GSM_SET_BROADCAST_SMS_CONFIG for the given
// comma separated topic list, parsed with ParseTopics.
func ConfigRequest(topics string) *ril.Request {
	return EncodeConfig(ParseTopics(topics))
}

// EncodeConfig builds the payload of RIL_REQUEST_GSM_SET_BROADCAST_SMS_CONFIG: the number of
// entries followed by (fromServiceId, toServiceId, fromCodeScheme, toCodeScheme, selected) per entry.
func EncodeConfig(ranges []TopicRange) *ril.Request {
	req := ril.NewSizedRequest(4 * (1 + configEntryFields*len(ranges)))
	req.AppendInt32(int32(len(ranges)))
	for _, r := range ranges {
		req.AppendInt32(int32(r.From))
		req.AppendInt32(int32(r.To))
		req.AppendInt32(fromCodeScheme)
		req.AppendInt32(toCodeScheme)
		req.AppendInt32(selected)
	}
	return withRetry(req)
}

// DecodeConfig parses a broadcast SMS config payload as built by EncodeConfig.
func DecodeConfig(data []byte) ([]TopicRange, error) {
	parser := ril.NewParser(data)
	count, ok := parser.GetInt32()
	if !ok {
		return nil, fmt.Errorf("broadcast config too short: %d", len(data))
	}
	if count < 0 || int(count) > parser.BytesRemaining()/(4*configEntryFields) {
		return nil, fmt.Errorf("invalid broadcast config entry count %d", count)
	}

	result := make([]TopicRange, 0, count)
	for i := 0; i < int(count); i++ {
		var fields [configEntryFields]int32
		for j := range fields {
			fields[j], _ = parser.GetInt32()
		}
		if fields[2] != fromCodeScheme || fields[3] != toCodeScheme || fields[4] != selected {
			return nil, fmt.Errorf("unexpected code scheme selection in entry %d: %v", i, fields[2:])
		}
		result = append(result, TopicRange{From: int(fields[0]), To: int(fields[1])})
	}
	if !parser.AtEnd() {
		return nil, fmt.Errorf("%d trailing bytes in broadcast config", parser.BytesRemaining())
	}
	return result, nil
}

// ParseTopics parses a comma separated list of topics and topic ranges ("4352-4356,4370")
// the way the modem driver always did: if an entry contains a '-', the bounds are taken from
// the whole list split at '-', not from the entry itself. Lists that mix ranges with other
// entries therefore produce wrong bounds. Use ParseTopicsStrict for a per-entry parser.
func ParseTopics(topics string) []TopicRange {
	if topics == "" {
		return nil
	}

	entries := strings.Split(topics, ",")
	result := make([]TopicRange, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry, "-") {
			bounds := strings.Split(topics, "-")
			result = append(result, TopicRange{From: atoi(bounds[0]), To: atoi(bounds[1])})
		} else {
			value := atoi(entry)
			result = append(result, TopicRange{From: value, To: value})
		}
	}
	return result
}

// ParseTopicsStrict parses a comma separated list of topics and topic ranges, taking the
// bounds of each range from its own entry.
func ParseTopicsStrict(topics string) []TopicRange {
	if topics == "" {
		return nil
	}

	entries := strings.Split(topics, ",")
	result := make([]TopicRange, 0, len(entries))
	for _, entry := range entries {
		from, to, isRange := strings.Cut(entry, "-")
		if isRange {
			result = append(result, TopicRange{From: atoi(from), To: atoi(to)})
		} else {
			value := atoi(entry)
			result = append(result, TopicRange{From: value, To: value})
		}
	}
	return result
}

// atoi parses a leading decimal number like the C library does: leading white space and a
// sign are accepted, parsing stops at the first non-digit, and no digits at all yield 0.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	var result int64
	for _, c := range []byte(s) {
		if c < '0' || c > '9' {
			break
		}
		digit := int64(c - '0')
		if result > (math.MaxInt64-digit)/10 {
			result = math.MaxInt64
			break
		}
		result = result*10 + digit
	}
	if negative {
		result = -result
	}
	return int(int32(result))
}
