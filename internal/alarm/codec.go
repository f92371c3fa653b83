package alarm

import (
	"fmt"
	"strconv"
	"strings"
)

// Stored records are comma-separated:
//
//	hour,minute,days,enabled,sound[,label[,snooze[,perm[,bottom]]]]
//
// Fields were appended over releases, so the field count is the
// format version. Missing trailing fields take their historical defaults.
const (
	fieldsV1 = 5 // sound
	fieldsV2 = 7 // label, snooze
	fieldsV3 = 8 // permanently disabled
	fieldsV4 = 9 // bottom row label

	labelOnlyFields = 6
)

// DecodeError reports a stored record that cannot be decoded.
type DecodeError struct {
	Data   string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("alarm: decode %q: %s", e.Data, e.Reason)
	}
	return fmt.Sprintf("alarm: decode %q: field %s: %s", e.Data, e.Field, e.Reason)
}

// Encode returns the current (newest) storage encoding of r. The ID is not
// part of the value; it is carried by the storage key.
func Encode(r Record) string {
	return strings.Join([]string{
		strconv.Itoa(r.Hour),
		strconv.Itoa(r.Minute),
		strconv.Itoa(int(r.Days)),
		boolField(r.Enabled),
		r.Sound,
		r.Label,
		boolField(r.SnoozeEnabled),
		boolField(r.PermanentlyDisabled),
		r.BottomRowLabel,
	}, ",")
}

// Decode parses any supported storage encoding into a record with the given id.
func Decode(id int, data string) (Record, error) {
	parts := strings.SplitN(data, ",", fieldsV4)
	if len(parts) < fieldsV1 {
		return Record{}, &DecodeError{Data: data, Reason: fmt.Sprintf("%d fields, need at least %d", len(parts), fieldsV1)}
	}

	r := Record{
		ID:            id,
		Label:         DefaultLabel,
		SnoozeEnabled: true,
	}

	var err error
	if r.Hour, err = intField(data, "hour", parts[0], 0, 23); err != nil {
		return Record{}, err
	}
	if r.Minute, err = intField(data, "minute", parts[1], 0, 59); err != nil {
		return Record{}, err
	}
	days, err := intField(data, "days", parts[2], 0, int(Everyday))
	if err != nil {
		return Record{}, err
	}
	r.Days = Weekdays(days)
	if r.Enabled, err = flagField(data, "enabled", parts[3]); err != nil {
		return Record{}, err
	}
	r.Sound = parts[4]
	if r.Sound == "" {
		return Record{}, &DecodeError{Data: data, Field: "sound", Reason: "empty"}
	}

	n := len(parts)
	if n >= labelOnlyFields {
		r.Label = parts[5]
	}
	if n >= fieldsV2 {
		if r.SnoozeEnabled, err = flagField(data, "snooze", parts[6]); err != nil {
			return Record{}, err
		}
	}
	if n >= fieldsV3 {
		if r.PermanentlyDisabled, err = flagField(data, "perm", parts[7]); err != nil {
			return Record{}, err
		}
	}
	if n >= fieldsV4 {
		r.BottomRowLabel = parts[8]
	}
	return r, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func intField(data, name, s string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &DecodeError{Data: data, Field: name, Reason: "not a number"}
	}
	if v < lo || v > hi {
		return 0, &DecodeError{Data: data, Field: name, Reason: fmt.Sprintf("%d out of range %d-%d", v, lo, hi)}
	}
	return v, nil
}

func flagField(data, name, s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, &DecodeError{Data: data, Field: name, Reason: fmt.Sprintf("flag %q is not 0 or 1", s)}
}
