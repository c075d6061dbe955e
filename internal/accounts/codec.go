package accounts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// decodeUsers is the single place that tolerates legacy shapes of the users
// value. It always returns a non-nil slice; the error only explains what was
// dropped or only partly read.
//
//   - absent/blank: empty
//   - JSON array: every object element in stored order, other elements dropped
//   - JSON object: wrapped as a one-element slice
//   - anything else: empty
func decodeUsers(raw string) ([]UserRecord, error) {
	data := bytes.TrimSpace([]byte(raw))
	users := []UserRecord{}
	if len(data) == 0 {
		return users, nil
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return users, fmt.Errorf("decode users array: %w", err)
		}
		var skipped, partial int
		for _, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				skipped++
				continue
			}
			var u UserRecord
			if err := json.Unmarshal(elem, &u); err != nil {
				skipped++
				continue
			}
			if u.Unparsed() {
				partial++
			}
			users = append(users, u)
		}
		var errs []error
		if skipped > 0 {
			errs = append(errs, fmt.Errorf("skipped %d non-object user entries", skipped))
		}
		if partial > 0 {
			errs = append(errs, fmt.Errorf("kept %d user entries with unreadable fields as stored", partial))
		}
		return users, errors.Join(errs...)
	case '{':
		var u UserRecord
		if err := json.Unmarshal(data, &u); err != nil {
			return users, fmt.Errorf("decode single user object: %w", err)
		}
		users = append(users, u)
		if u.Unparsed() {
			return users, fmt.Errorf("kept single user entry with unreadable fields as stored")
		}
		return users, nil
	default:
		return users, fmt.Errorf("users value is neither an array nor an object")
	}
}

func encodeUsers(users []UserRecord) (string, error) {
	if users == nil {
		users = []UserRecord{}
	}
	b, err := json.Marshal(users)
	if err != nil {
		return "", fmt.Errorf("encode users: %w", err)
	}
	return string(b), nil
}

// decodeSession returns false for anything that is not a JSON object.
func decodeSession(raw string) (Session, bool, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || data[0] != '{' {
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("session value is not a JSON object")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

func encodeSession(s Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(b), nil
}
