package accounts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const RoleAdmin = "admin"

// timestampLayout matches what browsers produce for Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// UserRecord is one registered account as persisted under the users key.
type UserRecord struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	Role              string `json:"role,omitempty"`
	IsAdmin           bool   `json:"isAdmin,omitempty"`
	LoginTime         string `json:"loginTime,omitempty"`
	LogoutTime        string `json:"logoutTime,omitempty"`
	PasswordResetTime string `json:"passwordResetTime,omitempty"`

	// extra holds fields this version does not know about so that a
	// read-modify-write cycle writes them back untouched.
	extra map[string]json.RawMessage
	// unparsed holds known fields whose stored value could not be coerced.
	// They are written back as stored unless the field has since been set.
	unparsed map[string]json.RawMessage
}

// Session is the single active login: a snapshot of the user taken at login
// time with LoginTime stamped.
type Session struct {
	UserRecord
}

// HasAdminRights reports whether either admin marker is set.
func (u UserRecord) HasAdminRights() bool {
	return u.Role == RoleAdmin || u.IsAdmin
}

func (u UserRecord) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

func (u UserRecord) Initials() string {
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// NormalizeEmail trims surrounding whitespace and lowercases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

type userRecordJSON struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	Role              string `json:"role,omitempty"`
	IsAdmin           bool   `json:"isAdmin,omitempty"`
	LoginTime         string `json:"loginTime,omitempty"`
	LogoutTime        string `json:"logoutTime,omitempty"`
	PasswordResetTime string `json:"passwordResetTime,omitempty"`
}

var knownFields = map[string]struct{}{
	"id": {}, "firstName": {}, "lastName": {}, "email": {}, "password": {},
	"role": {}, "isAdmin": {}, "loginTime": {}, "logoutTime": {}, "passwordResetTime": {},
}

func (u UserRecord) MarshalJSON() ([]byte, error) {
	known := userRecordJSON{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Email:             u.Email,
		Password:          u.Password,
		Role:              u.Role,
		IsAdmin:           u.IsAdmin,
		LoginTime:         u.LoginTime,
		LogoutTime:        u.LogoutTime,
		PasswordResetTime: u.PasswordResetTime,
	}
	b, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(u.extra) == 0 && len(u.unparsed) == 0 {
		return b, nil
	}

	merged := make(map[string]json.RawMessage, len(u.extra)+len(knownFields))
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range u.extra {
		if _, ok := merged[k]; ok {
			continue
		}
		merged[k] = v
	}
	for k, v := range u.unparsed {
		if u.fieldIsZero(k) {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (u UserRecord) fieldIsZero(name string) bool {
	switch name {
	case "id":
		return u.ID == ""
	case "firstName":
		return u.FirstName == ""
	case "lastName":
		return u.LastName == ""
	case "email":
		return u.Email == ""
	case "password":
		return u.Password == ""
	case "role":
		return u.Role == ""
	case "isAdmin":
		return !u.IsAdmin
	case "loginTime":
		return u.LoginTime == ""
	case "logoutTime":
		return u.LogoutTime == ""
	case "passwordResetTime":
		return u.PasswordResetTime == ""
	}
	return false
}

// Unparsed reports whether any known field kept a stored value it could not read.
func (u UserRecord) Unparsed() bool {
	return len(u.unparsed) > 0
}

// UnmarshalJSON accepts the loose shapes older pages wrote: ids and names may
// be numbers, isAdmin may be a number or the string "true", and null means
// unset. Any JSON object decodes; a field that cannot be coerced stays zero
// and keeps its stored value for the next write.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("user record must be a JSON object")
	}

	var rec UserRecord
	keep := func(name string) {
		if rec.unparsed == nil {
			rec.unparsed = make(map[string]json.RawMessage)
		}
		rec.unparsed[name] = fields[name]
	}
	str := func(name string, dst *string) {
		v, err := looseString(fields[name])
		if err != nil {
			keep(name)
			return
		}
		*dst = v
	}
	str("id", &rec.ID)
	str("firstName", &rec.FirstName)
	str("lastName", &rec.LastName)
	str("email", &rec.Email)
	str("password", &rec.Password)
	str("role", &rec.Role)
	str("loginTime", &rec.LoginTime)
	str("logoutTime", &rec.LogoutTime)
	str("passwordResetTime", &rec.PasswordResetTime)
	if v, err := looseBool(fields["isAdmin"]); err != nil {
		keep("isAdmin")
	} else {
		rec.IsAdmin = v
	}

	for k, v := range fields {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if rec.extra == nil {
			rec.extra = make(map[string]json.RawMessage)
		}
		rec.extra[k] = v
	}

	*u = rec
	return nil
}

func looseString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", err
		}
		if b {
			return "true", nil
		}
		return "false", nil
	}
	return "", fmt.Errorf("unsupported value %s", string(raw))
}

func looseBool(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true"), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, nil
	}
	return false, fmt.Errorf("unsupported value %s", string(raw))
}
