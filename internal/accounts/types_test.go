package accounts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRecordLooseDecode(t *testing.T) {
	raw := `{"id":1739712345678,"firstName":"Ana","lastName":null,"email":"ana@x.com","password":"pw","isAdmin":"true","newsletter":true}`

	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, "1739712345678", u.ID)
	assert.Equal(t, "", u.LastName)
	assert.True(t, u.IsAdmin)
	assert.True(t, u.HasAdminRights())
}

func TestUserRecordPreservesUnknownFields(t *testing.T) {
	raw := `{"id":"u-1","firstName":"Ana","lastName":"Lee","email":"ana@x.com","password":"pw","newsletter":true}`

	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	u.Password = "changed"

	out, err := json.Marshal(u)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, true, back["newsletter"])
	assert.Equal(t, "changed", back["password"])
	assert.NotContains(t, back, "role")
	assert.NotContains(t, back, "logoutTime")
}

func TestUserRecordRejectsNonObject(t *testing.T) {
	var u UserRecord
	assert.Error(t, json.Unmarshal([]byte(`null`), &u))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &u))
}

func TestUserRecordNumericIsAdmin(t *testing.T) {
	var on, off UserRecord
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@x.com","isAdmin":1}`), &on))
	require.NoError(t, json.Unmarshal([]byte(`{"email":"b@x.com","isAdmin":0}`), &off))
	assert.True(t, on.IsAdmin)
	assert.False(t, off.IsAdmin)
	assert.False(t, on.Unparsed())
}

func TestUserRecordKeepsUnreadableFields(t *testing.T) {
	raw := `{"id":"u-9","firstName":["x"],"lastName":"Lee","email":"lee@x.com","password":"pw","isAdmin":{"v":1},"role":{"name":"coach"}}`

	var u UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.True(t, u.Unparsed())
	assert.Equal(t, "lee@x.com", u.Email)
	assert.Equal(t, "", u.FirstName)
	assert.False(t, u.HasAdminRights())

	u.Role = RoleAdmin
	out, err := json.Marshal(u)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []any{"x"}, back["firstName"])
	assert.Equal(t, map[string]any{"v": float64(1)}, back["isAdmin"])
	assert.Equal(t, RoleAdmin, back["role"])
	assert.Equal(t, "lee@x.com", back["email"])
}

func TestSessionJSONMatchesRecordShape(t *testing.T) {
	s := Session{UserRecord: UserRecord{ID: "u-1", Email: "a@b.com", Password: "pw", LoginTime: "2026-10-15T09:30:00.000Z"}}
	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-1","firstName":"","lastName":"","email":"a@b.com","password":"pw","loginTime":"2026-10-15T09:30:00.000Z"}`, string(out))

	var back Session
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, s.UserRecord.ID, back.ID)
	assert.Equal(t, s.LoginTime, back.LoginTime)
}

func TestDisplayNameAndInitials(t *testing.T) {
	u := UserRecord{FirstName: " jane", LastName: "doe "}
	assert.Equal(t, "jane doe", u.DisplayName())
	assert.Equal(t, "JD", u.Initials())

	assert.Equal(t, "É", UserRecord{FirstName: "élodie"}.Initials())
	assert.Equal(t, "", UserRecord{}.Initials())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "foo@bar.com", NormalizeEmail("  Foo@Bar.com "))
	assert.Equal(t, NormalizeEmail("foo@bar.com"), NormalizeEmail(NormalizeEmail("  FOO@bar.COM")))
}
