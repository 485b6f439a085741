package sharepoint

import (
	"github.com/tidwall/gjson"
)

// ListItem is one row returned by the list items endpoint. Field values are
// loosely typed; callers decide how to interpret them.
type ListItem struct {
	raw gjson.Result
}

// NewListItem wraps a JSON object as a ListItem.
func NewListItem(json string) ListItem {
	return ListItem{raw: gjson.Parse(json)}
}

// Field returns the value of the named field. The result does not exist
// when the row has no such field.
func (i ListItem) Field(name string) gjson.Result {
	return i.raw.Get(gjson.Escape(name))
}

// Has reports whether the named field is present and not null.
func (i ListItem) Has(name string) bool {
	f := i.Field(name)
	return f.Exists() && f.Type != gjson.Null
}

// ID returns the item id and whether the row carried one.
func (i ListItem) ID() (int, bool) {
	for _, name := range []string{"Id", "ID"} {
		if f := i.Field(name); f.Type == gjson.Number {
			return int(f.Int()), true
		}
	}
	return 0, false
}

// UserValue is the decoded form of a person field.
type UserValue struct {
	LookupID    int
	LookupValue string // display name
	Email       string
}

// User decodes the person field name. It accepts the expanded REST shape
// ({"Id","Title","EMail"}) and the lookup shape ({"LookupId","LookupValue","Email"}).
// When the expansion omits the id, the companion "<name>Id" field is used.
func (i ListItem) User(name string) (UserValue, bool) {
	f := i.Field(name)
	if !f.IsObject() {
		return UserValue{}, false
	}

	var u UserValue

	switch id := firstPresent(f, "Id", "LookupId"); {
	case id.Type == gjson.Number:
		u.LookupID = int(id.Int())
	case i.Field(name+"Id").Type == gjson.Number:
		u.LookupID = int(i.Field(name + "Id").Int())
	default:
		return UserValue{}, false
	}

	u.LookupValue = firstPresent(f, "Title", "LookupValue").String()
	u.Email = firstPresent(f, "EMail", "Email").String()

	return u, true
}

func firstPresent(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}
