// Package posts projects SharePoint list rows into Post records.
package posts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nickoftime/keyvault-spo/internal/models"
	"github.com/nickoftime/keyvault-spo/internal/sharepoint"
	"github.com/tidwall/gjson"
)

// List field internal names.
const (
	FieldID             = "Id"
	FieldTitle          = "Title"
	FieldDescription    = "Description"
	FieldType           = "Type"
	FieldEffortHours    = "EffortHours"
	FieldEffortMinutes  = "EffortMinutes"
	FieldStartDate      = "StartDate"
	FieldEndDate        = "EndDate"
	FieldExpirationDate = "ExpirationDate"
	FieldLocation       = "Location"
	FieldPostedBy       = "PostedBy"
	FieldStatus         = "Status"
	FieldCreated        = "Created"
)

var (
	// ErrMissingField is returned when a required field is absent or null.
	ErrMissingField = errors.New("required field missing")
	// ErrInvalidField is returned when a field value has the wrong shape.
	ErrInvalidField = errors.New("invalid field value")
)

// MissingFieldError names the required field a row lacks.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// FieldFormatError reports a field whose value could not be converted.
type FieldFormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldFormatError) Error() string {
	return fmt.Sprintf("%s: %s=%q: %v", ErrInvalidField, e.Field, e.Value, e.Err)
}

func (e *FieldFormatError) Unwrap() []error { return []error{ErrInvalidField, e.Err} }

// SkillField returns the internal name of the skill column at position (1-based).
func SkillField(position int) string {
	return "Skill" + strconv.Itoa(position)
}

// SelectFields lists the fields the projector reads, in REST $select form.
func SelectFields() []string {
	fields := []string{
		FieldID, FieldTitle, FieldDescription, FieldType,
		FieldEffortHours, FieldEffortMinutes,
		FieldStartDate, FieldEndDate, FieldExpirationDate,
		FieldLocation, FieldStatus,
		FieldPostedBy + "/Id", FieldPostedBy + "/Title", FieldPostedBy + "/EMail",
	}
	for i := 1; i <= models.MaxSkills; i++ {
		fields = append(fields, SkillField(i))
	}
	return fields
}

// ExpandFields lists the lookup fields that must be expanded for projection.
func ExpandFields() []string {
	return []string{FieldPostedBy}
}

// FromListItem projects one list row into a Post.
func FromListItem(item sharepoint.ListItem) (models.Post, error) {
	var post models.Post

	id, ok := item.ID()
	if !ok {
		return models.Post{}, &MissingFieldError{Field: FieldID}
	}
	post.ID = id

	var err error
	if post.Title, err = requiredString(item, FieldTitle); err != nil {
		return models.Post{}, err
	}
	if post.Description, err = requiredString(item, FieldDescription); err != nil {
		return models.Post{}, err
	}
	if post.Type, err = requiredString(item, FieldType); err != nil {
		return models.Post{}, err
	}

	if post.EffortHours, err = optionalInt(item, FieldEffortHours); err != nil {
		return models.Post{}, err
	}
	if post.EffortMinutes, err = optionalInt(item, FieldEffortMinutes); err != nil {
		return models.Post{}, err
	}
	if post.StartDate, err = optionalTime(item, FieldStartDate); err != nil {
		return models.Post{}, err
	}
	if post.EndDate, err = optionalTime(item, FieldEndDate); err != nil {
		return models.Post{}, err
	}

	if !item.Has(FieldExpirationDate) {
		return models.Post{}, &MissingFieldError{Field: FieldExpirationDate}
	}
	if post.ExpirationDate, err = parseTime(FieldExpirationDate, item.Field(FieldExpirationDate)); err != nil {
		return models.Post{}, err
	}

	if post.Location, err = requiredString(item, FieldLocation); err != nil {
		return models.Post{}, err
	}

	user, ok := item.User(FieldPostedBy)
	if !ok {
		return models.Post{}, &MissingFieldError{Field: FieldPostedBy}
	}
	post.PostedBy = user.LookupValue
	post.PostedByID = user.LookupID
	post.PostedByEmailAddress = user.Email

	if post.Status, err = requiredString(item, FieldStatus); err != nil {
		return models.Post{}, err
	}

	post.Skills = skills(item)

	return post, nil
}

// FromListItems projects rows in order. The first faulty row aborts the
// whole projection.
func FromListItems(items []sharepoint.ListItem) ([]models.Post, error) {
	out := make([]models.Post, 0, len(items))
	for i, item := range items {
		post, err := FromListItem(item)
		if err != nil {
			if id, ok := item.ID(); ok {
				return nil, fmt.Errorf("row %d (item %d): %w", i, id, err)
			}
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, post)
	}
	return out, nil
}

// skills collects Skill1..Skill10 in position order, skipping unset columns.
func skills(item sharepoint.ListItem) []string {
	out := make([]string, 0, models.MaxSkills)
	for i := 1; i <= models.MaxSkills; i++ {
		name := SkillField(i)
		if item.Has(name) {
			out = append(out, item.Field(name).String())
		}
	}
	return out
}

func requiredString(item sharepoint.ListItem, name string) (string, error) {
	if !item.Has(name) {
		return "", &MissingFieldError{Field: name}
	}
	return item.Field(name).String(), nil
}

func optionalInt(item sharepoint.ListItem, name string) (int, error) {
	if !item.Has(name) {
		return 0, nil
	}
	return parseInt(name, item.Field(name))
}

func optionalTime(item sharepoint.ListItem, name string) (time.Time, error) {
	if !item.Has(name) {
		return time.Time{}, nil
	}
	return parseTime(name, item.Field(name))
}

// parseInt converts numbers and numeric strings, rounding half to even.
func parseInt(name string, v gjson.Result) (int, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, &FieldFormatError{Field: name, Value: v.Str, Err: err}
		}
		f = parsed
	default:
		return 0, &FieldFormatError{Field: name, Value: v.Raw, Err: errors.New("not a number")}
	}

	r := math.RoundToEven(f)
	if r > math.MaxInt32 || r < math.MinInt32 || math.IsNaN(r) {
		return 0, &FieldFormatError{Field: name, Value: v.Raw, Err: errors.New("out of range")}
	}
	return int(r), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(name string, v gjson.Result) (time.Time, error) {
	if v.Type != gjson.String {
		return time.Time{}, &FieldFormatError{Field: name, Value: v.Raw, Err: errors.New("not a date string")}
	}
	s := strings.TrimSpace(v.Str)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &FieldFormatError{Field: name, Value: s, Err: errors.New("unrecognized date format")}
}
