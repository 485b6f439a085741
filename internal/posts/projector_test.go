package posts

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nickoftime/keyvault-spo/internal/models"
	"github.com/nickoftime/keyvault-spo/internal/sharepoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRow() map[string]any {
	return map[string]any{
		"Id":             7,
		"Title":          "Migrate build farm",
		"Description":    "Move the nightly builds to the new cluster",
		"Type":           "Project",
		"ExpirationDate": "2024-09-30T07:00:00Z",
		"Location":       "Remote",
		"Status":         "Open",
		"PostedBy": map[string]any{
			"Id":    12,
			"Title": "Jordan Lee",
			"EMail": "jordan@contoso.com",
		},
	}
}

func toItem(t *testing.T, row map[string]any) sharepoint.ListItem {
	t.Helper()
	data, err := json.Marshal(row)
	require.NoError(t, err)
	return sharepoint.NewListItem(string(data))
}

func TestFromListItemRequiredOnly(t *testing.T) {
	post, err := FromListItem(toItem(t, baseRow()))
	require.NoError(t, err)

	assert.Equal(t, 7, post.ID)
	assert.Equal(t, "Migrate build farm", post.Title)
	assert.Equal(t, "Project", post.Type)
	assert.Equal(t, time.Date(2024, 9, 30, 7, 0, 0, 0, time.UTC), post.ExpirationDate.UTC())
	assert.Equal(t, "Remote", post.Location)
	assert.Equal(t, "Jordan Lee", post.PostedBy)
	assert.Equal(t, 12, post.PostedByID)
	assert.Equal(t, "jordan@contoso.com", post.PostedByEmailAddress)
	assert.Equal(t, "Open", post.Status)

	assert.Zero(t, post.EffortHours)
	assert.Zero(t, post.EffortMinutes)
	assert.True(t, post.StartDate.IsZero())
	assert.True(t, post.EndDate.IsZero())
	require.NotNil(t, post.Skills)
	assert.Empty(t, post.Skills)
}

func TestFromListItemOptionalFields(t *testing.T) {
	row := baseRow()
	row["EffortHours"] = 6.0
	row["EffortMinutes"] = "30"
	row["StartDate"] = "2024-06-01T08:00:00Z"
	row["EndDate"] = "2024-06-14"

	post, err := FromListItem(toItem(t, row))
	require.NoError(t, err)

	assert.Equal(t, 6, post.EffortHours)
	assert.Equal(t, 30, post.EffortMinutes)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), post.StartDate.UTC())
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), post.EndDate)
}

func TestFromListItemSkillsExample(t *testing.T) {
	row := baseRow()
	row["Skill1"] = "Go"
	row["Skill2"] = nil
	row["Skill3"] = "Rust"

	post, err := FromListItem(toItem(t, row))
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust"}, post.Skills)
}

func TestFromListItemLookupUserShape(t *testing.T) {
	row := baseRow()
	row["PostedBy"] = map[string]any{
		"LookupId":    44,
		"LookupValue": "Sam Ortiz",
		"Email":       "sam@contoso.com",
	}

	post, err := FromListItem(toItem(t, row))
	require.NoError(t, err)
	assert.Equal(t, "Sam Ortiz", post.PostedBy)
	assert.Equal(t, 44, post.PostedByID)
	assert.Equal(t, "sam@contoso.com", post.PostedByEmailAddress)
}

func TestFromListItemUserIDFromCompanionField(t *testing.T) {
	row := baseRow()
	row["PostedBy"] = map[string]any{"Title": "Jordan Lee", "EMail": "jordan@contoso.com"}
	row["PostedById"] = 99

	post, err := FromListItem(toItem(t, row))
	require.NoError(t, err)
	assert.Equal(t, 99, post.PostedByID)
}

func TestFromListItemEffortRounding(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{2.5, 2},
		{3.5, 4},
		{1.4, 1},
		{"7", 7},
	}
	for _, tt := range tests {
		row := baseRow()
		row["EffortHours"] = tt.in

		post, err := FromListItem(toItem(t, row))
		require.NoError(t, err)
		assert.Equal(t, tt.want, post.EffortHours, "input %v", tt.in)
	}
}

func TestFromListItemInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
	}{
		{"effort not numeric", FieldEffortHours, "lots"},
		{"effort is object", FieldEffortMinutes, map[string]any{"v": 1}},
		{"start date garbage", FieldStartDate, "next tuesday"},
		{"expiration is number", FieldExpirationDate, 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := baseRow()
			row[tt.field] = tt.value

			_, err := FromListItem(toItem(t, row))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidField), "got %v", err)

			var fe *FieldFormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

// For any subset of the ten skill columns, the projected list has one entry
// per populated column, in ascending position order.
func TestPropertySkillsPreservePositionOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("skills length and order match populated columns", prop.ForAll(
		func(present []bool, values []string) bool {
			row := baseRow()
			var want []string
			for i := 0; i < models.MaxSkills; i++ {
				if present[i] {
					row[SkillField(i+1)] = values[i]
					want = append(want, values[i])
				} else if i%2 == 0 {
					// Unset columns come back either null or absent.
					row[SkillField(i+1)] = nil
				}
			}

			post, err := FromListItem(toItem(t, row))
			if err != nil {
				t.Logf("projection failed: %v", err)
				return false
			}
			if len(post.Skills) != len(want) {
				return false
			}
			for i := range want {
				if post.Skills[i] != want[i] {
					return false
				}
			}
			return post.Skills != nil
		},
		gen.SliceOfN(models.MaxSkills, gen.Bool()),
		gen.SliceOfN(models.MaxSkills, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// For any combination of missing optional fields, projection succeeds and the
// missing fields hold their zero values.
func TestPropertyMissingOptionalFieldsAreZero(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("absent optional fields project to zero values", prop.ForAll(
		func(hours, minutes, start, end bool, asNull bool) bool {
			row := baseRow()
			set := func(field string, include bool, value any) {
				switch {
				case include:
					row[field] = value
				case asNull:
					row[field] = nil
				}
			}
			set(FieldEffortHours, hours, 3)
			set(FieldEffortMinutes, minutes, 45)
			set(FieldStartDate, start, "2024-01-02T00:00:00Z")
			set(FieldEndDate, end, "2024-01-09T00:00:00Z")

			post, err := FromListItem(toItem(t, row))
			if err != nil {
				t.Logf("projection failed: %v", err)
				return false
			}

			return (hours || post.EffortHours == 0) &&
				(minutes || post.EffortMinutes == 0) &&
				(start || post.StartDate.IsZero()) &&
				(end || post.EndDate.IsZero()) &&
				(!hours || post.EffortHours == 3) &&
				(!minutes || post.EffortMinutes == 45) &&
				(!start || !post.StartDate.IsZero()) &&
				(!end || !post.EndDate.IsZero())
		},
		gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.TestingRun(t)
}

// For any required field that is absent or null, projection fails with
// ErrMissingField naming that field.
func TestPropertyMissingRequiredFieldFails(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genRequired := gen.OneConstOf(
		FieldID, FieldTitle, FieldDescription, FieldType,
		FieldExpirationDate, FieldLocation, FieldPostedBy, FieldStatus,
	)

	properties.Property("absent or null required field is an error", prop.ForAll(
		func(field string, asNull bool) bool {
			row := baseRow()
			if asNull {
				row[field] = nil
			} else {
				delete(row, field)
			}

			_, err := FromListItem(toItem(t, row))
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Logf("expected MissingFieldError for %s, got %v", field, err)
				return false
			}
			return missing.Field == field && errors.Is(err, ErrMissingField)
		},
		genRequired,
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Projection keeps the order in which the query returned the rows.
func TestPropertyFromListItemsPreservesOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("output ids follow input order", prop.ForAll(
		func(ids []int) bool {
			items := make([]sharepoint.ListItem, len(ids))
			for i, id := range ids {
				row := baseRow()
				row["Id"] = id
				items[i] = toItem(t, row)
			}

			out, err := FromListItems(items)
			if err != nil || len(out) != len(ids) {
				return false
			}
			for i := range ids {
				if out[i].ID != ids[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 1_000_000)),
	))

	properties.TestingRun(t)
}

func TestFromListItemsAbortsOnFaultyRow(t *testing.T) {
	good := baseRow()
	bad := baseRow()
	bad["Id"] = 8
	bad["Title"] = nil

	_, err := FromListItems([]sharepoint.ListItem{toItem(t, good), toItem(t, bad), toItem(t, good)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))
	assert.Contains(t, err.Error(), "row 1 (item 8)")
}

func TestSelectFieldsCoverSkills(t *testing.T) {
	fields := SelectFields()
	assert.Contains(t, fields, "Skill1")
	assert.Contains(t, fields, "Skill10")
	assert.NotContains(t, fields, "Skill11")
	assert.Contains(t, fields, "PostedBy/EMail")
	assert.Equal(t, []string{"PostedBy"}, ExpandFields())
}
