package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	daily, err := NewDaily(7, 5)
	require.NoError(t, err)
	assert.Equal(t, "Daily at 07:05", daily.Describe())

	weekly, err := NewWeekly(Monday, "monday", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "Every Monday at 10:00", weekly.Describe())

	abbr, err := NewWeekly(Friday, "Fri", 18, 30)
	require.NoError(t, err)
	assert.Equal(t, "Every Fri at 18:30", abbr.Describe())

	unlabeled, err := NewWeekly(Sunday, "", 9, 0)
	require.NoError(t, err)
	assert.Equal(t, "Every Sunday at 09:00", unlabeled.Describe())

	monthly, err := NewMonthly(3, 11, 0)
	require.NoError(t, err)
	assert.Equal(t, "On day 3 of the month at 11:00", monthly.Describe())
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewDaily(24, 0)
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, err = NewDaily(23, 60)
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, err = NewWeekly(Weekday(7), "", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = NewMonthly(0, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = NewMonthly(32, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = NewMonthly(31, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestNewRecurrenceRejectsEmptyMessage(t *testing.T) {
	daily, err := NewDaily(8, 0)
	require.NoError(t, err)

	_, err = NewRecurrence(daily, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestParamsRoundTrip(t *testing.T) {
	daily, _ := NewDaily(0, 0)
	weekly, _ := NewWeekly(Thursday, "thurs", 23, 59)
	monthly, _ := NewMonthly(31, 6, 15)

	for _, s := range []Schedule{daily, weekly, monthly} {
		kind, data, err := EncodeParams(s)
		require.NoError(t, err)
		assert.Equal(t, s.Kind(), kind)

		decoded, err := DecodeParams(kind, data)
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
		assert.Equal(t, s.Describe(), decoded.Describe())
	}
}

func TestParamsUseStoredKeys(t *testing.T) {
	monthly, _ := NewMonthly(3, 11, 0)
	_, data, err := EncodeParams(monthly)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":3,"hour":11,"minute":0}`, string(data))

	weekly, _ := NewWeekly(Monday, "mon", 10, 0)
	_, data, err = EncodeParams(weekly)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day_of_week":0,"day_label":"mon","hour":10,"minute":0}`, string(data))
}

func TestDecodeParamsRejectsBadInput(t *testing.T) {
	_, err := DecodeParams(KindMonthly, []byte(`{"day":40,"hour":1,"minute":0}`))
	assert.ErrorIs(t, err, ErrInvalidDay)

	_, err = DecodeParams(Kind("yearly"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = DecodeParams(KindDaily, []byte(`not json`))
	assert.Error(t, err)
}

func TestRecurrenceJSONRoundTrip(t *testing.T) {
	weekly, _ := NewWeekly(Wednesday, "wed", 7, 30)
	rec, err := NewRecurrence(weekly, "Water the plants")
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"description":"Every Wed at 07:30"`)

	var decoded Recurrence
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestRecurrenceJSONIgnoresStaleDescription(t *testing.T) {
	data := []byte(`{"kind":"daily","params":{"hour":9,"minute":0},"description":"whatever","message":"Stretch"}`)

	var rec Recurrence
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "Daily at 09:00", rec.Description())
}

func TestFormatDelivery(t *testing.T) {
	assert.Equal(t, "🔔 Reminder:\n\nPay rent", FormatDelivery("Pay rent"))
}
