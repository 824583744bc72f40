package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lancenter/backend/services/terminals-service/internal/apperr"
)

func frame(typ, payload string) Frame {
	return Frame{ID: "r1", Type: typ, Payload: json.RawMessage(payload)}
}

func TestDecodeVariants(t *testing.T) {
	cmd, err := Decode(frame(CommandStartSession, `{"id":"3","durationMinutes":60,"customerName":"Ana","price":"2.50"}`))
	require.NoError(t, err)
	start, ok := cmd.(*StartSession)
	require.True(t, ok)
	assert.Equal(t, "3", start.ID)
	assert.Equal(t, 60, start.DurationMinutes)
	require.NotNil(t, start.Price)
	assert.Equal(t, "2.5", start.Price.String())

	cmd, err = Decode(frame(CommandAddTime, `{"id":"3","minutes":30}`))
	require.NoError(t, err)
	assert.Nil(t, cmd.(*AddTime).Price)

	cmd, err = Decode(frame(CommandMoveSession, `{"fromId":"1","toId":"2"}`))
	require.NoError(t, err)
	assert.Equal(t, CommandMoveSession, cmd.Name())

	cmd, err = Decode(frame(QueryComputers, ``))
	require.NoError(t, err)
	assert.IsType(t, &GetComputers{}, cmd)
}

func TestDecodeInitializeComputersBareCount(t *testing.T) {
	cmd, err := Decode(frame(CommandInitializeComputers, `12`))
	require.NoError(t, err)
	assert.Equal(t, 12, cmd.(*InitializeComputers).Count)

	cmd, err = Decode(frame(CommandInitializeComputers, `{"count":4}`))
	require.NoError(t, err)
	assert.Equal(t, 4, cmd.(*InitializeComputers).Count)
}

func TestDecodeRejects(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
	}{
		{name: "unknown type", frame: frame("reboot", `{}`)},
		{name: "malformed payload", frame: frame(CommandStopSession, `{"id":`)},
		{name: "wrong field type", frame: frame(CommandAddTime, `{"id":"1","minutes":"ten"}`)},
		{name: "missing id", frame: frame(CommandStopSession, `{}`)},
		{name: "zero duration", frame: frame(CommandStartSession, `{"id":"1"}`)},
		{name: "negative price", frame: frame(CommandAddExtra, `{"id":"1","name":"Soda","price":-1}`)},
		{name: "duration over a week", frame: frame(CommandStartSession, `{"id":"1","durationMinutes":200000000,"price":"1.00"}`)},
		{name: "added minutes over a week", frame: frame(CommandAddTime, `{"id":"1","minutes":10081}`)},
		{name: "converted minutes over a week", frame: frame(CommandUpdateSession, `{"id":"1","mode":"fixed","minutes":10081}`)},
		{name: "fractional cents", frame: frame(CommandAddExtra, `{"id":"1","name":"Soda","price":"1.005"}`)},
		{name: "oversized zone rule", frame: frame(CommandSaveZone, `{"name":"Huge","rules":[{"minutes":15,"price":"0.50"},{"minutes":20000000,"price":"10.00"}]}`)},
		{name: "zone tolerance over a week", frame: frame(CommandSaveZone, `{"name":"Z","tolerance":10081,"rules":[{"minutes":60,"price":"1.00"}]}`)},
		{name: "bad mode", frame: frame(CommandUpdateSession, `{"id":"1","mode":"weekly"}`)},
		{name: "fixed without minutes", frame: frame(CommandUpdateSession, `{"id":"1","mode":"fixed"}`)},
		{name: "inverted history window", frame: frame(QueryHistory, `{"from":"2024-03-02T00:00:00Z","to":"2024-03-01T00:00:00Z"}`)},
		{name: "bad date", frame: frame(QueryDailyRevenue, `{"date":"03/01/2024"}`)},
		{name: "bad timezone", frame: frame(QueryDailyRevenue, `{"timezone":"Mars/Olympus"}`)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.frame)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestDailyRevenueDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

	day := GetDailyRevenue{Date: "2024-02-10", Timezone: "UTC"}.Day(now)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), day)

	today := GetDailyRevenue{}.Day(now)
	assert.Equal(t, now, today)
}
