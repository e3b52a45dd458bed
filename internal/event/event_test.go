package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalFlexibleShapes(t *testing.T) {
	raw := `{"id": 4711, "type": "Live", "timeopen": "1700000000", "timeclose": 1700003600.0, "is_manual": 0, "banner": "x.png"}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, "4711", ev.ID)
	assert.Equal(t, "Live", ev.Type)
	assert.Equal(t, int64(1700000000), ev.OpensAt)
	assert.Equal(t, int64(1700003600), ev.ClosesAt)
	assert.False(t, ev.Manual)
	assert.Contains(t, ev.Extra, "banner")
}

func TestExtraFieldsRoundTrip(t *testing.T) {
	raw := `{"id":"e1","content":"Aula","timeopen_formated":"25/12/2024","modality":{"kind":"remote"}}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	out, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.JSONEq(t, `"25/12/2024"`, string(got["timeopen_formated"]))
	assert.JSONEq(t, `{"kind":"remote"}`, string(got["modality"]))
	assert.JSONEq(t, `"e1"`, string(got["id"]))
}

func TestTitleFromPortalKeys(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":"42","type":"Live","content":"Aula Magna"}`), &ev))
	assert.Equal(t, "Aula Magna", ev.Title)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &got))
	assert.JSONEq(t, `"Aula Magna"`, string(got["content"]), "the title must keep its upstream key")
	assert.NotContains(t, got, "title")

	// Some endpoints name the field instead.
	var named Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":"43","name":"Prova NAC"}`), &named))
	assert.Equal(t, "Prova NAC", named.Title)

	// content wins when both are present.
	var both Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":"44","content":"c","name":"n"}`), &both))
	assert.Equal(t, "c", both.Title)
	assert.Contains(t, both.Extra, "name")
}

func TestDedupKeepsMostComplete(t *testing.T) {
	sparse := Event{ID: "X", Title: "t", Type: "Live"}
	rich := Event{ID: "X", Title: "t", Type: "Live", Location: "room 4", OpensAt: 1, ClosesAt: 2}

	out := Dedup([]Event{sparse, rich})
	require.Len(t, out, 1)
	assert.Equal(t, "room 4", out[0].Location)

	// Order must not matter.
	out = Dedup([]Event{rich, sparse})
	require.Len(t, out, 1)
	assert.Equal(t, "room 4", out[0].Location)
}

func TestDedupPassesThroughMissingID(t *testing.T) {
	out := Dedup([]Event{{Title: "a"}, {Title: "b"}, {ID: "x", Title: "c"}})
	assert.Len(t, out, 3)
}

func TestMergeDetailPrecedence(t *testing.T) {
	base := Event{ID: "e1", Type: "Live", Title: "scraped title", Location: "tbd"}
	detail := Event{Title: "full title", Location: "https://stream.example/live/1",
		Extra: map[string]json.RawMessage{"teacher": json.RawMessage(`"Ada"`)}}

	merged := MergeDetail(base, detail)

	assert.Equal(t, "e1", merged.ID, "enrichment must not touch the id")
	assert.Equal(t, "full title", merged.Title)
	assert.Equal(t, "https://stream.example/live/1", merged.Location)
	assert.Contains(t, merged.Extra, "teacher")
	assert.True(t, merged.IsVirtual())
}

func TestMergeDetailDoesNotMutateBase(t *testing.T) {
	base := Event{ID: "e1", Extra: map[string]json.RawMessage{"k": json.RawMessage(`1`)}}
	detail := Event{Extra: map[string]json.RawMessage{"k2": json.RawMessage(`2`)}}

	_ = MergeDetail(base, detail)
	assert.NotContains(t, base.Extra, "k2")
}

func TestNewManualID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := NewManualID(now)
	b := NewManualID(now)

	assert.Contains(t, a, "manual_1700000000_")
	assert.NotEqual(t, a, b)
}

func TestValidate(t *testing.T) {
	ok := Event{Title: "t", OpensAt: 10, ClosesAt: 20}
	assert.NoError(t, ok.Validate())

	bad := Event{Title: "t", OpensAt: 20, ClosesAt: 10}
	assert.Error(t, bad.Validate())

	swap := Event{Title: "t", OpensAt: 10, ClosesAt: 10}
	assert.Error(t, swap.Validate())
}

func TestExpired(t *testing.T) {
	now := time.Unix(2000, 0)
	assert.True(t, Event{ClosesAt: 1999}.Expired(now))
	assert.False(t, Event{ClosesAt: 2001}.Expired(now))
	assert.False(t, Event{}.Expired(now), "events without a window never expire")
}
