package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrgencyForPriority(t *testing.T) {
	tests := []struct {
		priority int
		want     Urgency
	}{
		{-1, UrgencyLow},
		{0, UrgencyLow},
		{1, UrgencyLow},
		{3, UrgencyLow},
		{4, UrgencyNormal},
		{5, UrgencyNormal},
		{7, UrgencyNormal},
		{8, UrgencyCritical},
		{10, UrgencyCritical},
		{42, UrgencyCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UrgencyForPriority(tt.priority), "priority %d", tt.priority)
	}
}

func TestUrgencyString(t *testing.T) {
	assert.Equal(t, "low", UrgencyLow.String())
	assert.Equal(t, "normal", UrgencyNormal.String())
	assert.Equal(t, "critical", UrgencyCritical.String())
	assert.Equal(t, "normal", Urgency(9).String())
	assert.Equal(t, byte(2), UrgencyCritical.Byte())
}

func TestParseEvent_Full(t *testing.T) {
	data := []byte(`{"id":7,"appid":42,"title":"T","message":"M","priority":5,
		"date":"2024-01-02T15:04:05Z",
		"extras":{"category":"update","actions":{"ok":"OK","cancel":"Cancel"},
		"client::display":{"contentType":"text/markdown"}}}`)

	ev, err := ParseEvent(data)
	require.NoError(t, err)

	assert.Equal(t, 7, ev.ID)
	assert.Equal(t, 42, ev.AppID)
	assert.Equal(t, "T", ev.Title)
	assert.Equal(t, "M", ev.Message)
	assert.Equal(t, UrgencyNormal, ev.Urgency())
	assert.Equal(t, "update", ev.Category())
	assert.Equal(t, []Action{
		{Key: "cancel", Label: "Cancel"},
		{Key: "ok", Label: "OK"},
	}, ev.Actions())
}

func TestParseEvent_NoExtras(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"appid":1,"title":"Backup","message":"done","priority":2}`))
	require.NoError(t, err)

	assert.Nil(t, ev.Extras)
	assert.Empty(t, ev.Category())
	assert.Empty(t, ev.Actions())
	assert.Equal(t, UrgencyLow, ev.Urgency())
}

func TestParseEvent_MistypedExtrasKeepEvent(t *testing.T) {
	tests := []struct {
		name        string
		extras      string
		wantCat     string
		wantActions []Action
		wantSkipped []string
	}{
		{
			name:        "category object",
			extras:      `{"category":{},"actions":{"ok":"OK"}}`,
			wantActions: []Action{{Key: "ok", Label: "OK"}},
			wantSkipped: []string{"category"},
		},
		{
			name:        "actions list",
			extras:      `{"category":"update","actions":["ok"]}`,
			wantCat:     "update",
			wantSkipped: []string{"actions"},
		},
		{
			name:        "one bad label",
			extras:      `{"actions":{"ok":"OK","bad":7}}`,
			wantActions: []Action{{Key: "ok", Label: "OK"}},
			wantSkipped: []string{"actions.bad"},
		},
		{
			name:        "extras not an object",
			extras:      `"oops"`,
			wantSkipped: []string{"extras"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(`{"appid":1,"title":"T","message":"M","priority":5,"extras":` + tt.extras + `}`))
			require.NoError(t, err)

			assert.Equal(t, "T", ev.Title)
			assert.Equal(t, tt.wantCat, ev.Category())
			assert.Equal(t, tt.wantActions, ev.Actions())
			assert.Equal(t, tt.wantSkipped, ev.SkippedExtras())
		})
	}
}

func TestParseEvent_Errors(t *testing.T) {
	_, err := ParseEvent(nil)
	assert.ErrorIs(t, err, ErrEmptyFrame)

	_, err = ParseEvent([]byte(`{"title":`))
	assert.Error(t, err)
}

func TestActionDescriptor(t *testing.T) {
	assert.Equal(t, "ok,OK", Action{Key: "ok", Label: "OK"}.Descriptor())
}

func TestDispatchResult(t *testing.T) {
	assert.False(t, DispatchResult{}.HasAction())
	assert.True(t, DispatchResult{ActionKey: "install"}.HasAction())
}
