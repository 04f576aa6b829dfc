package ai

import (
	"testing"

	"github.com/myrjola/orb/internal/cases"
	"github.com/stretchr/testify/require"
)

func TestGuardCulprit(t *testing.T) {
	ctx := loadCase(t, "midnight-ball").Context()

	tests := []struct {
		name         string
		text         string
		want         string
		wantRedacted bool
	}{
		{
			name: "hint without accusation passes",
			text: "Count Aldric lingered by the wine at half past eleven. Time is the key.",
			want: "Count Aldric lingered by the wine at half past eleven. Time is the key.",
		},
		{
			name:         "accusation by full name",
			text:         "The stars are cold. Count Aldric von Stern is the murderer.",
			want:         "The stars are cold.",
			wantRedacted: true,
		},
		{
			name:         "accusation by surname",
			text:         "Stern poisoned the glass!",
			want:         deflection,
			wantRedacted: true,
		},
		{
			name:         "accusation by id",
			text:         "The culprit is count-aldric. Nothing more.",
			want:         "Nothing more.",
			wantRedacted: true,
		},
		{
			name: "accusing another suspect is allowed",
			text: "Was the butler guilty of theft? Perhaps.",
			want: "Was the butler guilty of theft? Perhaps.",
		},
		{
			name: "name inside another word does not count",
			text: "The sternest guests were guilty of gossip.",
			want: "The sternest guests were guilty of gossip.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, redacted := guardCulprit(tt.text, ctx)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantRedacted, redacted)
		})
	}
}

func TestCulpritPattern(t *testing.T) {
	require.Nil(t, culpritPattern(cases.Context{})) //nolint:exhaustruct // no culprit

	ctx := cases.Context{ //nolint:exhaustruct // only the culprit matters
		Suspects: []cases.Suspect{{ID: "harlow-jr", Name: "Dr. Harlow (Jr"}}, //nolint:exhaustruct // name only
		Culprit:  "harlow-jr",
	}
	culprit := culpritPattern(ctx)
	require.NotNil(t, culprit)
	for _, text := range []string{"dr. harlow (jr did it.", "harlow-jr lied.", "so did harlow jr.", "ask harlow."} {
		require.True(t, culprit.MatchString(text), text)
	}
	for _, text := range []string{"harlowe lied.", "the harlowing wind.", "the doctor left."} {
		require.False(t, culprit.MatchString(text), text)
	}

	got, redacted := guardCulprit("The wind howls. Harlow (Jr is the killer!", ctx)
	require.True(t, redacted)
	require.Equal(t, "The wind howls.", got)
}
