package envstruct_test

import (
	"strings"
	"testing"
	"time"

	"github.com/myrjola/orb/internal/envstruct"
	"github.com/stretchr/testify/require"
)

func TestPopulate(t *testing.T) {
	type args struct {
		v         any
		lookupEnv func(string) (string, bool)
	}
	unset := func(_ string) (string, bool) { return "", false }
	tests := []struct {
		name    string
		args    args
		want    any
		wantErr error
	}{
		{
			name:    "nil",
			args:    args{v: nil, lookupEnv: unset},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name:    "not pointer",
			args:    args{v: struct{}{}, lookupEnv: unset},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name:    "empty struct",
			args:    args{v: &struct{}{}, lookupEnv: unset},
			want:    &struct{}{},
			wantErr: nil,
		},
		{
			name: "empty env",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					APIKey string `env:"OPENAI_API_KEY"`
				}{},
				lookupEnv: unset,
			},
			want:    nil,
			wantErr: envstruct.ErrEnvNotSet,
		},
		{
			name: "picks correct env variable",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Addr       string `env:"ORB_ADDR"`
					Model      string `env:"ORB_MODEL"`
					OtherValue string
				}{},
				lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			},
			want: &struct {
				Addr       string `env:"ORB_ADDR"`
				Model      string `env:"ORB_MODEL"`
				OtherValue string
			}{Addr: "orb_addr", Model: "orb_model", OtherValue: ""},
			wantErr: nil,
		},
		{
			name: "handles default values of every supported type",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Addr    string        `env:"ORB_ADDR" envDefault:"localhost:4000"`
					Retries int           `env:"ORB_RETRIES" envDefault:"2"`
					RPS     float64       `env:"ORB_RPS" envDefault:"0.5"`
					Debug   bool          `env:"ORB_DEBUG" envDefault:"true"`
					Timeout time.Duration `env:"ORB_TIMEOUT" envDefault:"1m30s"`
					Voices  []string      `env:"ORB_VOICES" envDefault:"a, b,,c"`
				}{},
				lookupEnv: unset,
			},
			want: &struct {
				Addr    string        `env:"ORB_ADDR" envDefault:"localhost:4000"`
				Retries int           `env:"ORB_RETRIES" envDefault:"2"`
				RPS     float64       `env:"ORB_RPS" envDefault:"0.5"`
				Debug   bool          `env:"ORB_DEBUG" envDefault:"true"`
				Timeout time.Duration `env:"ORB_TIMEOUT" envDefault:"1m30s"`
				Voices  []string      `env:"ORB_VOICES" envDefault:"a, b,,c"`
			}{
				Addr:    "localhost:4000",
				Retries: 2,
				RPS:     0.5,
				Debug:   true,
				Timeout: 90 * time.Second,
				Voices:  []string{"a", "b", "c"},
			},
			wantErr: nil,
		},
		{
			name: "rejects malformed numbers",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Retries int `env:"ORB_RETRIES"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "many", true },
			},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
		{
			name: "rejects unsupported types",
			args: args{
				v: &struct { //nolint:exhaustruct // populated later
					Ports []int `env:"ORB_PORTS"`
				}{},
				lookupEnv: func(_ string) (string, bool) { return "1,2", true },
			},
			want:    nil,
			wantErr: envstruct.ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := tt.args.v
			err := envstruct.Populate(v, tt.args.lookupEnv)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, v)
			}
		})
	}
}
