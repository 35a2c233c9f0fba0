package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/sqlbridge/pkg/core"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.ConnConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  core.ConnConfig{Database: "analytics"},
			want: "host=localhost port=5432 dbname=analytics sslmode=disable",
		},
		{
			name: "explicit host and port",
			cfg: core.ConnConfig{
				Host:     "db.internal",
				Port:     5433,
				Database: "analytics",
			},
			want: "host=db.internal port=5433 dbname=analytics sslmode=disable",
		},
		{
			name: "credentials",
			cfg: core.ConnConfig{
				Host:     "db.internal",
				Database: "analytics",
				Username: "reader",
				Password: "secret",
			},
			want: "host=db.internal port=5432 dbname=analytics sslmode=disable user=reader password=secret",
		},
		{
			name: "sslmode option",
			cfg: core.ConnConfig{
				Host:     "db.internal",
				Database: "analytics",
				Options:  map[string]string{"sslmode": "require"},
			},
			want: "host=db.internal port=5432 dbname=analytics sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	e := New(nil)
	assert.NotNil(t, e.Logger)
	assert.Zero(t, e.BackendPID(), "no backend pid before connect")
	assert.False(t, e.IsConnected())
}
