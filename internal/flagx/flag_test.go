package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "conf.json", "-a", "localhost"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "conf.json"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.json", "-a", "localhost"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "unknown flags ignored",
			args:         []string{"-x", "1", "--y=2", "positional"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{},
		},
		{
			name:         "flag without value at end is kept",
			args:         []string{"-f"},
			allowedFlags: []string{"-f"},
			want:         []string{"-f"},
		},
		{
			name:         "flag followed by another flag",
			args:         []string{"-f", "-a", ":8080"},
			allowedFlags: []string{"-f", "-a"},
			want:         []string{"-f", "-a", ":8080"},
		},
		{
			name:         "positional value containing equals is not a flag",
			args:         []string{"k=v", "-s", "file"},
			allowedFlags: []string{"-s"},
			want:         []string{"-s", "file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFile(t *testing.T) {
	assert.Equal(t, "a.json", ConfigFile([]string{"-a", ":1", "-c", "a.json"}))
	assert.Equal(t, "b.json", ConfigFile([]string{"-config=b.json"}))
	assert.Equal(t, "", ConfigFile([]string{"-a", ":1"}))
	assert.Equal(t, "", ConfigFile(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example"},
		SplitList(" http://localhost:3000, ,https://app.example "))
	assert.Equal(t, []string{}, SplitList(""))
}
