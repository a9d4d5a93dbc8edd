package utils_test

import (
	"testing"

	"github.com/lifetime-go/lifetime/pkg/utils"
)

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{
			name:     "extension at root",
			patterns: []string{"*.log"},
			path:     "server.log",
			want:     true,
		},
		{
			name:     "extension in subdirectory",
			patterns: []string{"*.log"},
			path:     "logs/2024/server.log",
			want:     true,
		},
		{
			name:     "extension no match",
			patterns: []string{"*.log"},
			path:     "server.go",
			want:     false,
		},
		{
			name:     "bare directory name",
			patterns: []string{"node_modules"},
			path:     "web/node_modules/react/index.js",
			want:     true,
		},
		{
			name:     "bare name is not a prefix match",
			patterns: []string{"build"},
			path:     "builder/main.go",
			want:     false,
		},
		{
			name:     "anchored path",
			patterns: []string{"docs/generated"},
			path:     "docs/generated/api.md",
			want:     true,
		},
		{
			name:     "anchored path elsewhere",
			patterns: []string{"docs/generated"},
			path:     "src/docs/generated/api.md",
			want:     false,
		},
		{
			name:     "double star",
			patterns: []string{"**/testdata/*.json"},
			path:     "pkg/a/testdata/case.json",
			want:     true,
		},
		{
			name:     "question mark",
			patterns: []string{"tmp?"},
			path:     "tmp1",
			want:     true,
		},
		{
			name:     "negated class",
			patterns: []string{"out[!0-9]"},
			path:     "out7",
			want:     false,
		},
		{
			name:     "dots are literal",
			patterns: []string{"a.b"},
			path:     "axb",
			want:     false,
		},
		{
			name:     "windows separators",
			patterns: []string{"cache"},
			path:     `app\cache\entry`,
			want:     true,
		},
		{
			name:     "no patterns",
			patterns: nil,
			path:     "anything",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := utils.NewIgnoreMatcher(tt.patterns)
			if err != nil {
				t.Fatalf("NewIgnoreMatcher() error = %v", err)
			}
			if got := m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIgnoreMatcher_Nil(t *testing.T) {
	var m *utils.IgnoreMatcher
	if m.Match("x") {
		t.Error("nil matcher should match nothing")
	}
}

func TestDefaultIgnores(t *testing.T) {
	m, err := utils.NewIgnoreMatcher(utils.DefaultIgnores())
	if err != nil {
		t.Fatalf("NewIgnoreMatcher() error = %v", err)
	}
	for _, path := range []string{".git/HEAD", "web/node_modules/x.js", ".lifetime/state/run.json", "notes.txt~"} {
		if !m.Match(path) {
			t.Errorf("expected %s to be ignored", path)
		}
	}
	if m.Match("main.go") {
		t.Error("main.go should not be ignored")
	}
}
