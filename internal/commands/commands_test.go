// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain install line",
			text: "First install the dependency:\nnpm install lodash\nthen use it.",
			want: []string{"npm install lodash"},
		},
		{
			name: "prompt prefix and backticks stripped",
			text: "$ pip install requests\n`go get github.com/spf13/cobra`",
			want: []string{"pip install requests", "go get github.com/spf13/cobra"},
		},
		{
			name: "duplicates collapsed",
			text: "yarn add react\nsome prose\nyarn add react",
			want: []string{"yarn add react"},
		},
		{
			name: "prose mentioning a package manager is not a command",
			text: "You should npm install the package first.\nRun the npm installer.",
			want: nil,
		},
		{
			name: "mixed managers in order",
			text: "apt-get install jq\nbrew install jq\ncargo add serde",
			want: []string{"apt-get install jq", "brew install jq", "cargo add serde"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, New().Extract(tc.text))
		})
	}
}
