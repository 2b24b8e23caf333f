// Copyright 2025 The aer-crawler Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package actions

import "testing"

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Completion Interval", "'Completion Interval'"},
		{"Bob's Sheet", `"Bob's Sheet"`},
		{`He said "hi"`, `'He said "hi"'`},
		{`Bob's "best" sheet`, `concat('Bob',"'",'s "best" sheet')`},
	}

	for _, tt := range tests {
		if got := xpathLiteral(tt.in); got != tt.want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
