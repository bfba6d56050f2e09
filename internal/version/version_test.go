package version

import "testing"

func TestUserAgent(t *testing.T) {
	oldV, oldC := Version, Commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })

	Version, Commit = "1.2.3", "abc123"
	if got := UserAgent(); got != "pictura/1.2.3 (abc123)" {
		t.Errorf("UserAgent() = %q", got)
	}
}
