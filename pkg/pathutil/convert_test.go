package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	assert.Equal(t, "src/main.go", ToRelative("/home/user/project/src/main.go", "/home/user/project"))
	assert.Equal(t, "/other/location/file.go", ToRelative("/other/location/file.go", "/home/user/project"))
	assert.Equal(t, "src/main.go", ToRelative("src/main.go", "/home/user/project"))
	assert.Equal(t, "", ToRelative("", "/home/user/project"))
}

func TestToAbsolute(t *testing.T) {
	assert.Equal(t, "/home/user/project/src/main.go", ToAbsolute("src/main.go", "/home/user/project"))
	assert.Equal(t, "/already/abs.go", ToAbsolute("/already/abs.go", "/home/user/project"))
	assert.Equal(t, "/home/user/project", ToAbsolute("", "/home/user/project"))
}

func TestRoundTrip(t *testing.T) {
	root := "/home/user/project"
	rel := "internal/store/store.go"
	assert.Equal(t, rel, ToRelative(ToAbsolute(rel, root), root))
}
