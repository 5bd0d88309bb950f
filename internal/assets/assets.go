// Package assets embeds the default site database and the site icons that
// ship with the binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed sites.json
var Sites []byte

//go:embed icons/*.png
var icons embed.FS

// Icons returns the embedded icon set, one <site>.png per site name.
func Icons() fs.FS {
	sub, err := fs.Sub(icons, "icons")
	if err != nil {
		// "icons" is a literal directory in the embed pattern above.
		panic(err)
	}

	return sub
}
