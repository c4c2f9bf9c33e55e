package blobstore

import (
	"fmt"
	"strings"

	"pinvault/internal/pv"
)

// checkKey rejects areas and ids that could escape their directory.
func checkKey(area pv.Area, id string) error {
	if area != pv.AreaBlobs && area != pv.AreaThumbs {
		return fmt.Errorf("unknown area %q", area)
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".tmp-") {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
