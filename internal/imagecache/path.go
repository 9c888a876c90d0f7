package imagecache

import "strings"

// webRootMarker is the directory segment the host's web server is
// assumed to serve. Everything below it is reachable under /local/.
const webRootMarker = "/www/"

// ServablePath maps a cache directory that lives under a web root onto
// the URL path a browser can load, e.g.
// ("/config/www/emby_images", "42_Primary_7ab37ce5.jpg") ->
// "/local/emby_images/42_Primary_7ab37ce5.jpg".
// Returns false when the marker is absent from the directory, which is
// a host configuration problem the caller must fall back from.
func ServablePath(dir, filename string) (string, bool) {
	idx := strings.LastIndex(dir, webRootMarker)
	if idx < 0 {
		return "", false
	}

	rel := strings.Trim(dir[idx+len(webRootMarker):], "/")
	if rel == "" {
		return "/local/" + filename, true
	}
	return "/local/" + rel + "/" + filename, true
}
