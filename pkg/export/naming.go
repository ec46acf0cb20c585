package export

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the social network a story is exported for.
type Platform string

const (
	Instagram Platform = "instagram"
	Facebook  Platform = "facebook"
)

// ParsePlatform accepts "instagram", "facebook" and their short forms.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "instagram", "ig":
		return Instagram, nil
	case "facebook", "fb":
		return Facebook, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// DownloadName names an explicit download:
// "{platform}-story-{with-link|no-link}-{unixMillis}.png".
func DownloadName(p Platform, withLink bool, at time.Time, f Format) string {
	variant := "no-link"
	if withLink {
		variant = "with-link"
	}
	return fmt.Sprintf("%s-story-%s-%d%s", p, variant, at.UnixMilli(), f.Ext())
}

// ShareName names a share payload: "{platform}-story.png".
func ShareName(p Platform, f Format) string {
	return fmt.Sprintf("%s-story%s", p, f.Ext())
}

// FallbackName names the forced download at the end of the share chain:
// "clean-{platform}-story-{unixMillis}.png".
func FallbackName(p Platform, at time.Time, f Format) string {
	return fmt.Sprintf("clean-%s-story-%d%s", p, at.UnixMilli(), f.Ext())
}
