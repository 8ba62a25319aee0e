package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FrameSize is the single internal shape every vendor size representation
// normalizes into, so enrichment and storage stay vendor-agnostic.
type FrameSize struct {
	Eye    int
	Bridge int
	Temple int
	// Raw preserves the size exactly as the vendor reported it.
	Raw string
}

// String renders the normalized eye/bridge/temple form, falling back to the
// raw text when the size never parsed.
func (s FrameSize) String() string {
	if s.Eye == 0 && s.Bridge == 0 && s.Temple == 0 {
		return s.Raw
	}
	if s.Temple == 0 {
		return fmt.Sprintf("%d/%d", s.Eye, s.Bridge)
	}
	return fmt.Sprintf("%d/%d/%d", s.Eye, s.Bridge, s.Temple)
}

// IsZero reports whether no size information was captured at all.
func (s FrameSize) IsZero() bool {
	return s.Eye == 0 && s.Bridge == 0 && s.Temple == 0 && s.Raw == ""
}

// sizeParts matches the numeric runs in any of the observed vendor size
// spellings: "54/19/145", "54-19-145", "54□19 145", "54 19 145", "54□19".
var sizeParts = regexp.MustCompile(`\d+`)

// ParseFrameSize normalizes a vendor-reported size string. The first number
// is the eye size, the second the bridge, the third (when present) the
// temple. Anything without at least eye and bridge keeps only the raw text.
func ParseFrameSize(raw string) FrameSize {
	size := FrameSize{Raw: strings.TrimSpace(raw)}

	parts := sizeParts.FindAllString(size.Raw, 4)
	if len(parts) < 2 {
		return size
	}

	eye, _ := strconv.Atoi(parts[0])
	bridge, _ := strconv.Atoi(parts[1])
	if !plausibleEye(eye) || !plausibleBridge(bridge) {
		return size
	}

	size.Eye = eye
	size.Bridge = bridge
	if len(parts) >= 3 {
		if temple, _ := strconv.Atoi(parts[2]); plausibleTemple(temple) {
			size.Temple = temple
		}
	}
	return size
}

// MakeFrameSize builds a size from separately reported fields.
func MakeFrameSize(eye, bridge, temple int) FrameSize {
	s := FrameSize{Eye: eye, Bridge: bridge, Temple: temple}
	s.Raw = s.String()
	return s
}

func plausibleEye(v int) bool    { return v >= 30 && v <= 75 }
func plausibleBridge(v int) bool { return v >= 10 && v <= 30 }
func plausibleTemple(v int) bool { return v >= 100 && v <= 175 }
