// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// newStyleID matches post-2007 arXiv ids with an optional version:
// "2301.07041", "0704.0001v2".
var newStyleID = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)

// oldStyleID matches archive-prefixed ids: "hep-th/9901001", "math.GT/0309136v1".
var oldStyleID = regexp.MustCompile(`^([a-z-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?$`)

// NormalizeID reduces an arXiv reference to its bare identifier. It accepts
// plain ids, the "arXiv:" prefix, and abs/pdf/e-print URLs; a version
// suffix is kept because it selects a specific revision.
func NormalizeID(ref string) (string, error) {
	s := strings.TrimSpace(ref)

	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if !strings.HasSuffix(u.Hostname(), "arxiv.org") {
			return "", fmt.Errorf("not an arXiv URL: %s", ref)
		}
		s = strings.TrimPrefix(u.Path, "/")
		for _, prefix := range []string{"abs/", "pdf/", "e-print/", "src/"} {
			if strings.HasPrefix(s, prefix) {
				s = strings.TrimPrefix(s, prefix)
				break
			}
		}
		s = strings.TrimSuffix(s, ".pdf")
	}

	if len(s) > 6 && strings.EqualFold(s[:6], "arxiv:") {
		s = s[6:]
	}

	if m := newStyleID.FindStringSubmatch(s); m != nil {
		return m[1] + m[2], nil
	}
	if m := oldStyleID.FindStringSubmatch(s); m != nil {
		return m[1] + m[2], nil
	}
	return "", fmt.Errorf("unrecognized arXiv identifier %q", ref)
}
